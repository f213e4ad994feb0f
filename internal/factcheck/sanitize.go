package factcheck

import (
	"encoding/json"
	"strings"

	"github.com/lexiqai/lecture-notes/internal/lecture"
)

const (
	// MinConfidence is the lowest confidence a kept item may have
	MinConfidence = 0.75
	// MaxItems caps the number of stored corrections
	MaxItems = 10
)

type candidate struct {
	Claim       string   `json:"claim"`
	Correction  string   `json:"correction"`
	Rationale   string   `json:"rationale"`
	Confidence  *float64 `json:"confidence"`
	Severity    string   `json:"severity"`
	SourceQuote string   `json:"source_quote"`
}

// Sanitize turns raw model candidates into stored items. Items missing claim,
// correction, rationale or confidence are dropped, confidence is clamped to
// [0,1], items below MinConfidence are dropped, unknown severities become
// low, and at most MaxItems survive.
func Sanitize(raw []json.RawMessage) []lecture.FactCheckItem {
	out := make([]lecture.FactCheckItem, 0, len(raw))
	for _, r := range raw {
		if len(out) == MaxItems {
			break
		}
		var c candidate
		if err := json.Unmarshal(r, &c); err != nil {
			continue
		}
		claim := strings.TrimSpace(c.Claim)
		correction := strings.TrimSpace(c.Correction)
		rationale := strings.TrimSpace(c.Rationale)
		if claim == "" || correction == "" || rationale == "" || c.Confidence == nil {
			continue
		}

		confidence := clamp(*c.Confidence)
		if confidence < MinConfidence {
			continue
		}

		out = append(out, lecture.FactCheckItem{
			Claim:       claim,
			Correction:  correction,
			Rationale:   rationale,
			Confidence:  confidence,
			Severity:    severity(c.Severity),
			SourceQuote: strings.TrimSpace(c.SourceQuote),
		})
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func severity(s string) lecture.Severity {
	switch sev := lecture.Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case lecture.SeverityLow, lecture.SeverityMedium, lecture.SeverityHigh:
		return sev
	}
	return lecture.SeverityLow
}
