// Package factcheck runs a conservative correction pass over generated notes.
package factcheck

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

const (
	// MinNotesLength is the shortest notes text worth checking
	MinNotesLength = 200
	// MaxTranscriptChars bounds the transcript excerpt sent to the model
	MaxTranscriptChars = 12000
	truncationMarker   = "\n\n[... transcript truncated ...]"
)

// SystemInstruction asks for a pure JSON array of high-confidence corrections
var SystemInstruction = fmt.Sprintf(`You are a careful fact-checker reviewing study notes generated from a lecture.

Be conservative. Only flag statements in the notes that are clearly wrong, either factually or relative to the transcript. Do not flag style, omissions, simplifications or anything you are unsure about.

Respond with a pure JSON array and nothing else. Each element must be an object with:
- "claim": the exact statement from the notes
- "correction": the corrected statement
- "rationale": one sentence explaining the error
- "confidence": a number between 0 and 1
- "severity": "low", "medium" or "high"
- "source_quote": optional supporting quote from the transcript

Never include an item with confidence below %.2f. Return at most %d items. If nothing is wrong, return [].`, MinConfidence, MaxItems)

// Checker produces fact-check items; it never returns an error
type Checker struct {
	chain  *llm.Chain
	logger zerolog.Logger
}

// NewChecker creates a checker; a nil chain disables checking
func NewChecker(chain *llm.Chain, logger zerolog.Logger) *Checker {
	return &Checker{
		chain:  chain,
		logger: logger.With().Str("component", "fact_checker").Logger(),
	}
}

// Check returns sanitized corrections for notes. Skips and failures yield an
// empty, non-nil list.
func (c *Checker) Check(ctx context.Context, notes, transcript string) []lecture.FactCheckItem {
	empty := []lecture.FactCheckItem{}
	if c == nil {
		return empty
	}

	switch {
	case strings.TrimSpace(transcript) == transcription.NoSpeechPlaceholder:
		c.logger.Debug().Msg("Skipping fact-check: no speech detected")
		return empty
	case utf8.RuneCountInString(notes) < MinNotesLength:
		c.logger.Debug().Int("notes_chars", utf8.RuneCountInString(notes)).Msg("Skipping fact-check: notes too short")
		return empty
	case c.chain == nil:
		c.logger.Debug().Msg("Skipping fact-check: no provider configured")
		return empty
	}

	timer := observability.StartStage("fact_check")
	ctx, span := observability.StartSpan(ctx, "factcheck.check")

	result, err := c.chain.Complete(ctx, SystemInstruction, buildPrompt(notes, transcript))
	observability.EndSpan(span, err)
	timer.End(err)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Fact-check failed, continuing without corrections")
		return empty
	}

	raw, ok := ExtractJSONArray(result.Text)
	if !ok {
		c.logger.Warn().Str("model", result.Model).Msg("Fact-check response was not a JSON array, treating as no findings")
		return empty
	}

	items := Sanitize(raw)
	observability.RecordFactCheckItems(len(items))
	c.logger.Info().
		Str("model", result.Model).
		Int("candidates", len(raw)).
		Int("kept", len(items)).
		Msg("Fact-check complete")
	return items
}

// TruncateTranscript cuts transcript at MaxTranscriptChars characters and
// appends an explicit marker.
func TruncateTranscript(transcript string) string {
	r := []rune(transcript)
	if len(r) <= MaxTranscriptChars {
		return transcript
	}
	return string(r[:MaxTranscriptChars]) + truncationMarker
}

func buildPrompt(notes, transcript string) string {
	return fmt.Sprintf("Notes to check:\n%s\n\nLecture transcript excerpt:\n%s", notes, TruncateTranscript(transcript))
}
