package factcheck

import (
	"encoding/json"
	"strings"
)

// ExtractJSONArray parses text as a JSON array, first strictly and then from
// the span between the first '[' and the last ']'. ok is false when neither
// parse succeeds.
func ExtractJSONArray(text string) (items []json.RawMessage, ok bool) {
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return items, true
	}

	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	items = nil
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &items); err != nil {
		return nil, false
	}
	return items, true
}
