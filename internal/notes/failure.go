package notes

import (
	"fmt"

	"github.com/lexiqai/lecture-notes/internal/llm"
)

// FailureNotes is stored in place of notes when synthesis failed, so the
// transcript is never lost.
func FailureNotes(transcript string, err error) string {
	reason := "The notes generator could not produce notes for this lecture. You can regenerate them later."
	if llm.IsQuotaError(err) {
		reason = "The notes generator is over its usage quota right now. Your transcript is saved below; regenerate the notes once the quota resets."
	}
	return fmt.Sprintf("## Notes unavailable\n\n> %s\n\n## Transcript\n\n%s\n", reason, transcript)
}
