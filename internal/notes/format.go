// Package notes turns a lecture transcript and the student's key points into
// markdown study notes.
package notes

import (
	"fmt"
	"strings"

	"github.com/lexiqai/lecture-notes/internal/lecture"
)

// KeyPointMarker tags notes content that covers a user-marked key point
const KeyPointMarker = "⭐ **KEY POINT**"

// NoKeypointsSentence replaces the key point list when the student marked none
const NoKeypointsSentence = "The student did not mark any key points during this lecture."

// FormatTimestamp renders seconds as M:SS
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatKeypoints renders one `- At M:SS: "note"` line per key point, in order
func FormatKeypoints(keypoints []lecture.Keypoint) string {
	if len(keypoints) == 0 {
		return NoKeypointsSentence
	}
	lines := make([]string, len(keypoints))
	for i, kp := range keypoints {
		lines[i] = fmt.Sprintf("- At %s: %q", FormatTimestamp(kp.Timestamp), kp.Note)
	}
	return strings.Join(lines, "\n")
}

// RenderTranscript prefers speaker-labelled timestamped utterances and falls
// back to the raw text verbatim.
func RenderTranscript(t lecture.TranscriptResult) string {
	if len(t.Utterances) == 0 {
		return t.Text
	}
	var b strings.Builder
	for i, u := range t.Utterances {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := strings.TrimSpace(u.Speaker)
		if speaker == "" {
			speaker = "Unknown"
		}
		fmt.Fprintf(&b, "[%s] Speaker %s: %s", FormatTimestamp(int(u.StartMs/1000)), speaker, strings.TrimSpace(u.Text))
	}
	return b.String()
}
