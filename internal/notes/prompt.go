package notes

import (
	"fmt"

	"github.com/lexiqai/lecture-notes/internal/lecture"
)

// FormulasHeading is the mandatory closing section of every set of notes
const FormulasHeading = "## Formulas & Equations"

// SystemInstruction constrains the model to faithful, structured notes
var SystemInstruction = fmt.Sprintf(`You are an expert note-taker producing study notes from a university lecture transcript.

Rules:
1. Only restate what the lecturer actually said. Never invent facts, examples, definitions or references that are not in the transcript.
2. Preserve technical depth. Keep terminology, derivations, numbers and caveats exactly as precise as the lecturer was.
3. Use markdown: start with a single "## " heading naming the lecture topic, then "### " sections with bullet points.
4. Render every formula the lecturer states or describes in words as LaTeX. Use $...$ inline and $$...$$ on its own line for display equations.
5. The student marked key points while recording. Wherever the notes cover one of them, prefix that bullet with %q.
6. End with a section titled %q listing every formula from the lecture in LaTeX. If there were none, write "No formulas or equations were presented in this lecture."`,
	KeyPointMarker, FormulasHeading[3:])

// BuildPrompt assembles the user message sent with SystemInstruction
func BuildPrompt(transcript lecture.TranscriptResult, keypoints []lecture.Keypoint) string {
	return fmt.Sprintf(`Student key points (timestamps are from the start of the recording):
%s

Lecture transcript:
%s

Write the study notes now.`, FormatKeypoints(keypoints), RenderTranscript(transcript))
}
