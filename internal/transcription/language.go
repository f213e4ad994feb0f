package transcription

import "strings"

// NoSpeechPlaceholder is stored when a completed job produced no text
const NoSpeechPlaceholder = "[No speech detected in this recording]"

// FindTranslation returns the translation text targeting lang, or ""
func FindTranslation(translations []Translation, lang string) string {
	for _, tr := range translations {
		if strings.EqualFold(tr.TargetLanguage, lang) && strings.TrimSpace(tr.Text) != "" {
			return tr.Text
		}
	}
	return ""
}

// NeedsTranslation reports whether text contains any non-ASCII character.
// Accented Latin text is flagged too; the check only approximates "not in
// the target language".
func NeedsTranslation(text string) bool {
	for _, r := range text {
		if r > 127 {
			return true
		}
	}
	return false
}
