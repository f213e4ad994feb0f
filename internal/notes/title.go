package notes

import (
	"regexp"
	"strings"
)

const (
	minTitleLen = 3
	maxTitleLen = 100
)

var (
	headingPattern = regexp.MustCompile(`^#{1,2}\s+(.+?)(?:\s+#+)?\s*$`)
	boldStars      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicStars    = regexp.MustCompile(`\*(.+?)\*`)
	// Underscore emphasis only opens and closes outside words, so snake_case survives
	boldUnderscores   = regexp.MustCompile(`(^|[^\p{L}\p{N}_])__([^_]+?)__($|[^\p{L}\p{N}_])`)
	italicUnderscores = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_([^_]+?)_($|[^\p{L}\p{N}_])`)
)

// ExtractTitle returns the first H1/H2 heading with emphasis markers removed,
// truncated to 100 characters. ok is false when there is no usable heading.
func ExtractTitle(markdown string) (title string, ok bool) {
	for _, line := range strings.Split(markdown, "\n") {
		m := headingPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		title = strings.TrimSpace(stripEmphasis(m[1]))
		if r := []rune(title); len(r) > maxTitleLen {
			title = strings.TrimSpace(string(r[:maxTitleLen]))
		}
		if len([]rune(title)) < minTitleLen {
			return "", false
		}
		return title, true
	}
	return "", false
}

// stripEmphasis removes markdown emphasis and code delimiters, keeping the text
func stripEmphasis(s string) string {
	s = boldStars.ReplaceAllString(s, "$1")
	s = italicStars.ReplaceAllString(s, "$1")
	s = boldUnderscores.ReplaceAllString(s, "${1}${2}${3}")
	s = italicUnderscores.ReplaceAllString(s, "${1}${2}${3}")
	return strings.NewReplacer("*", "", "`", "").Replace(s)
}
