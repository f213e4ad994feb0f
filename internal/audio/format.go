package audio

import (
	"net/url"
	"path"
	"strings"
)

// ExtensionFor infers the upload file extension. MIME mp4 wins, then an
// explicit .mp3/.wav/.m4a in the URL path, then MIME webm, then MIME ogg,
// and webm otherwise.
func ExtensionFor(contentType, rawURL string) string {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "mp4") {
		return "mp4"
	}
	if ext := urlExtension(rawURL); ext != "" {
		return ext
	}
	if strings.Contains(ct, "webm") {
		return "webm"
	}
	if strings.Contains(ct, "ogg") {
		return "ogg"
	}
	return "webm"
}

func urlExtension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")); ext {
	case "mp3", "wav", "m4a":
		return ext
	}
	return ""
}
