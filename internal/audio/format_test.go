package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        string
	}{
		{"video/mp4", "https://cdn.example.com/a.mp3", "mp4"},
		{"audio/mp4", "https://cdn.example.com/a", "mp4"},
		{"audio/webm", "https://cdn.example.com/a.mp3", "mp3"},
		{"application/octet-stream", "https://cdn.example.com/a.WAV?sig=abc", "wav"},
		{"", "https://cdn.example.com/a.m4a", "m4a"},
		{"audio/webm;codecs=opus", "https://cdn.example.com/a", "webm"},
		{"audio/ogg", "https://cdn.example.com/a.flac", "ogg"},
		{"", "https://cdn.example.com/a", "webm"},
		{"audio/mpeg", "https://cdn.example.com/a.aac", "webm"},
	}

	for _, tt := range tests {
		if got := ExtensionFor(tt.contentType, tt.url); got != tt.want {
			t.Errorf("ExtensionFor(%q, %q): expected %s, got %s", tt.contentType, tt.url, tt.want, got)
		}
	}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/ogg")
		w.Write([]byte("OggS-audio-bytes"))
	}))
	defer server.Close()

	payload, err := Fetch(context.Background(), server.Client(), server.URL+"/rec")
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if string(payload.Data) != "OggS-audio-bytes" {
		t.Errorf("Unexpected payload %q", payload.Data)
	}
	if payload.Extension != "ogg" || payload.Filename() != "lecture.ogg" {
		t.Errorf("Expected ogg extension, got %s (%s)", payload.Extension, payload.Filename())
	}
}

func TestFetch_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := Fetch(context.Background(), server.Client(), server.URL); err == nil {
		t.Error("Expected error for non-200 fetch")
	}
}
