package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxPayloadBytes caps how much audio is buffered for upload
const MaxPayloadBytes = 512 << 20

// Payload is a downloaded recording ready for multipart upload
type Payload struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Filename is the name sent with the multipart upload
func (p *Payload) Filename() string {
	return "lecture." + p.Extension
}

// Fetch downloads the full recording at rawURL
func Fetch(ctx context.Context, client *http.Client, rawURL string) (*Payload, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) > MaxPayloadBytes {
		return nil, fmt.Errorf("audio exceeds %d bytes", MaxPayloadBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio body is empty")
	}

	contentType := resp.Header.Get("Content-Type")
	return &Payload{
		Data:        data,
		ContentType: contentType,
		Extension:   ExtensionFor(contentType, rawURL),
	}, nil
}
