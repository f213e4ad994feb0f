// Package audio validates and fetches remote lecture recordings before they
// are handed to the transcription provider.
package audio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/observability"
)

var (
	// ErrInvalidResource means the URL does not point at fetchable audio
	ErrInvalidResource = errors.New("invalid audio resource")
	// ErrTimeout means the resource did not answer within the preflight timeout
	ErrTimeout = errors.New("audio resource timed out")
)

// DefaultPreflightTimeout bounds the metadata request
const DefaultPreflightTimeout = 10 * time.Second

// ResourceInfo is what the metadata request revealed about the resource
type ResourceInfo struct {
	ContentType   string
	ContentLength int64 // -1 when the server did not declare one
}

// Preflight issues a HEAD request to check that a URL is plausibly audio
type Preflight struct {
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewPreflight creates a validator; a zero timeout uses DefaultPreflightTimeout
func NewPreflight(client *http.Client, timeout time.Duration, logger zerolog.Logger) *Preflight {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultPreflightTimeout
	}
	return &Preflight{
		client:  client,
		timeout: timeout,
		logger:  logger.With().Str("component", "preflight").Logger(),
	}
}

// Check validates rawURL. It returns ErrInvalidResource for unsuccessful
// responses, HTML/XML error pages and declared zero-length bodies, and
// ErrTimeout when no response arrives in time.
func (p *Preflight) Check(ctx context.Context, rawURL string) (*ResourceInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		observability.RecordPreflightRejection("bad_url")
		return nil, fmt.Errorf("%w: malformed url", ErrInvalidResource)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			observability.RecordPreflightRejection("timeout")
			return nil, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		observability.RecordPreflightRejection("unreachable")
		return nil, fmt.Errorf("%w: %v", ErrInvalidResource, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observability.RecordPreflightRejection("status")
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResource, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if isErrorPage(contentType) {
		observability.RecordPreflightRejection("content_type")
		return nil, fmt.Errorf("%w: content type %s", ErrInvalidResource, contentType)
	}

	info := &ResourceInfo{ContentType: contentType, ContentLength: -1}
	declared := strings.TrimSpace(resp.Header.Get("Content-Length"))
	switch {
	case declared == "":
		p.logger.Warn().Str("url", rawURL).Msg("Audio resource did not declare a content length, continuing")
	case declared == "0":
		observability.RecordPreflightRejection("empty")
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResource)
	default:
		if n, err := strconv.ParseInt(declared, 10, 64); err == nil {
			info.ContentLength = n
		}
	}

	p.logger.Debug().
		Str("content_type", contentType).
		Int64("content_length", info.ContentLength).
		Msg("Audio resource passed preflight")
	return info, nil
}

func isErrorPage(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "html") || strings.Contains(ct, "xml")
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
