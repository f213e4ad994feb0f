package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/resilience"
)

const breakerName = "transcription"

// ClientConfig configures the REST client
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Logger     zerolog.Logger
}

// Client implements Provider over the provider's bearer-authenticated REST API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a new transcription client
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(breakerName, 5, 30*time.Second)
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     cfg.Logger.With().Str("component", "transcription").Logger(),
	}
}

// Configured reports whether an API key is present
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Breaker exposes the circuit breaker for health reporting
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// UploadFile stores audio with the provider and returns its file id
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/files", writer.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("upload response missing file id")
	}

	c.logger.Debug().Str("file_id", out.ID).Int("bytes", len(data)).Msg("Uploaded audio to transcription provider")
	return out.ID, nil
}

// SubmitJob creates a transcription job and returns its id
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job request: %w", err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/jobs", "application/json", bytes.NewReader(payload), &out); err != nil {
		if errors.Is(err, ErrProviderNotConfigured) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrJobSubmissionFailed, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: response omitted job id", ErrJobSubmissionFailed)
	}
	return out.ID, nil
}

// GetJob returns the current job status
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), "", nil, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

// GetTranscript returns the full transcript of a completed job
func (c *Client) GetTranscript(ctx context.Context, jobID string) (*Transcript, error) {
	var transcript Transcript
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/transcript", "", nil, &transcript); err != nil {
		return nil, err
	}
	if transcript.ID == "" {
		transcript.ID = jobID
	}
	return &transcript, nil
}

// do sends one request through the circuit breaker and decodes a JSON body
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if !c.Configured() {
		return ErrProviderNotConfigured
	}

	err := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
			return ErrJobNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &ProviderError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}, countsAsFailure)

	state := c.breaker.GetState()
	observability.UpdateCircuitBreakerState(c.breaker.Name(), int(state))
	if err != nil && countsAsFailure(err) {
		observability.IncrementCircuitBreakerFailures(c.breaker.Name())
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn().Str("path", path).Msg("Transcription provider circuit open, request rejected")
	}
	return err
}

// Client errors (unknown job, bad request) do not indicate an unhealthy provider
func countsAsFailure(err error) bool {
	if errors.Is(err, ErrJobNotFound) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode >= 500 || perr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// errorMessage extracts the provider's message, falling back to the raw body
func errorMessage(data []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		var nested JobError
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if json.Unmarshal(body.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = "no response body"
	}
	return msg
}
