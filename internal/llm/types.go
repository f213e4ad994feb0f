// Package llm calls OpenAI-compatible chat models and runs ordered model
// fallback chains over them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoProviderConfigured is returned when no language model provider has credentials
var ErrNoProviderConfigured = errors.New("no language model provider configured")

// Request is a single-turn completion request
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Usage holds token usage if the provider reports it
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the parsed completion
type Response struct {
	Content string
	Usage   Usage
}

// Provider is a language model backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// APIError is a non-success HTTP response from a provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// IsQuotaError reports whether err looks like rate limiting or quota exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "rate limit")
}
