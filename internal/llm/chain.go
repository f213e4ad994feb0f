package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/resilience"
)

// AllModelsFailedError is returned once every model in a chain has failed
type AllModelsFailedError struct {
	Provider string
	Models   []string
	Last     error
}

func (e *AllModelsFailedError) Error() string {
	return fmt.Sprintf("all models failed for provider %s (tried %s): last error: %v",
		e.Provider, strings.Join(e.Models, ", "), e.Last)
}

func (e *AllModelsFailedError) Unwrap() error {
	return e.Last
}

// Tier is one provider with its ordered model list
type Tier struct {
	Provider Provider
	Models   []string
}

// Chain is an ordered model fallback list bound to a single provider
type Chain struct {
	Name        string
	Provider    Provider
	Models      []string
	Backoff     time.Duration
	Temperature float64
	MaxTokens   int
	logger      zerolog.Logger
}

// ChainOptions are the per-stage generation settings
type ChainOptions struct {
	Backoff     time.Duration
	Temperature float64
	MaxTokens   int
	Logger      zerolog.Logger
}

// NewChain binds the first tier that has a provider and at least one model.
// Later tiers are only used when earlier ones are unconfigured.
func NewChain(name string, tiers []Tier, opts ChainOptions) (*Chain, error) {
	for _, tier := range tiers {
		if tier.Provider == nil || len(tier.Models) == 0 {
			continue
		}
		return &Chain{
			Name:        name,
			Provider:    tier.Provider,
			Models:      append([]string(nil), tier.Models...),
			Backoff:     opts.Backoff,
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
			logger: opts.Logger.With().
				Str("component", "llm_chain").
				Str("chain", name).
				Str("provider", tier.Provider.Name()).
				Logger(),
		}, nil
	}
	return nil, ErrNoProviderConfigured
}

// Result is a successful completion and the model that produced it
type Result struct {
	Text  string
	Model string
}

// Complete tries each model in order and returns the first non-empty answer.
// A nil chain reports ErrNoProviderConfigured.
func (c *Chain) Complete(ctx context.Context, system, prompt string) (*Result, error) {
	if c == nil || c.Provider == nil {
		return nil, ErrNoProviderConfigured
	}

	var text string
	model, err := resilience.Fallback(ctx, c.Models, c.Backoff, func(ctx context.Context, model string) error {
		resp, err := c.Provider.Complete(ctx, Request{
			Model:       model,
			System:      system,
			Prompt:      prompt,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		})
		if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
			err = resilience.ErrEmptyResult
		}
		if err != nil {
			observability.RecordModelAttempt(c.Name, model, outcome(err))
			c.logger.Warn().Err(err).Str("model", model).Msg("Model attempt failed, trying next")
			return err
		}
		observability.RecordModelAttempt(c.Name, model, "success")
		text = resp.Content
		return nil
	})
	if err != nil {
		var exhausted *resilience.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, &AllModelsFailedError{
				Provider: c.Provider.Name(),
				Models:   exhausted.Names(),
				Last:     exhausted.Last(),
			}
		}
		return nil, err
	}

	c.logger.Debug().Str("model", model).Msg("Model attempt succeeded")
	return &Result{Text: strings.TrimSpace(text), Model: model}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, resilience.ErrEmptyResult):
		return "empty"
	case IsQuotaError(err):
		return "quota"
	case isServerError(err), resilience.IsRetryableNetworkError(err):
		return "transient"
	default:
		return "error"
	}
}

func isServerError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError
}
