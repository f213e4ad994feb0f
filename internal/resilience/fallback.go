package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyResult marks an attempt that succeeded at the transport level but
// produced nothing usable.
var ErrEmptyResult = errors.New("empty result")

// Attempt records the outcome of one entry in a fallback chain
type Attempt struct {
	Name string
	Err  error
}

// ExhaustedError is returned when every entry in a fallback chain failed
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed (%s): %v", len(e.Attempts), strings.Join(e.Names(), ", "), e.Last())
}

// Unwrap exposes the last underlying failure
func (e *ExhaustedError) Unwrap() error {
	return e.Last()
}

// Names returns the attempted entries in order
func (e *ExhaustedError) Names() []string {
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Name
	}
	return names
}

// Last returns the final attempt's error
func (e *ExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// AttemptFunc runs one entry of a fallback chain
type AttemptFunc func(ctx context.Context, name string) error

// Fallback tries each name strictly in order and returns the first one whose
// attempt succeeds. Between failed attempts it waits a flat backoff. When every
// attempt fails the result is an *ExhaustedError carrying all of them.
func Fallback(ctx context.Context, names []string, backoff time.Duration, fn AttemptFunc) (string, error) {
	if len(names) == 0 {
		return "", errors.New("fallback chain is empty")
	}

	attempts := make([]Attempt, 0, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		err := fn(ctx, name)
		if err == nil {
			return name, nil
		}
		attempts = append(attempts, Attempt{Name: name, Err: err})

		// Don't sleep after the last attempt
		if i < len(names)-1 && backoff > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", &ExhaustedError{Attempts: attempts}
}

// IsRetryableNetworkError checks if an error looks like a transient upstream failure
func IsRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyResult) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"timeout",
		"unavailable",
		"rate limit",
		"resource exhausted",
		"status 429",
		"status 503",
	} {
		if strings.Contains(errStr, substr) {
			return true
		}
	}
	return false
}
