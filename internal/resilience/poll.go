package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrPollDeadline is returned when polling runs past its configured maximum duration
var ErrPollDeadline = errors.New("polling deadline exceeded")

// PollConfig holds configuration for a fixed-interval polling loop
type PollConfig struct {
	Interval    time.Duration // Delay between the end of one check and the start of the next
	MaxDuration time.Duration // 0 means poll until done or cancelled
}

// PollFunc performs a single check. It reports done=true to stop polling.
type PollFunc func(ctx context.Context) (done bool, err error)

// Poll runs fn immediately and then once per interval until it reports done,
// returns an error, ctx is cancelled, or MaxDuration elapses. Checks never
// overlap. A check that is in flight when ctx is cancelled runs to completion
// on a detached context and its result is discarded.
func Poll(ctx context.Context, cfg PollConfig, fn PollFunc) error {
	start := time.Now()
	detached := context.WithoutCancel(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(detached)

		// Caller went away while the check was in flight
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil || done {
			return err
		}

		if cfg.MaxDuration > 0 && time.Since(start) >= cfg.MaxDuration {
			return ErrPollDeadline
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
}
