package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/lecture-notes/internal/resilience"
)

// WatchJob polls GetStatus at the configured interval until the job is
// terminal, ctx is cancelled or the maximum polling duration passes. Polls
// never overlap; a poll in flight at cancellation completes and is dropped.
// onUpdate, if set, sees every status. A failed job returns its final status
// together with a *JobFailedError.
func (s *Service) WatchJob(ctx context.Context, jobID string, onUpdate func(*Status) error) (*Status, error) {
	var last *Status
	err := resilience.Poll(ctx, resilience.PollConfig{
		Interval:    s.cfg.PollInterval,
		MaxDuration: s.cfg.PollMaxDuration,
	}, func(pollCtx context.Context) (bool, error) {
		st, err := s.GetStatus(pollCtx, jobID)
		if err != nil {
			return false, err
		}
		// Caller went away; Poll discards this result
		if ctx.Err() != nil {
			return true, nil
		}
		last = st
		if onUpdate != nil {
			if err := onUpdate(st); err != nil {
				return false, err
			}
		}
		return st.Terminal(), nil
	})

	switch {
	case errors.Is(err, resilience.ErrPollDeadline):
		return last, fmt.Errorf("%w: job %s", ErrPollTimeout, jobID)
	case err != nil:
		return last, err
	}

	if last.State == StateError {
		return last, &JobFailedError{JobID: jobID, Type: last.ErrorType, Message: last.Error}
	}
	return last, nil
}
