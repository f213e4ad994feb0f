package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

const reconcileBatch = 50

// Reconciler finishes lectures left in processing when no client stayed
// around to poll their job.
type Reconciler struct {
	svc    *Service
	logger zerolog.Logger

	mu      sync.Mutex // one sweep at a time
	running bool
}

// NewReconciler creates a reconciler over svc's store
func NewReconciler(svc *Service, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		svc:    svc,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// Register schedules Run on c using a robfig cron expression such as "@every 1m"
func (r *Reconciler) Register(ctx context.Context, c *cron.Cron, schedule string) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		if _, err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error().Err(err).Msg("Reconcile sweep failed")
		}
	})
}

// SweepResult counts what one sweep did
type SweepResult struct {
	Checked   int
	Completed int
	Failed    int
	Pending   int
}

// Run queries each processing lecture's job once and finalizes terminal ones.
// Overlapping calls return immediately.
func (r *Reconciler) Run(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return res, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	timer := observability.StartStage("reconcile")
	var after lecture.Cursor
	for ctx.Err() == nil {
		page, err := r.svc.store.ListByStatus(ctx, lecture.StatusProcessing, after, reconcileBatch)
		if err != nil {
			timer.End(err)
			return res, err
		}
		for _, l := range page {
			if ctx.Err() != nil {
				break
			}
			r.reconcile(ctx, l, &res)
		}
		if len(page) < reconcileBatch {
			break
		}
		// Finalized lectures leave the processing set; pending ones keep their place
		after = page[len(page)-1].Cursor()
	}

	timer.End(nil)
	if res.Checked > 0 {
		r.logger.Info().
			Int("checked", res.Checked).
			Int("completed", res.Completed).
			Int("failed", res.Failed).
			Int("pending", res.Pending).
			Msg("Reconcile sweep finished")
	}
	return res, nil
}

// reconcile checks one lecture's job and finalizes it when terminal
func (r *Reconciler) reconcile(ctx context.Context, l lecture.Lecture, res *SweepResult) {
	if l.JobID == "" {
		return
	}
	res.Checked++
	logger := r.logger.With().Str("lecture_id", l.ID).Str("job_id", l.JobID).Logger()

	st, err := r.svc.GetStatus(ctx, l.JobID)
	if errors.Is(err, transcription.ErrJobNotFound) {
		if ferr := r.svc.FailLecture(ctx, l.OwnerID, l.ID, "transcription job no longer exists"); ferr == nil {
			res.Failed++
		}
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Status check failed during reconcile")
		return
	}
	if !st.Terminal() {
		res.Pending++
		return
	}

	_, err = r.svc.Finalize(ctx, l.OwnerID, l.ID, st)
	var jobErr *JobFailedError
	switch {
	case err == nil:
		res.Completed++
	case errors.As(err, &jobErr):
		res.Failed++
	default:
		res.Failed++
		logger.Warn().Err(err).Msg("Failed to finalize lecture")
	}
}
