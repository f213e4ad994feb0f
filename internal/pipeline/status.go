package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

// State is the caller-facing job state
type State string

const (
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Status is the result of a single status query
type Status struct {
	JobID      string              `json:"jobId"`
	State      State               `json:"status"`
	Transcript string              `json:"transcript,omitempty"`
	Utterances []lecture.Utterance `json:"-"`
	Error      string              `json:"error,omitempty"`
	ErrorType  string              `json:"errorType,omitempty"`
}

// Terminal reports whether polling should stop
func (st *Status) Terminal() bool {
	return st.State == StateCompleted || st.State == StateError
}

// GetStatus queries the provider once. It never schedules further polls and
// never mutates lectures.
func (s *Service) GetStatus(ctx context.Context, jobID string) (st *Status, err error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrMissingJobID
	}
	if s.provider == nil || !s.provider.Configured() {
		return nil, transcription.ErrProviderNotConfigured
	}

	ctx, span := observability.StartSpan(ctx, "pipeline.get_status", attribute.String("job_id", jobID))
	defer func() { observability.EndSpan(span, err) }()

	job, err := s.provider.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case transcription.JobFailed:
		st := &Status{JobID: jobID, State: StateError, Error: "transcription failed"}
		if job.Error != nil {
			st.ErrorType = job.Error.Type
			if job.Error.Message != "" {
				st.Error = job.Error.Message
			}
		}
		return st, nil
	case transcription.JobCompleted:
		return s.resolveTranscript(ctx, job)
	default:
		return &Status{JobID: jobID, State: StateProcessing}, nil
	}
}

// resolveTranscript picks the final text: a target-language translation on
// the status response, then one on the full transcript, then the raw text,
// then the no-speech placeholder. Remaining non-ASCII text gets a
// best-effort model translation.
func (s *Service) resolveTranscript(ctx context.Context, job *transcription.Job) (*Status, error) {
	logger := s.logger.With().Str("job_id", job.ID).Logger()
	st := &Status{JobID: job.ID, State: StateCompleted}

	if text := transcription.FindTranslation(job.Translations, s.cfg.TargetLanguage); text != "" {
		st.Transcript = text
		return st, nil
	}

	raw := job.Text
	full, err := s.provider.GetTranscript(ctx, job.ID)
	switch {
	case err == nil:
		if text := transcription.FindTranslation(full.Translations, s.cfg.TargetLanguage); text != "" {
			st.Transcript = text
			return st, nil
		}
		result := full.Result()
		if strings.TrimSpace(result.Text) != "" {
			raw = result.Text
			st.Utterances = result.Utterances
		}
		logger.Debug().
			Float64("duration_seconds", result.DurationSeconds).
			Int("utterances", len(result.Utterances)).
			Msg("Transcript fetched")
	case strings.TrimSpace(raw) != "":
		logger.Warn().Err(err).Msg("Transcript fetch failed, using status text")
	default:
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}

	if strings.TrimSpace(raw) == "" {
		st.Transcript = transcription.NoSpeechPlaceholder
		st.Utterances = nil
		return st, nil
	}
	st.Transcript = raw

	if transcription.NeedsTranslation(raw) {
		if translated, ok := s.translate(ctx, raw); ok {
			st.Transcript = translated
			// Utterances are in the source language
			st.Utterances = nil
		}
	}
	return st, nil
}
