package pipeline

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/observability"
)

// CompleteRequest finishes a lecture from its resolved transcript
type CompleteRequest struct {
	OwnerID    string
	LectureID  string
	Transcript string
	Utterances []lecture.Utterance // optional speaker turns for richer prompts
}

// CompleteResult is what the caller learns about the completed lecture
type CompleteResult struct {
	LectureID  string `json:"lectureId"`
	Title      string `json:"title"`
	Skipped    bool   `json:"skipped,omitempty"`
	FactChecks int    `json:"factChecks"`
}

// CompleteAndSynthesize stores the transcript, synthesizes and fact-checks
// notes, and marks the lecture completed.
//
// A lecture that is already completed with non-empty final notes is left
// alone and reported as skipped. The guard is a read followed by a write, not
// a transaction; overlapping completions of the same lecture produce
// equivalent results.
func (s *Service) CompleteAndSynthesize(ctx context.Context, req CompleteRequest) (res *CompleteResult, err error) {
	if strings.TrimSpace(req.LectureID) == "" {
		return nil, ErrMissingLectureID
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, ErrMissingTranscript
	}

	timer := observability.StartStage("complete")
	ctx, span := observability.StartSpan(ctx, "pipeline.complete", attribute.String("lecture_id", req.LectureID))
	defer func() {
		observability.EndSpan(span, err)
		timer.End(err)
	}()

	logger := s.logger.With().Str("lecture_id", req.LectureID).Logger()

	l, err := s.store.Get(ctx, req.OwnerID, req.LectureID)
	if err != nil {
		return nil, err
	}
	if l.Status == lecture.StatusCompleted && strings.TrimSpace(l.FinalNotes) != "" {
		observability.RecordCompletionSkipped()
		logger.Info().Msg("Lecture already completed, skipping synthesis")
		return &CompleteResult{LectureID: l.ID, Title: l.Title, Skipped: true, FactChecks: len(l.FactChecks)}, nil
	}

	if _, err := s.store.Update(ctx, req.OwnerID, req.LectureID, lecture.Update{Transcript: lecture.Ptr(req.Transcript)}); err != nil {
		return nil, err
	}

	transcript := lecture.TranscriptResult{Text: req.Transcript, Utterances: req.Utterances}
	generated, err := s.synthesizer.Synthesize(ctx, transcript, l.UserKeypoints)
	if err != nil {
		logger.Error().Err(err).Msg("Note synthesis failed, storing transcript with explanation")
		fallback := notes.FailureNotes(req.Transcript, err)
		if _, uerr := s.store.Update(ctx, req.OwnerID, req.LectureID, lecture.Update{
			AINotes:      lecture.Ptr(fallback),
			FinalNotes:   lecture.Ptr(fallback),
			Status:       lecture.Ptr(lecture.StatusError),
			ErrorMessage: lecture.Ptr(err.Error()),
		}); uerr != nil {
			logger.Error().Err(uerr).Msg("Failed to record synthesis failure")
		}
		s.publish(ctx, events.Event{Subject: events.SubjectFailed, LectureID: l.ID, OwnerID: l.OwnerID, JobID: l.JobID, Error: err.Error()})
		return nil, err
	}

	items := s.checker.Check(ctx, generated, req.Transcript)

	update := lecture.Update{
		AINotes:      lecture.Ptr(generated),
		FinalNotes:   lecture.Ptr(generated),
		NotesEdited:  lecture.Ptr(false),
		FactChecks:   &items,
		Status:       lecture.Ptr(lecture.StatusCompleted),
		ErrorMessage: lecture.Ptr(""),
	}
	title := l.Title
	if l.IsUntitled() {
		if extracted, ok := notes.ExtractTitle(generated); ok {
			title = extracted
			update.Title = lecture.Ptr(extracted)
		}
	}

	if _, err := s.store.Update(ctx, req.OwnerID, req.LectureID, update); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Subject:    events.SubjectCompleted,
		LectureID:  l.ID,
		OwnerID:    l.OwnerID,
		JobID:      l.JobID,
		Title:      title,
		FactChecks: len(items),
	})
	logger.Info().Str("title", title).Int("fact_checks", len(items)).Msg("Lecture completed")
	return &CompleteResult{LectureID: l.ID, Title: title, FactChecks: len(items)}, nil
}

// FailLecture records a terminal failure on the lecture
func (s *Service) FailLecture(ctx context.Context, ownerID, lectureID, message string) error {
	if strings.TrimSpace(lectureID) == "" {
		return ErrMissingLectureID
	}
	l, err := s.store.Update(ctx, ownerID, lectureID, lecture.Update{
		Status:       lecture.Ptr(lecture.StatusError),
		ErrorMessage: lecture.Ptr(message),
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.Event{Subject: events.SubjectFailed, LectureID: l.ID, OwnerID: l.OwnerID, JobID: l.JobID, Error: message})
	s.logger.Warn().Str("lecture_id", lectureID).Str("error", message).Msg("Lecture marked as failed")
	return nil
}

// Finalize applies a terminal status to a lecture: completion for a finished
// job and a recorded failure for a failed one.
func (s *Service) Finalize(ctx context.Context, ownerID, lectureID string, st *Status) (*CompleteResult, error) {
	switch st.State {
	case StateCompleted:
		return s.CompleteAndSynthesize(ctx, CompleteRequest{
			OwnerID:    ownerID,
			LectureID:  lectureID,
			Transcript: st.Transcript,
			Utterances: st.Utterances,
		})
	case StateError:
		jobErr := &JobFailedError{JobID: st.JobID, Type: st.ErrorType, Message: st.Error}
		if err := s.FailLecture(ctx, ownerID, lectureID, st.Error); err != nil {
			return nil, err
		}
		return nil, jobErr
	}
	return nil, nil
}
