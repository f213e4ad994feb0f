package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/observability"
)

// Mode selects how regenerated notes are applied
type Mode string

const (
	// ModeDraft only refreshes ai_notes and keeps the user's final notes
	ModeDraft Mode = "draft"
	// ModeReplace overwrites final notes and fact checks
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode string; empty means "infer from the lecture"
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeDraft, ModeReplace:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// RegenerateRequest re-runs synthesis for a lecture
type RegenerateRequest struct {
	OwnerID   string
	LectureID string
	Mode      Mode // empty infers draft for user-edited notes, replace otherwise
}

// RegenerateResult reports the applied mode
type RegenerateResult struct {
	Mode       Mode   `json:"mode"`
	Title      string `json:"title,omitempty"`
	FactChecks int    `json:"factChecks"`
}

// RegenerateNotes re-synthesizes notes from the stored transcript. Draft mode
// writes only ai_notes. Replace mode overwrites notes, replaces fact checks,
// clears notes_edited and marks the lecture completed.
func (s *Service) RegenerateNotes(ctx context.Context, req RegenerateRequest) (res *RegenerateResult, err error) {
	if strings.TrimSpace(req.LectureID) == "" {
		return nil, ErrMissingLectureID
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}

	timer := observability.StartStage("regenerate")
	ctx, span := observability.StartSpan(ctx, "pipeline.regenerate", attribute.String("lecture_id", req.LectureID))
	defer func() {
		observability.EndSpan(span, err)
		timer.End(err)
	}()

	l, err := s.store.Get(ctx, req.OwnerID, req.LectureID)
	if err != nil {
		return nil, err
	}
	if l.Transcript == nil || strings.TrimSpace(*l.Transcript) == "" {
		return nil, ErrMissingTranscript
	}

	if mode == "" {
		mode = ModeReplace
		if l.NotesEdited {
			mode = ModeDraft
		}
	}
	span.SetAttributes(attribute.String("mode", string(mode)))
	logger := s.logger.With().Str("lecture_id", l.ID).Str("mode", string(mode)).Logger()

	transcript := *l.Transcript
	generated, err := s.synthesizer.Synthesize(ctx, lecture.TranscriptResult{Text: transcript}, l.UserKeypoints)
	if err != nil {
		logger.Error().Err(err).Msg("Regeneration failed")
		return nil, err
	}

	res = &RegenerateResult{Mode: mode, Title: l.Title}
	var update lecture.Update
	switch mode {
	case ModeDraft:
		update = lecture.Update{AINotes: lecture.Ptr(generated)}
	case ModeReplace:
		items := s.checker.Check(ctx, generated, transcript)
		update = lecture.Update{
			AINotes:      lecture.Ptr(generated),
			FinalNotes:   lecture.Ptr(generated),
			FactChecks:   &items,
			NotesEdited:  lecture.Ptr(false),
			Status:       lecture.Ptr(lecture.StatusCompleted),
			ErrorMessage: lecture.Ptr(""),
		}
		if l.IsUntitled() {
			if title, ok := notes.ExtractTitle(generated); ok {
				update.Title = lecture.Ptr(title)
				res.Title = title
			}
		}
		res.FactChecks = len(items)
	}

	if _, err := s.store.Update(ctx, req.OwnerID, req.LectureID, update); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Subject:    events.SubjectRegenerated,
		LectureID:  l.ID,
		OwnerID:    l.OwnerID,
		Mode:       string(mode),
		Title:      res.Title,
		FactChecks: res.FactChecks,
	})
	logger.Info().Int("fact_checks", res.FactChecks).Msg("Notes regenerated")
	return res, nil
}

// EditNotes stores a user edit of the final notes. Stored fact checks no
// longer describe the edited text and are cleared.
func (s *Service) EditNotes(ctx context.Context, ownerID, lectureID, finalNotes string) (lecture.Lecture, error) {
	if strings.TrimSpace(lectureID) == "" {
		return lecture.Lecture{}, ErrMissingLectureID
	}
	var cleared []lecture.FactCheckItem
	l, err := s.store.Update(ctx, ownerID, lectureID, lecture.Update{
		FinalNotes:  lecture.Ptr(finalNotes),
		NotesEdited: lecture.Ptr(true),
		FactChecks:  &cleared,
	})
	if err != nil {
		return lecture.Lecture{}, err
	}
	s.publish(ctx, events.Event{Subject: events.SubjectNotesEdited, LectureID: l.ID, OwnerID: l.OwnerID})
	return l, nil
}
