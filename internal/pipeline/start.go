package pipeline

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/observability"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

// StartRequest launches transcription of a recording
type StartRequest struct {
	OwnerID      string
	AudioURL     string
	LectureID    string // optional; moves the lecture to processing
	PreferUpload bool
}

// StartTranscription validates the audio, submits a job and returns its id.
// When a lecture id is given the lecture moves from recording to processing.
func (s *Service) StartTranscription(ctx context.Context, req StartRequest) (jobID string, err error) {
	timer := observability.StartStage("start_transcription")
	ctx, span := observability.StartSpan(ctx, "pipeline.start_transcription",
		attribute.String("lecture_id", req.LectureID),
		attribute.Bool("prefer_upload", req.PreferUpload))
	defer func() {
		observability.EndSpan(span, err)
		timer.End(err)
	}()

	audioURL := strings.TrimSpace(req.AudioURL)
	if audioURL == "" {
		return "", ErrMissingAudioURL
	}
	if s.provider == nil || !s.provider.Configured() {
		return "", transcription.ErrProviderNotConfigured
	}

	logger := s.logger.With().Str("lecture_id", req.LectureID).Logger()

	if req.LectureID != "" {
		if _, err := s.store.Get(ctx, req.OwnerID, req.LectureID); err != nil {
			return "", err
		}
	}

	if s.preflight != nil {
		if _, err := s.preflight.Check(ctx, audioURL); err != nil {
			logger.Warn().Err(err).Str("audio_url", audioURL).Msg("Audio failed preflight")
			return "", err
		}
	}

	jobReq := transcription.JobRequest{
		AudioURL: audioURL,
		Config: transcription.JobConfig{
			LanguageHints:          s.cfg.LanguageHints,
			LanguageIdentification: true,
			Diarization:            true,
			Translation:            &transcription.TranslationConfig{TargetLanguages: []string{s.cfg.TargetLanguage}},
		},
	}
	if req.PreferUpload {
		if fileID, err := s.upload(ctx, audioURL); err != nil {
			logger.Warn().Err(err).Msg("Audio upload failed, submitting by URL")
		} else {
			jobReq.FileID = fileID
			jobReq.AudioURL = ""
		}
	}

	jobID, err = s.provider.SubmitJob(ctx, jobReq)
	if err != nil {
		logger.Error().Err(err).Msg("Transcription job submission failed")
		return "", err
	}
	logger = logger.With().Str("job_id", jobID).Logger()

	if req.LectureID != "" {
		_, err := s.store.Update(ctx, req.OwnerID, req.LectureID, lecture.Update{
			Status:       lecture.Ptr(lecture.StatusProcessing),
			JobID:        lecture.Ptr(jobID),
			ErrorMessage: lecture.Ptr(""),
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to mark lecture processing")
			return "", err
		}
	}

	s.publish(ctx, events.Event{
		Subject:   events.SubjectTranscriptionStarted,
		LectureID: req.LectureID,
		OwnerID:   req.OwnerID,
		JobID:     jobID,
	})
	logger.Info().Bool("uploaded", jobReq.FileID != "").Msg("Transcription job submitted")
	return jobID, nil
}

func (s *Service) upload(ctx context.Context, audioURL string) (string, error) {
	payload, err := audio.Fetch(ctx, s.audioClient, audioURL)
	if err != nil {
		return "", err
	}
	return s.provider.UploadFile(ctx, payload.Filename(), payload.ContentType, payload.Data)
}
