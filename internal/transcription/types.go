// Package transcription talks to the asynchronous speech-to-text provider:
// file upload, job submission, job status and transcript retrieval.
package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/lecture-notes/internal/lecture"
)

var (
	// ErrProviderNotConfigured is returned when no provider API key is set
	ErrProviderNotConfigured = errors.New("transcription provider not configured")
	// ErrJobSubmissionFailed is returned when the provider rejects a job or omits its id
	ErrJobSubmissionFailed = errors.New("transcription job submission failed")
	// ErrJobNotFound is returned when the provider does not recognize a job id
	ErrJobNotFound = errors.New("transcription job not found")
)

// ProviderError carries a non-success provider response with its raw message
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("transcription provider returned status %d: %s", e.StatusCode, e.Message)
}

// JobStatus is the provider-reported job state
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "error"
)

// JobError is the provider's description of a failed job
type JobError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Translation is one provider-side translation of the transcript
type Translation struct {
	TargetLanguage string `json:"target_language"`
	Text           string `json:"text"`
}

// Job is the status view of a transcription job
type Job struct {
	ID           string        `json:"id"`
	Status       JobStatus     `json:"status"`
	Error        *JobError     `json:"error,omitempty"`
	Text         string        `json:"text,omitempty"`
	Translations []Translation `json:"translations,omitempty"`
}

// Transcript is the full transcript object of a completed job
type Transcript struct {
	ID              string              `json:"id"`
	Text            string              `json:"text"`
	Utterances      []lecture.Utterance `json:"utterances,omitempty"`
	Translations    []Translation       `json:"translations,omitempty"`
	DurationSeconds float64             `json:"duration_seconds"`
}

// Result normalizes the transcript into the lecture model
func (t *Transcript) Result() lecture.TranscriptResult {
	return lecture.TranscriptResult{
		ID:              t.ID,
		Text:            t.Text,
		Utterances:      t.Utterances,
		DurationSeconds: t.DurationSeconds,
	}
}

// TranslationConfig asks the provider to translate into target languages
type TranslationConfig struct {
	TargetLanguages []string `json:"target_languages"`
}

// JobConfig is the fixed per-job recognition configuration
type JobConfig struct {
	LanguageHints          []string           `json:"language_hints,omitempty"`
	LanguageIdentification bool               `json:"language_identification"`
	Diarization            bool               `json:"diarization"`
	Translation            *TranslationConfig `json:"translation,omitempty"`
}

// JobRequest references the audio either by uploaded file id or by URL
type JobRequest struct {
	FileID   string    `json:"file_id,omitempty"`
	AudioURL string    `json:"audio_url,omitempty"`
	Config   JobConfig `json:"config"`
}

// Provider is the asynchronous transcription service
type Provider interface {
	Configured() bool
	UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error)
	SubmitJob(ctx context.Context, req JobRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetTranscript(ctx context.Context, jobID string) (*Transcript, error)
}
