// Package events publishes lecture lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"
)

// Lecture lifecycle subjects
const (
	SubjectTranscriptionStarted = "lectures.transcription.started"
	SubjectCompleted            = "lectures.completed"
	SubjectFailed               = "lectures.failed"
	SubjectRegenerated          = "lectures.regenerated"
	SubjectNotesEdited          = "lectures.notes.edited"
)

// Event is the JSON payload published on every subject
type Event struct {
	Subject     string    `json:"-"`
	LectureID   string    `json:"lecture_id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	JobID       string    `json:"job_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Mode        string    `json:"mode,omitempty"`
	FactChecks  int       `json:"fact_checks,omitempty"`
	Error       string    `json:"error,omitempty"`
	Correlation string    `json:"correlation_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher delivers lifecycle events. Publish errors are for logging only.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Healthy() bool
	Close()
}

// Noop discards every event
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Healthy() bool                        { return true }
func (Noop) Close()                               {}
