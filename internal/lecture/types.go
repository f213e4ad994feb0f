// Package lecture defines the lecture record the pipeline reads and mutates,
// and the stores that persist it.
package lecture

import (
	"context"
	"errors"
	"time"
)

// Status is the lecture lifecycle state
type Status string

const (
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// UntitledTitle is the sentinel title given to lectures before notes exist
const UntitledTitle = "Untitled Lecture"

// ErrNotFound is returned when no lecture matches the id and owner
var ErrNotFound = errors.New("lecture not found")

// Keypoint is a moment the user marked while recording
type Keypoint struct {
	Timestamp int    `json:"timestamp"` // Seconds from the start of the recording
	Note      string `json:"note"`
}

// Severity grades a fact-check correction
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// FactCheckItem is a single high-confidence correction of the notes
type FactCheckItem struct {
	Claim       string   `json:"claim"`
	Correction  string   `json:"correction"`
	Rationale   string   `json:"rationale"`
	Confidence  float64  `json:"confidence"`
	Severity    Severity `json:"severity"`
	SourceQuote string   `json:"source_quote,omitempty"`
}

// Utterance is one diarized speaker turn
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// TranscriptResult is a normalized transcript. When Utterances is empty, Text
// is authoritative.
type TranscriptResult struct {
	ID              string      `json:"id"`
	Text            string      `json:"text"`
	Utterances      []Utterance `json:"utterances,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// Lecture is the record owned by the surrounding application
type Lecture struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Status        Status          `json:"status"`
	AudioURL      string          `json:"audio_url"`
	JobID         string          `json:"job_id,omitempty"`
	Transcript    *string         `json:"transcript"`
	UserKeypoints []Keypoint      `json:"user_keypoints"`
	AINotes       string          `json:"ai_notes"`
	FinalNotes    string          `json:"final_notes"`
	NotesEdited   bool            `json:"notes_edited"`
	FactChecks    []FactCheckItem `json:"fact_checks"` // nil means no fact-check has been stored
	ErrorMessage  string          `json:"error_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsUntitled reports whether the title is still the sentinel value
func (l *Lecture) IsUntitled() bool {
	return l.Title == "" || l.Title == UntitledTitle
}

// Update is a partial update; nil fields are left untouched. FactChecks set
// to a pointer to a nil slice clears the stored list.
type Update struct {
	Status       *Status
	JobID        *string
	Transcript   *string
	AINotes      *string
	FinalNotes   *string
	NotesEdited  *bool
	FactChecks   *[]FactCheckItem
	Title        *string
	ErrorMessage *string
}

// Apply copies the set fields of u onto l
func (u Update) Apply(l *Lecture) {
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.JobID != nil {
		l.JobID = *u.JobID
	}
	if u.Transcript != nil {
		t := *u.Transcript
		l.Transcript = &t
	}
	if u.AINotes != nil {
		l.AINotes = *u.AINotes
	}
	if u.FinalNotes != nil {
		l.FinalNotes = *u.FinalNotes
	}
	if u.NotesEdited != nil {
		l.NotesEdited = *u.NotesEdited
	}
	if u.FactChecks != nil {
		if *u.FactChecks == nil {
			l.FactChecks = nil
		} else {
			l.FactChecks = append([]FactCheckItem{}, (*u.FactChecks)...)
		}
	}
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.ErrorMessage != nil {
		l.ErrorMessage = *u.ErrorMessage
	}
}

// Cursor is a position in (updated_at, id) order. The zero Cursor starts at
// the beginning.
type Cursor struct {
	UpdatedAt time.Time
	ID        string
}

// Cursor returns the position just after l
func (l *Lecture) Cursor() Cursor {
	return Cursor{UpdatedAt: l.UpdatedAt, ID: l.ID}
}

// before reports whether l sorts before c
func (c Cursor) before(l Lecture) bool {
	if !l.UpdatedAt.Equal(c.UpdatedAt) {
		return c.UpdatedAt.Before(l.UpdatedAt)
	}
	return c.ID < l.ID
}

// Store is the durable lecture record store. Get and Update are scoped to the
// owner; ListByStatus is an unscoped maintenance query returning up to limit
// lectures after the cursor, oldest update first.
type Store interface {
	Create(ctx context.Context, l Lecture) (Lecture, error)
	Get(ctx context.Context, ownerID, id string) (Lecture, error)
	Update(ctx context.Context, ownerID, id string, u Update) (Lecture, error)
	ListByStatus(ctx context.Context, status Status, after Cursor, limit int) ([]Lecture, error)
	Ping(ctx context.Context) error
}

// Ptr returns a pointer to v, for building Updates
func Ptr[T any](v T) *T {
	return &v
}
