package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAudioURL   = errors.New("missing audioUrl")
	ErrMissingJobID      = errors.New("missing jobId")
	ErrMissingLectureID  = errors.New("missing lectureId")
	ErrMissingTranscript = errors.New("missing transcript")
	ErrInvalidMode       = errors.New("invalid regeneration mode")
	ErrPollTimeout       = errors.New("transcription polling timed out")
)

// JobFailedError is a terminal provider-side job failure
type JobFailedError struct {
	JobID   string
	Type    string
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("transcription job %s failed: %s", e.JobID, e.Message)
	}
	return fmt.Sprintf("transcription job %s failed (%s): %s", e.JobID, e.Type, e.Message)
}
