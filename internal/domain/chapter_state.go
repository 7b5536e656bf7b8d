package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChapterStatus is the last known download state of a chapter.
type ChapterStatus string

// Possible chapter status values
const (
	ChapterStatusQueued      ChapterStatus = "queued"
	ChapterStatusDownloading ChapterStatus = "downloading"
	ChapterStatusCompleted   ChapterStatus = "completed"
	ChapterStatusFailed      ChapterStatus = "failed"
	ChapterStatusCancelled   ChapterStatus = "cancelled"
)

// ChapterState is what the download-state tracker remembers about a chapter.
// Only the latest job for a chapter is kept.
type ChapterState struct {
	Chapter      string        `json:"chapter"`
	JobID        uuid.UUID     `json:"job_id"`
	Title        string        `json:"title"`
	Status       ChapterStatus `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Valid reports whether s is one of the known chapter statuses.
func (s ChapterStatus) Valid() bool {
	switch s {
	case ChapterStatusQueued,
		ChapterStatusDownloading,
		ChapterStatusCompleted,
		ChapterStatusFailed,
		ChapterStatusCancelled:
		return true
	}
	return false
}

// Validate checks if the ChapterState has valid data.
func (c ChapterState) Validate() error {
	if c.Chapter == "" {
		return ErrEmptyJobChapter
	}

	if c.JobID == uuid.Nil {
		return ErrEmptyJobID
	}

	if !c.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidChapterStatus, c.Status)
	}

	return nil
}
