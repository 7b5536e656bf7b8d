package domain

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/google/uuid"
)

// Common validation errors for Job
var (
	ErrEmptyJobID      = errors.New("job ID cannot be empty")
	ErrEmptyJobTitle   = errors.New("job title cannot be empty")
	ErrEmptyJobChapter = errors.New("job chapter cannot be empty")
	ErrInvalidPageURL  = errors.New("page URL must be an absolute http(s) URL")
)

// Job is one unit of download work: a single chapter of a title.
// It is a value type; once built with NewJob it is never mutated, and the
// outcome of running it is reported elsewhere rather than stored on it.
type Job struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Chapter string    `json:"chapter"`
	Pages   []string  `json:"pages,omitempty"`
}

// NewJob creates a Job with a fresh ID. The pages slice is copied so the
// caller can't mutate the job after it has been queued.
func NewJob(title, chapter string, pages []string) (Job, error) {
	job := Job{
		ID:      uuid.New(),
		Title:   title,
		Chapter: chapter,
		Pages:   slices.Clone(pages),
	}

	if err := job.Validate(); err != nil {
		return Job{}, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.Title == "" {
		return ErrEmptyJobTitle
	}

	if j.Chapter == "" {
		return ErrEmptyJobChapter
	}

	for i, page := range j.Pages {
		u, err := url.Parse(page)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: page %d", ErrInvalidPageURL, i)
		}
	}

	return nil
}

// DisplayName is the human-readable label used in progress messages.
func (j Job) DisplayName() string {
	return j.Title + " - " + j.Chapter
}
