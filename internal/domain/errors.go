package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidChapterStatus is returned when a chapter status is not valid.
	ErrInvalidChapterStatus = errors.New("invalid chapter status")
)
