package downloader

import "errors"

var (
	// ErrNoPages is returned for a job without any page URLs.
	ErrNoPages = errors.New("job has no pages")

	// ErrUnexpectedStatus is returned when a page request does not answer 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrPageTooLarge is returned when a page exceeds the configured size limit.
	ErrPageTooLarge = errors.New("page exceeds size limit")

	// ErrNotImage is returned when a page body is not a recognised image.
	ErrNotImage = errors.New("page is not an image")

	// ErrChapterLocked is returned when another process holds the chapter directory.
	ErrChapterLocked = errors.New("chapter directory is locked")
)
