package store

import (
	"context"

	"github.com/phrazzld/chapterq/internal/domain"
)

// ChapterStateStore persists the last known download state of each chapter.
// Only one row per chapter is kept; a newer job for the same chapter
// replaces the previous state.
type ChapterStateStore interface {
	// Upsert stores state, replacing any existing state for the chapter.
	// Returns ErrInvalidEntity if the state fails validation.
	Upsert(ctx context.Context, state *domain.ChapterState) error

	// Get retrieves the state of a chapter.
	// Returns ErrChapterStateNotFound if nothing is recorded for it.
	Get(ctx context.Context, chapter string) (*domain.ChapterState, error)

	// List returns up to limit states, most recently updated first.
	List(ctx context.Context, limit int) ([]*domain.ChapterState, error)
}
