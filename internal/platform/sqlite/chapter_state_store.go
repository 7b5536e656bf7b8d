package sqlite

import (
	"log/slog"

	"github.com/phrazzld/chapterq/internal/platform/sqlstore"
	"github.com/phrazzld/chapterq/internal/store"
)

// Dialect is the SQLite flavour of sqlstore: "?" placeholders.
var Dialect = sqlstore.Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	MapError:    MapError,
}

// NewChapterStateStore creates a chapter-state store backed by SQLite.
func NewChapterStateStore(db store.DBTX, logger *slog.Logger) *sqlstore.ChapterStateStore {
	return sqlstore.NewChapterStateStore(db, Dialect, logger)
}
