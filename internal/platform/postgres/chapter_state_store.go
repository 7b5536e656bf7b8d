package postgres

import (
	"log/slog"
	"strconv"

	"github.com/phrazzld/chapterq/internal/platform/sqlstore"
	"github.com/phrazzld/chapterq/internal/store"
)

// Dialect is the PostgreSQL flavour of sqlstore: "$n" placeholders.
var Dialect = sqlstore.Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	MapError:    MapError,
}

// NewChapterStateStore creates a chapter-state store backed by PostgreSQL.
func NewChapterStateStore(db store.DBTX, logger *slog.Logger) *sqlstore.ChapterStateStore {
	return sqlstore.NewChapterStateStore(db, Dialect, logger)
}
