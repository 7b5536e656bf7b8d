package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/platform/postgres"
	"github.com/phrazzld/chapterq/internal/platform/sqlite"
	"github.com/phrazzld/chapterq/internal/store"
)

// setupAppDatabase opens the configured database and verifies the connection.
func setupAppDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.URL)
	case "postgres":
		db, err = postgres.Open(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	logger.Info("Database connection established", "driver", cfg.Driver)
	return db, nil
}

// newChapterStateStore returns the chapter-state store for driver.
func newChapterStateStore(driver string, db store.DBTX, logger *slog.Logger) (store.ChapterStateStore, error) {
	switch driver {
	case "sqlite":
		return sqlite.NewChapterStateStore(db, logger), nil
	case "postgres":
		return postgres.NewChapterStateStore(db, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
