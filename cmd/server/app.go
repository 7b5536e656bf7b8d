package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/chapterq/internal/config"
	"github.com/phrazzld/chapterq/internal/downloader"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/host"
	"github.com/phrazzld/chapterq/internal/service/auth"
	"github.com/phrazzld/chapterq/internal/store"
	"github.com/phrazzld/chapterq/internal/task"
	"github.com/phrazzld/chapterq/internal/tracker"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	chapterStates store.ChapterStateStore
	tracker       *tracker.Tracker

	// Event system: cancel requests and failure broadcasts
	emitter *events.InMemoryEventEmitter

	// Host side of the processor
	activity *host.Activity
	failures *host.FailureReporter

	queue     *task.TaskQueue
	processor *task.QueueProcessor

	// jwtService is nil when auth.jwt_secret is empty
	jwtService auth.JWTService
}

// newApplication wires every component around an open, migrated database.
// client is used by the downloader; nil means http.DefaultClient.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB, client *http.Client) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		logger.Info("JWT authentication enabled",
			"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)
	} else {
		logger.Warn("JWT authentication disabled: auth.jwt_secret is not set")
	}

	app.chapterStates, err = newChapterStateStore(cfg.Database.Driver, db, logger)
	if err != nil {
		return nil, err
	}
	app.tracker = tracker.New(app.chapterStates, logger)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.tracker)

	app.activity = host.NewActivity(host.DefaultMessageLimit, logger)
	app.failures = host.NewFailureReporter(app.emitter, logger)

	app.queue = task.NewTaskQueue(logger)
	app.processor, err = task.NewQueueProcessor(app.queue, task.ProcessorConfig{
		Downloader: app.tracker.Wrap(downloader.New(cfg.Download, client, logger)),
		Progress:   app.activity,
		Notifier:   app.activity,
		Failures:   app.failures,
		Host:       app.activity,
		Discards:   app.tracker,
		Registry:   app.emitter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue processor: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// shutdown stops the processor, waiting for the current download to unwind
// until ctx is done, then closes the database.
func (app *application) shutdown(ctx context.Context) error {
	err := app.processor.Shutdown(ctx)
	if err != nil {
		app.logger.Error("Queue processor shutdown incomplete", "error", err)
	}

	if app.db != nil {
		if cerr := app.db.Close(); cerr != nil {
			app.logger.Error("Error closing database connection", "error", cerr)
		}
	}

	app.logger.Info("Application shutdown completed")
	return err
}
