package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/store"
	"github.com/phrazzld/chapterq/internal/task"
)

// Tracker records chapter download states in a ChapterStateStore.
type Tracker struct {
	store  store.ChapterStateStore
	logger *slog.Logger
	now    func() time.Time
}

var (
	_ events.EventHandler = (*Tracker)(nil)
	_ task.DiscardSink    = (*Tracker)(nil)
)

// New creates a Tracker.
func New(s store.ChapterStateStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  s,
		logger: logger.With("component", "download_tracker"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Queued records that job has been accepted into the queue.
func (t *Tracker) Queued(ctx context.Context, job domain.Job) error {
	return t.record(ctx, job, domain.ChapterStatusQueued, "")
}

// State returns the recorded state of chapter.
// Returns store.ErrChapterStateNotFound when the chapter is unknown.
func (t *Tracker) State(ctx context.Context, chapter string) (*domain.ChapterState, error) {
	return t.store.Get(ctx, chapter)
}

// Recent returns up to limit chapter states, most recently updated first.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]*domain.ChapterState, error) {
	return t.store.List(ctx, limit)
}

// HandleEvent implements events.EventHandler. A download_failed event marks
// the chapter's latest job failed; other events are ignored.
func (t *Tracker) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.EventTypeDownloadFailed {
		return nil
	}

	var payload events.ChapterPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to unmarshal failure payload: %w", err)
	}
	if payload.Chapter == "" {
		return events.ErrMissingChapter
	}

	state, err := t.store.Get(ctx, payload.Chapter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.logger.Warn("failure reported for untracked chapter",
				"chapter", payload.Chapter,
				"event_id", event.ID)
			return nil
		}
		return fmt.Errorf("failed to load chapter state: %w", err)
	}

	state.Status = domain.ChapterStatusFailed
	state.ErrorMessage = payload.Error
	state.UpdatedAt = t.now()
	if err := t.store.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to mark chapter failed: %w", err)
	}

	t.logger.Info("chapter marked failed", "chapter", payload.Chapter, "job_id", state.JobID)
	return nil
}

// Discarded implements task.DiscardSink. Each job that left the queue without
// running is marked cancelled, unless a newer job already owns its chapter.
func (t *Tracker) Discarded(ctx context.Context, jobs []domain.Job) {
	for _, job := range jobs {
		if err := t.discard(ctx, job); err != nil {
			t.logger.Error("failed to record discarded job",
				"error", err,
				"chapter", job.Chapter,
				"job_id", job.ID)
		}
	}
}

func (t *Tracker) discard(ctx context.Context, job domain.Job) error {
	state, err := t.store.Get(ctx, job.Chapter)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load chapter state: %w", err)
	case state.JobID != job.ID:
		t.logger.Debug("discarded job superseded by a newer job",
			"chapter", job.Chapter,
			"job_id", job.ID,
			"current_job_id", state.JobID)
		return nil
	}

	if err := t.record(ctx, job, domain.ChapterStatusCancelled, ""); err != nil {
		return err
	}
	t.logger.Info("discarded job marked cancelled", "chapter", job.Chapter, "job_id", job.ID)
	return nil
}

// Wrap returns a task.Downloader that records progress around next.
func (t *Tracker) Wrap(next task.Downloader) task.Downloader {
	return &trackingDownloader{next: next, tracker: t}
}

// record stores a state for job. Store failures are returned to the caller.
func (t *Tracker) record(ctx context.Context, job domain.Job, status domain.ChapterStatus, message string) error {
	state := &domain.ChapterState{
		Chapter:      job.Chapter,
		JobID:        job.ID,
		Title:        job.Title,
		Status:       status,
		ErrorMessage: message,
		UpdatedAt:    t.now(),
	}
	if err := t.store.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to record %s state for chapter %q: %w", status, job.Chapter, err)
	}
	return nil
}

// trackingDownloader decorates a Downloader with state recording. Recording
// is best effort: a store failure is logged and never fails the download.
type trackingDownloader struct {
	next    task.Downloader
	tracker *Tracker
}

func (d *trackingDownloader) Download(ctx context.Context, job domain.Job) error {
	// Writes must land even when the job's context has been cancelled.
	storeCtx := context.WithoutCancel(ctx)

	d.recordBestEffort(storeCtx, job, domain.ChapterStatusDownloading)

	err := d.next.Download(ctx, job)
	switch {
	case err == nil:
		d.recordBestEffort(storeCtx, job, domain.ChapterStatusCompleted)
	case ctx.Err() != nil:
		d.recordBestEffort(storeCtx, job, domain.ChapterStatusCancelled)
	}
	// Other failures are recorded when the processor broadcasts them.

	return err
}

func (d *trackingDownloader) recordBestEffort(ctx context.Context, job domain.Job, status domain.ChapterStatus) {
	if err := d.tracker.record(ctx, job, status, ""); err != nil {
		d.tracker.logger.Error("failed to record chapter state",
			"error", err,
			"chapter", job.Chapter,
			"status", status)
	}
}
