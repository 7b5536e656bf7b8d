package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/platform/logger"
	"github.com/phrazzld/chapterq/internal/store"
)

const chapterStateColumns = `chapter, job_id, title, status, error_message, updated_at`

// ChapterStateStore implements store.ChapterStateStore over database/sql.
// Timestamps are stored as Unix milliseconds so the same schema works on
// every backend.
type ChapterStateStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger

	upsertQuery string
	getQuery    string
	listQuery   string
}

var _ store.ChapterStateStore = (*ChapterStateStore)(nil)

// NewChapterStateStore creates a store over db speaking dialect.
// If logger is nil, a default logger will be used.
func NewChapterStateStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *ChapterStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := dialect.placeholders(6)
	return &ChapterStateStore{
		db:      db,
		dialect: dialect,
		logger: logger.With(
			slog.String("component", "chapter_state_store"),
			slog.String("dialect", dialect.Name)),

		upsertQuery: fmt.Sprintf(`
			INSERT INTO chapter_states (%s)
			VALUES (%s, %s, %s, %s, %s, %s)
			ON CONFLICT (chapter) DO UPDATE SET
				job_id = excluded.job_id,
				title = excluded.title,
				status = excluded.status,
				error_message = excluded.error_message,
				updated_at = excluded.updated_at`,
			append([]any{chapterStateColumns}, p...)...),
		getQuery: fmt.Sprintf(`
			SELECT %s FROM chapter_states WHERE chapter = %s`,
			chapterStateColumns, p[0]),
		listQuery: fmt.Sprintf(`
			SELECT %s FROM chapter_states
			ORDER BY updated_at DESC, chapter
			LIMIT %s`,
			chapterStateColumns, p[0]),
	}
}

// Upsert implements store.ChapterStateStore.Upsert
// Returns store.ErrInvalidEntity wrapping the domain error if state is invalid.
func (s *ChapterStateStore) Upsert(ctx context.Context, state *domain.ChapterState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := state.Validate(); err != nil {
		log.Warn("chapter state validation failed",
			slog.String("error", err.Error()),
			slog.String("chapter", state.Chapter))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	_, err := s.db.ExecContext(ctx, s.upsertQuery,
		state.Chapter,
		state.JobID.String(),
		state.Title,
		string(state.Status),
		state.ErrorMessage,
		state.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		log.Error("failed to upsert chapter state",
			slog.String("error", err.Error()),
			slog.String("chapter", state.Chapter))
		return s.dialect.MapError(err)
	}

	log.Debug("chapter state stored",
		slog.String("chapter", state.Chapter),
		slog.String("status", string(state.Status)))
	return nil
}

// Get implements store.ChapterStateStore.Get
// Returns store.ErrChapterStateNotFound if nothing is recorded for chapter.
func (s *ChapterStateStore) Get(ctx context.Context, chapter string) (*domain.ChapterState, error) {
	state, err := scanChapterState(s.db.QueryRowContext(ctx, s.getQuery, chapter))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrChapterStateNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get chapter state",
			slog.String("error", err.Error()),
			slog.String("chapter", chapter))
		return nil, s.dialect.MapError(err)
	}
	return state, nil
}

// List implements store.ChapterStateStore.List
func (s *ChapterStateStore) List(ctx context.Context, limit int) ([]*domain.ChapterState, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery, limit)
	if err != nil {
		return nil, s.dialect.MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var states []*domain.ChapterState
	for rows.Next() {
		state, err := scanChapterState(rows)
		if err != nil {
			return nil, s.dialect.MapError(err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, s.dialect.MapError(err)
	}
	return states, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChapterState(row scanner) (*domain.ChapterState, error) {
	var (
		state     domain.ChapterState
		jobID     string
		status    string
		updatedAt int64
	)
	if err := row.Scan(&state.Chapter, &jobID, &state.Title, &status, &state.ErrorMessage, &updatedAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: stored job id %q", domain.ErrInvalidID, jobID)
	}
	state.JobID = id
	state.Status = domain.ChapterStatus(status)
	state.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &state, nil
}
