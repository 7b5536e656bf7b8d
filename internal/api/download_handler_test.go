package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterq/internal/api/shared"
	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, f *handlerFixture, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestNewDownloadHandlerPanicsOnMissingDependency(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewDownloadHandler(DownloadHandlerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
}

func TestCreateDownload(t *testing.T) {
	t.Parallel()

	t.Run("queues records and starts", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()

		var recorded domain.Job
		f.tracker.QueuedFn = func(ctx context.Context, job domain.Job) error {
			recorded = job
			assert.Empty(t, f.queue.enqueued, "queued state must be recorded before the job is visible")
			return nil
		}

		rr := doRequest(t, f, http.MethodPost, "/api/downloads",
			`{"title":"One Piece","chapter":"ch-1","pages":["https://cdn.example.com/1.png","https://cdn.example.com/2.png"]}`)

		require.Equal(t, http.StatusAccepted, rr.Code)

		var resp DownloadResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Started)
		assert.Equal(t, "One Piece", resp.Job.Title)
		assert.Equal(t, "ch-1", resp.Job.Chapter)
		assert.Equal(t, 2, resp.Job.PageCount)
		assert.NotContains(t, rr.Body.String(), "cdn.example.com")

		require.Len(t, f.queue.enqueued, 1)
		assert.Equal(t, recorded.ID, f.queue.enqueued[0].ID)
		assert.Equal(t, resp.Job.ID, recorded.ID.String())
		assert.Equal(t, 1, f.queue.starts)
		assert.Equal(t, []string{task.StartedText}, f.notifier.texts)
	})

	t.Run("reports session already running", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()
		f.queue.StartFn = func() bool { return false }

		rr := doRequest(t, f, http.MethodPost, "/api/downloads",
			`{"title":"t","chapter":"c","pages":["https://example.com/p.png"]}`)

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp DownloadResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Started)
		assert.Len(t, f.queue.enqueued, 1)
	})

	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{name: "malformed json", body: `{"title":`, wantMessage: "Invalid request format"},
		{name: "unknown field", body: `{"title":"t","chapter":"c","pages":["https://e.com/1"],"x":1}`, wantMessage: "Invalid request format"},
		{name: "missing title", body: `{"chapter":"c","pages":["https://e.com/1"]}`, wantMessage: "Invalid Title: required field"},
		{name: "missing chapter", body: `{"title":"t","pages":["https://e.com/1"]}`, wantMessage: "Invalid Chapter: required field"},
		{name: "no pages", body: `{"title":"t","chapter":"c","pages":[]}`, wantMessage: "Invalid Pages: too short"},
		{name: "bad page url", body: `{"title":"t","chapter":"c","pages":["ftp://e.com/1"]}`, wantMessage: "Invalid Pages[0]: invalid URL"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newHandlerFixture()

			rr := doRequest(t, f, http.MethodPost, "/api/downloads", tc.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tc.wantMessage, decodeError(t, rr))
			assert.Empty(t, f.queue.enqueued)
			assert.Zero(t, f.queue.starts)
		})
	}

	t.Run("tracker failure leaves queue untouched", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()
		f.tracker.QueuedFn = func(ctx context.Context, job domain.Job) error {
			return errors.New("database is locked")
		}

		rr := doRequest(t, f, http.MethodPost, "/api/downloads",
			`{"title":"t","chapter":"c","pages":["https://example.com/p.png"]}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Failed to queue download", decodeError(t, rr))
		assert.NotContains(t, rr.Body.String(), "locked")
		assert.Empty(t, f.queue.enqueued)
		assert.Zero(t, f.queue.starts)
	})
}

func TestGetQueue(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture()
	job, err := domain.NewJob("t", "c1", []string{"https://example.com/1.png"})
	require.NoError(t, err)
	f.queue.StatusFn = func() task.QueueStatus {
		return task.QueueStatus{Running: true, Pending: 1, Jobs: []domain.Job{job}}
	}
	f.activity.text = task.PendingText(1)
	f.activity.messages = []string{task.StartedText}

	rr := doRequest(t, f, http.MethodGet, "/api/queue", "")

	require.Equal(t, http.StatusOK, rr.Code)
	var resp QueueResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Running)
	assert.Equal(t, 1, resp.Pending)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, job.ID.String(), resp.Jobs[0].ID)
	assert.Equal(t, "Pending downloads: 1", resp.LastProgress)
	assert.False(t, resp.ProgressComplete)
	assert.Equal(t, []string{"Download started"}, resp.Messages)
}

func TestGetQueueEmpty(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture()
	rr := doRequest(t, f, http.MethodGet, "/api/queue", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t,
		`{"running":false,"pending":0,"jobs":[],"last_progress":"","progress_complete":false,"messages":[]}`,
		rr.Body.String())
}

func TestStartQueue(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture()
	rr := doRequest(t, f, http.MethodPost, "/api/queue/start", "")

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"started":true}`, rr.Body.String())
	assert.Equal(t, 1, f.queue.starts)
	assert.Equal(t, []string{task.StartedText}, f.notifier.texts)
}

func TestCancelChapter(t *testing.T) {
	t.Parallel()

	t.Run("emits cancel request", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()

		rr := doRequest(t, f, http.MethodPost, "/api/chapters/one%20piece%20ch-1/cancel", "")

		require.Equal(t, http.StatusAccepted, rr.Code)
		assert.JSONEq(t, `{"chapter":"one piece ch-1"}`, rr.Body.String())
		require.Len(t, f.emitter.emitted, 1)
		event := f.emitter.emitted[0]
		assert.Equal(t, events.EventTypeDownloadCancelRequested, event.Type)
		chapter, err := event.Chapter()
		require.NoError(t, err)
		assert.Equal(t, "one piece ch-1", chapter)
	})

	t.Run("emit failure", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()
		f.emitter.EmitEventFn = func(ctx context.Context, event *events.Event) error {
			return errors.New("handler exploded")
		}

		rr := doRequest(t, f, http.MethodPost, "/api/chapters/c1/cancel", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Failed to cancel download", decodeError(t, rr))
	})
}

func TestGetChapter(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()
		jobID := uuid.New()
		updated := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		f.tracker.StateFn = func(ctx context.Context, chapter string) (*domain.ChapterState, error) {
			assert.Equal(t, "c1", chapter)
			return &domain.ChapterState{
				Chapter:      "c1",
				JobID:        jobID,
				Title:        "t",
				Status:       domain.ChapterStatusFailed,
				ErrorMessage: task.FailureMessagePrefix + "timeout",
				UpdatedAt:    updated,
			}, nil
		}

		rr := doRequest(t, f, http.MethodGet, "/api/chapters/c1", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp ChapterStateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, jobID.String(), resp.JobID)
		assert.Equal(t, "failed", resp.Status)
		assert.Equal(t, "Exception while downloading file: timeout", resp.ErrorMessage)
		assert.True(t, updated.Equal(resp.UpdatedAt))
	})

	t.Run("unknown chapter", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()

		rr := doRequest(t, f, http.MethodGet, "/api/chapters/nope", "")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "Chapter not found", decodeError(t, rr))
	})
}

func TestListChapters(t *testing.T) {
	t.Parallel()

	t.Run("default limit", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()
		var gotLimit int
		f.tracker.RecentFn = func(ctx context.Context, limit int) ([]*domain.ChapterState, error) {
			gotLimit = limit
			return []*domain.ChapterState{
				{Chapter: "c2", JobID: uuid.New(), Title: "t", Status: domain.ChapterStatusQueued},
				{Chapter: "c1", JobID: uuid.New(), Title: "t", Status: domain.ChapterStatusCompleted},
			}, nil
		}

		rr := doRequest(t, f, http.MethodGet, "/api/chapters", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, defaultListLimit, gotLimit)
		var resp []ChapterStateResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "c2", resp[0].Chapter)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		t.Parallel()
		f := newHandlerFixture()

		rr := doRequest(t, f, http.MethodGet, "/api/chapters?limit=5", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	for _, raw := range []string{"0", "-1", "abc", "501"} {
		t.Run("invalid limit "+raw, func(t *testing.T) {
			t.Parallel()
			f := newHandlerFixture()

			rr := doRequest(t, f, http.MethodGet, "/api/chapters?limit="+raw, "")

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "Invalid limit", decodeError(t, rr))
		})
	}
}
