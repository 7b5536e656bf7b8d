package api

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/store"
	"github.com/phrazzld/chapterq/internal/task"
)

type mockQueue struct {
	mu       sync.Mutex
	enqueued []domain.Job
	starts   int
	StartFn  func() bool
	StatusFn func() task.QueueStatus
}

func (m *mockQueue) Enqueue(job domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, job)
}

func (m *mockQueue) Start() bool {
	m.mu.Lock()
	m.starts++
	m.mu.Unlock()
	if m.StartFn != nil {
		return m.StartFn()
	}
	return true
}

func (m *mockQueue) Status() task.QueueStatus {
	if m.StatusFn != nil {
		return m.StatusFn()
	}
	return task.QueueStatus{}
}

type mockTracker struct {
	QueuedFn func(ctx context.Context, job domain.Job) error
	StateFn  func(ctx context.Context, chapter string) (*domain.ChapterState, error)
	RecentFn func(ctx context.Context, limit int) ([]*domain.ChapterState, error)
}

func (m *mockTracker) Queued(ctx context.Context, job domain.Job) error {
	if m.QueuedFn != nil {
		return m.QueuedFn(ctx, job)
	}
	return nil
}

func (m *mockTracker) State(ctx context.Context, chapter string) (*domain.ChapterState, error) {
	if m.StateFn != nil {
		return m.StateFn(ctx, chapter)
	}
	return nil, store.ErrChapterStateNotFound
}

func (m *mockTracker) Recent(ctx context.Context, limit int) ([]*domain.ChapterState, error) {
	if m.RecentFn != nil {
		return m.RecentFn(ctx, limit)
	}
	return nil, nil
}

type mockActivity struct {
	text     string
	complete bool
	messages []string
}

func (m *mockActivity) LastProgress() (string, bool) { return m.text, m.complete }
func (m *mockActivity) Messages() []string           { return m.messages }

type mockNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (m *mockNotifier) Notify(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
}

type mockEmitter struct {
	EmitEventFn func(ctx context.Context, event *events.Event) error
	emitted     []*events.Event
}

func (m *mockEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	m.emitted = append(m.emitted, event)
	if m.EmitEventFn != nil {
		return m.EmitEventFn(ctx, event)
	}
	return nil
}

type handlerFixture struct {
	queue    *mockQueue
	tracker  *mockTracker
	activity *mockActivity
	notifier *mockNotifier
	emitter  *mockEmitter
	router   chi.Router
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		queue:    &mockQueue{},
		tracker:  &mockTracker{},
		activity: &mockActivity{},
		notifier: &mockNotifier{},
		emitter:  &mockEmitter{},
	}
	h := NewDownloadHandler(DownloadHandlerConfig{
		Queue:    f.queue,
		Tracker:  f.tracker,
		Activity: f.activity,
		Notifier: f.notifier,
		Emitter:  f.emitter,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.router = chi.NewRouter()
	f.router.Route("/api", h.Routes)
	return f
}
