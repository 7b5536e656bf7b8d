package task

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func newTestJob(t *testing.T, title, chapter string) domain.Job {
	t.Helper()
	job, err := domain.NewJob(title, chapter, []string{"https://cdn.example.com/" + chapter + "/1.png"})
	require.NoError(t, err)
	return job
}

// waitFor fails the test if ch is not closed or signalled within timeout.
func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// MockDownloader records the jobs it is asked to download and delegates to
// DownloadFn when set.
type MockDownloader struct {
	DownloadFn func(ctx context.Context, job domain.Job) error

	mu     sync.Mutex
	jobs   []domain.Job
	active atomic.Int32
	peak   atomic.Int32
}

func (d *MockDownloader) Download(ctx context.Context, job domain.Job) error {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	d.mu.Unlock()

	if d.DownloadFn != nil {
		return d.DownloadFn(ctx, job)
	}
	return nil
}

func (d *MockDownloader) Jobs() []domain.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Job, len(d.jobs))
	copy(out, d.jobs)
	return out
}

func (d *MockDownloader) Chapters() []string {
	jobs := d.Jobs()
	out := make([]string, len(jobs))
	for i, job := range jobs {
		out[i] = job.Chapter
	}
	return out
}

type progressUpdate struct {
	Text       string
	IsComplete bool
}

type recordingProgress struct {
	mu      sync.Mutex
	updates []progressUpdate
}

func (p *recordingProgress) Update(text string, isComplete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, progressUpdate{Text: text, IsComplete: isComplete})
}

func (p *recordingProgress) Updates() []progressUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]progressUpdate, len(p.updates))
	copy(out, p.updates)
	return out
}

// PendingTexts returns only the pending-count updates.
func (p *recordingProgress) PendingTexts() []string {
	var out []string
	for _, u := range p.Updates() {
		if strings.HasPrefix(u.Text, "Pending downloads:") {
			out = append(out, u.Text)
		}
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type recordingFailures struct {
	mu         sync.Mutex
	reports    []error
	broadcasts []string
}

func (f *recordingFailures) Report(ctx context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, err)
}

func (f *recordingFailures) Broadcast(ctx context.Context, chapter string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, chapter)
}

func (f *recordingFailures) Reports() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.reports...)
}

func (f *recordingFailures) Broadcasts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.broadcasts...)
}

type recordingDiscards struct {
	mu   sync.Mutex
	jobs []domain.Job
}

func (d *recordingDiscards) Discarded(ctx context.Context, jobs []domain.Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, jobs...)
}

func (d *recordingDiscards) Chapters() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, job := range d.jobs {
		out = append(out, job.Chapter)
	}
	return out
}

type countingHost struct {
	stops  atomic.Int32
	StopFn func()
}

func (h *countingHost) Stop() {
	h.stops.Add(1)
	if h.StopFn != nil {
		h.StopFn()
	}
}

func (h *countingHost) Stops() int {
	return int(h.stops.Load())
}

// processorFixture bundles a processor with recording collaborators.
type processorFixture struct {
	queue      *TaskQueue
	downloader *MockDownloader
	progress   *recordingProgress
	notifier   *recordingNotifier
	failures   *recordingFailures
	discards   *recordingDiscards
	host       *countingHost
	processor  *QueueProcessor
}

func newProcessorFixture(t *testing.T, registry events.HandlerRegistry) *processorFixture {
	t.Helper()

	logger := setupTestLogger()
	f := &processorFixture{
		queue:      NewTaskQueue(logger),
		downloader: &MockDownloader{},
		progress:   &recordingProgress{},
		notifier:   &recordingNotifier{},
		failures:   &recordingFailures{},
		discards:   &recordingDiscards{},
		host:       &countingHost{},
	}

	p, err := NewQueueProcessor(f.queue, ProcessorConfig{
		Downloader: f.downloader,
		Progress:   f.progress,
		Notifier:   f.notifier,
		Failures:   f.failures,
		Host:       f.host,
		Discards:   f.discards,
		Registry:   registry,
	}, logger)
	require.NoError(t, err)
	f.processor = p

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	return f
}
