package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/redact"
)

const (
	// FailureMessagePrefix starts the user-visible message for a failed download.
	FailureMessagePrefix = "Exception while downloading file: "

	// StartedText acknowledges a start request to the user.
	StartedText = "Download started"
)

// PendingText is the progress text reporting the number of queued jobs.
func PendingText(n int) string {
	return fmt.Sprintf("Pending downloads: %d", n)
}

// CompleteText is the progress text for a finished job.
func CompleteText(job domain.Job) string {
	return job.DisplayName() + " Download complete"
}

// CancelledText is the progress text for a job interrupted by a cancel signal.
func CancelledText(job domain.Job) string {
	return job.DisplayName() + " Download cancelled"
}

// ProcessorConfig holds the collaborators of a QueueProcessor.
type ProcessorConfig struct {
	Downloader Downloader
	Progress   ProgressSink
	Notifier   Notifier
	Failures   FailureSink
	Host       Host

	// Discards, if set, is told about jobs removed from the queue without
	// running, by a cancel signal or a shutdown.
	Discards DiscardSink

	// Registry, if set, delivers cancel requests to the processor. The
	// processor registers itself on construction and on every session start
	// after a Shutdown, and unregisters on Shutdown.
	Registry events.HandlerRegistry
}

// QueueProcessor drains a TaskQueue one job at a time, with at most one
// drain session active at any moment.
type QueueProcessor struct {
	queue      *TaskQueue
	downloader Downloader
	progress   ProgressSink
	notifier   Notifier
	failures   FailureSink
	host       Host
	discards   DiscardSink
	registry   events.HandlerRegistry
	logger     *slog.Logger

	// mu is the processing guard. It protects everything below, and is
	// held across queue removals so a cancel signal always finds a job
	// either in the queue or in current.
	mu          sync.Mutex
	running     bool
	session     uint64
	pool        *WorkerPool
	sessionDone chan struct{}
	current     *activeJob
	registered  bool

	// wg tracks drain goroutines launched by Start
	wg sync.WaitGroup
}

// session is one drain pass from its first removal to the queue being
// observed empty.
type session struct {
	id   uint64
	pool *WorkerPool
	done chan struct{}
}

// activeJob is the job currently dispatched by a session.
type activeJob struct {
	job       domain.Job
	unit      *Unit
	cancelled bool
}

// QueueStatus is a point-in-time view of the processor.
type QueueStatus struct {
	Running bool         `json:"running"`
	Pending int          `json:"pending"`
	Jobs    []domain.Job `json:"jobs"`
}

var _ events.EventHandler = (*QueueProcessor)(nil)

// NewQueueProcessor creates a processor draining queue. All collaborators
// except Registry are required.
func NewQueueProcessor(queue *TaskQueue, cfg ProcessorConfig, logger *slog.Logger) (*QueueProcessor, error) {
	switch {
	case queue == nil:
		return nil, fmt.Errorf("%w: queue", ErrMissingCollaborator)
	case cfg.Downloader == nil:
		return nil, fmt.Errorf("%w: downloader", ErrMissingCollaborator)
	case cfg.Progress == nil:
		return nil, fmt.Errorf("%w: progress sink", ErrMissingCollaborator)
	case cfg.Notifier == nil:
		return nil, fmt.Errorf("%w: notifier", ErrMissingCollaborator)
	case cfg.Failures == nil:
		return nil, fmt.Errorf("%w: failure sink", ErrMissingCollaborator)
	case cfg.Host == nil:
		return nil, fmt.Errorf("%w: host", ErrMissingCollaborator)
	}

	p := &QueueProcessor{
		queue:      queue,
		downloader: cfg.Downloader,
		progress:   cfg.Progress,
		notifier:   cfg.Notifier,
		failures:   cfg.Failures,
		host:       cfg.Host,
		discards:   cfg.Discards,
		registry:   cfg.Registry,
		logger:     logger.With("component", "queue_processor"),
		pool:       NewWorkerPool(logger),
	}
	p.registerLocked()

	return p, nil
}

// Enqueue appends job to the queue. It is safe to call while a session is
// draining; the job becomes visible to that session's next removal.
func (p *QueueProcessor) Enqueue(job domain.Job) {
	p.queue.Enqueue(job)
}

// Start begins a drain session on a new goroutine and returns true, or
// returns false without doing anything if a session is already running.
func (p *QueueProcessor) Start() bool {
	s, ok := p.begin()
	if !ok {
		return false
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// A fatal session error has already been logged and reported.
		_ = p.drain(s)
	}()

	return true
}

// Run is the synchronous form of Start: it drains on the calling goroutine.
// started is false if another session was already running. err is non-nil
// only when the session ended on an ErrInvariantViolation.
func (p *QueueProcessor) Run() (started bool, err error) {
	s, ok := p.begin()
	if !ok {
		return false, nil
	}
	return true, p.drain(s)
}

// Wait blocks until every session launched by Start has returned.
func (p *QueueProcessor) Wait() {
	p.wg.Wait()
}

// Status returns the guard state and a copy of the pending jobs.
func (p *QueueProcessor) Status() QueueStatus {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	jobs := p.queue.Snapshot()
	return QueueStatus{
		Running: running,
		Pending: len(jobs),
		Jobs:    jobs,
	}
}

// Shutdown clears the queue, cancels the current execution scope and
// releases the cancel-request registration. The guard is reset so a later
// Start begins a fresh session. It waits for the interrupted session to
// return until ctx is done. Calling it while idle is harmless.
func (p *QueueProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	dropped := p.queue.Clear()
	wasRunning := p.running
	done := p.sessionDone
	stale := p.pool

	p.running = false
	p.session++
	p.current = nil
	p.pool = NewWorkerPool(p.logger)
	p.sessionDone = nil

	// Released under mu so a concurrent begin cannot register in between.
	if p.registered {
		p.registry.UnregisterHandler(p)
		p.registered = false
	}
	p.mu.Unlock()

	stale.Stop()
	p.discard(context.WithoutCancel(ctx), dropped)

	p.logger.Info("queue processor shut down",
		"dropped_jobs", len(dropped),
		"was_running", wasRunning)

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for drain session to stop: %w", ctx.Err())
	}
}

// CancelSignal cancels every job of chapter: queued jobs are removed, and the
// in-flight job, if it belongs to chapter, has its context cancelled. It
// returns the number of jobs affected.
func (p *QueueProcessor) CancelSignal(chapter string) int {
	p.mu.Lock()
	removed := p.queue.Remove(func(job domain.Job) bool {
		return job.Chapter == chapter
	})
	n := len(removed)

	interrupted := false
	if a := p.current; a != nil && a.job.Chapter == chapter && !a.cancelled {
		a.cancelled = true
		if a.unit != nil {
			a.unit.Cancel(ErrJobCancelled)
		}
		interrupted = true
		n++
	}
	p.mu.Unlock()

	p.discard(context.Background(), removed)

	p.logger.Info("cancel signal received",
		"chapter", chapter,
		"removed_pending", len(removed),
		"interrupted_active", interrupted)

	return n
}

// begin takes the guard for a new session.
func (p *QueueProcessor) begin() (*session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Debug("drain session already running, start ignored")
		return nil, false
	}

	p.running = true
	p.session++
	s := &session{
		id:   p.session,
		pool: p.pool,
		done: make(chan struct{}),
	}
	p.sessionDone = s.done
	p.registerLocked()

	p.logger.Info("drain session started", "session", s.id)
	return s, true
}

// registerLocked subscribes the processor to cancel requests. The caller
// holds mu, or has exclusive access during construction.
func (p *QueueProcessor) registerLocked() {
	if p.registry == nil || p.registered {
		return
	}
	p.registry.RegisterHandler(p)
	p.registered = true
}

// drain is the body of a session.
func (p *QueueProcessor) drain(s *session) error {
	defer close(s.done)
	logger := p.logger.With("session", s.id)

	for {
		a, owned, err := p.next(s)
		if err != nil {
			return p.abort(s, err)
		}
		if !owned {
			logger.Info("drain session ended by shutdown")
			return nil
		}
		if a == nil {
			if p.finish(s) {
				logger.Info("drain session finished, queue empty")
				p.host.Stop()
				return nil
			}
			continue
		}

		if a.job.ID == uuid.Nil {
			return p.abort(s, fmt.Errorf("%w: dequeued job without id (chapter %q)",
				ErrInvariantViolation, a.job.Chapter))
		}

		p.runJob(s, a)

		if s.pool.Stopped() {
			continue
		}
		p.progress.Update(PendingText(p.queue.Len()), false)
	}
}

// next removes the head job on behalf of s and records it as the active job.
// The ownership check and the removal share one critical section, so a
// session superseded by Shutdown never takes a job meant for its successor.
// owned is false for a superseded session; a is nil when the queue is empty.
// A guard cleared behind the owner's back is an invariant violation.
func (p *QueueProcessor) next(s *session) (a *activeJob, owned bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != s.id || s.pool.Stopped() {
		return nil, false, nil
	}
	if !p.running {
		return nil, false, fmt.Errorf("%w: guard cleared during session %d", ErrInvariantViolation, s.id)
	}

	job, ok := p.queue.Dequeue()
	if !ok {
		return nil, true, nil
	}
	p.current = &activeJob{job: job}
	return p.current, true, nil
}

// discard hands jobs that will never run to the discard sink.
func (p *QueueProcessor) discard(ctx context.Context, jobs []domain.Job) {
	if p.discards == nil || len(jobs) == 0 {
		return
	}
	p.discards.Discarded(ctx, jobs)
}

// finish releases the guard if s still owns it and the queue is still empty.
// Re-checking the queue under the lock means a producer that enqueued and
// called Start after the empty removal is picked up by this session.
func (p *QueueProcessor) finish(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != s.id || !p.running {
		return false
	}
	if p.queue.Len() > 0 {
		return false
	}
	p.running = false
	return true
}

// abort ends s on a fatal error.
func (p *QueueProcessor) abort(s *session, err error) error {
	p.logger.Error("drain session aborted", "session", s.id, "error", err)
	p.failures.Report(context.Background(), err)

	p.mu.Lock()
	owned := p.session == s.id
	if owned {
		p.running = false
		p.current = nil
	}
	p.mu.Unlock()

	if owned {
		p.host.Stop()
	}
	return err
}

// runJob executes one job as a supervised unit and forwards its outcome.
func (p *QueueProcessor) runJob(s *session, a *activeJob) {
	job := a.job
	logger := p.logger.With(
		"session", s.id,
		"job_id", job.ID,
		"chapter", job.Chapter)

	unit, err := s.pool.Submit(func(ctx context.Context) error {
		return p.downloader.Download(ctx, job)
	})
	if err != nil {
		// Shutdown won the race between removal and dispatch.
		logger.Info("job not dispatched", "error", err)
		p.mu.Lock()
		if p.current == a {
			p.current = nil
		}
		p.mu.Unlock()
		p.discard(context.Background(), []domain.Job{job})
		return
	}

	p.mu.Lock()
	a.unit = unit
	if a.cancelled {
		unit.Cancel(ErrJobCancelled)
	}
	p.mu.Unlock()

	logger.Debug("download dispatched")
	jobErr := unit.Wait()

	p.mu.Lock()
	if p.current == a {
		p.current = nil
	}
	p.mu.Unlock()

	cause := unit.Cause()
	switch {
	case errors.Is(cause, ErrPoolStopped):
		// The host is tearing down; nothing is reported to it.
		logger.Info("download interrupted by shutdown", "error", jobErr)
	case jobErr == nil:
		logger.Info("download complete")
		p.progress.Update(CompleteText(job), true)
	case errors.Is(cause, ErrJobCancelled):
		logger.Info("download cancelled", "error", jobErr)
		p.progress.Update(CancelledText(job), false)
	default:
		p.handleFailure(logger, job, jobErr)
	}
}

// handleFailure forwards a failed job to the user and the failure sink.
func (p *QueueProcessor) handleFailure(logger *slog.Logger, job domain.Job, err error) {
	logger.Error("download failed", "error", err)

	p.notifier.Notify(FailureMessagePrefix + redact.Error(err))

	ctx := context.Background()
	p.failures.Report(ctx, err)
	p.failures.Broadcast(ctx, job.Chapter)
}
