package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/panics"
)

// WorkerPool is a supervised execution scope. Each submitted function runs as
// its own unit on its own goroutine; an error or panic inside one unit is
// captured on that unit and never cancels the pool or sibling units. Stopping
// the pool cancels every running unit and rejects new submissions.
type WorkerPool struct {
	// ctx is the scope context every unit context derives from
	ctx context.Context

	// cancel stops the scope with ErrPoolStopped as the cause
	cancel context.CancelCauseFunc

	// wg tracks running units for Wait
	wg sync.WaitGroup

	// mu guards stopped against concurrent Submit and Stop
	mu      sync.Mutex
	stopped bool

	logger *slog.Logger
}

// Unit is one supervised execution inside a WorkerPool.
type Unit struct {
	cancel context.CancelCauseFunc
	done   chan struct{}

	// err and cause are written once before done is closed
	err   error
	cause error
}

// NewWorkerPool creates a running pool.
func NewWorkerPool(logger *slog.Logger) *WorkerPool {
	ctx, cancel := context.WithCancelCause(context.Background())

	return &WorkerPool{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "worker_pool"),
	}
}

// Submit starts fn as a new unit. The context passed to fn is cancelled when
// the unit is cancelled or the pool is stopped. A panic inside fn is recovered
// and surfaces from Unit.Err wrapped in ErrTaskPanicked.
func (p *WorkerPool) Submit(fn func(ctx context.Context) error) (*Unit, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil, ErrPoolStopped
	}

	ctx, cancel := context.WithCancelCause(p.ctx)
	u := &Unit{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer close(u.done)

		var pc panics.Catcher
		pc.Try(func() { u.err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			p.logger.Error("recovered panic in unit",
				"panic", r.Value,
				"stack", string(r.Stack))
			u.err = fmt.Errorf("%w: %w", ErrTaskPanicked, r.AsError())
		}

		// Record why the unit was interrupted, if it was, before releasing
		// its context.
		u.cause = context.Cause(ctx)
		cancel(nil)
	}()

	return u, nil
}

// Stop cancels the scope. Running units see ErrPoolStopped as their context's
// cause; later calls to Submit fail. Stop does not wait; use Wait for that.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	p.cancel(ErrPoolStopped)
	p.logger.Debug("worker pool stopped")
}

// Stopped reports whether Stop has been called.
func (p *WorkerPool) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Wait blocks until every submitted unit has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Cancel interrupts the unit's context with cause. It has no effect once the
// unit has finished.
func (u *Unit) Cancel(cause error) {
	u.cancel(cause)
}

// Done is closed when the unit has returned.
func (u *Unit) Done() <-chan struct{} {
	return u.done
}

// Wait blocks until the unit returns and yields its error.
func (u *Unit) Wait() error {
	<-u.done
	return u.err
}

// Err returns the unit's error. It is only meaningful after Done is closed.
func (u *Unit) Err() error {
	return u.err
}

// Cause returns the reason the unit's context was cancelled while it ran, or
// nil if it ran to completion uninterrupted. It is only meaningful after Done
// is closed.
func (u *Unit) Cause() error {
	return u.cause
}
