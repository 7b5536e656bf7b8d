package host

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/redact"
	"github.com/phrazzld/chapterq/internal/task"
)

// FailureReporter is a task.FailureSink. Report logs the error; Broadcast
// publishes a download_failed event carrying the redacted message of the
// last reported error.
type FailureReporter struct {
	emitter events.EventEmitter
	logger  *slog.Logger

	mu   sync.Mutex
	last error
}

var _ task.FailureSink = (*FailureReporter)(nil)

// NewFailureReporter creates a FailureReporter publishing to emitter.
func NewFailureReporter(emitter events.EventEmitter, logger *slog.Logger) *FailureReporter {
	if emitter == nil {
		panic("emitter cannot be nil")
	}
	return &FailureReporter{
		emitter: emitter,
		logger:  logger.With("component", "failure_reporter"),
	}
}

// Report records err as the most recent failure.
func (f *FailureReporter) Report(ctx context.Context, err error) {
	f.mu.Lock()
	f.last = err
	f.mu.Unlock()

	f.logger.ErrorContext(ctx, "failure reported", "error", redact.Error(err))
}

// Broadcast publishes a failure event for chapter. Emit errors are logged,
// since the processor has no way to act on them.
func (f *FailureReporter) Broadcast(ctx context.Context, chapter string) {
	f.mu.Lock()
	err := f.last
	f.last = nil
	f.mu.Unlock()

	message := task.FailureMessagePrefix + "unknown error"
	if err != nil {
		message = task.FailureMessagePrefix + redact.Error(err)
	}

	event, evErr := events.NewFailureEvent(chapter, message)
	if evErr != nil {
		f.logger.ErrorContext(ctx, "failed to build failure event", "chapter", chapter, "error", evErr)
		return
	}
	if evErr := f.emitter.EmitEvent(ctx, event); evErr != nil {
		f.logger.ErrorContext(ctx, "failed to broadcast failure",
			"chapter", chapter,
			"event_id", event.ID,
			"error", evErr)
		return
	}

	f.logger.DebugContext(ctx, "failure broadcast", "chapter", chapter, "event_id", event.ID)
}
