package task

import (
	"context"

	"github.com/phrazzld/chapterq/internal/domain"
)

// Downloader executes one job to completion or failure.
// Implementations should return promptly once ctx is cancelled.
type Downloader interface {
	Download(ctx context.Context, job domain.Job) error
}

// ProgressSink receives human-readable progress text. isComplete switches the
// host's progress indicator to its determinate, finished state.
type ProgressSink interface {
	Update(text string, isComplete bool)
}

// Notifier delivers short transient messages to the user.
type Notifier interface {
	Notify(text string)
}

// FailureSink receives job failures: the raw error for telemetry, and a
// chapter-keyed broadcast for components tracking download state.
type FailureSink interface {
	Report(ctx context.Context, err error)
	Broadcast(ctx context.Context, chapter string)
}

// Host is told when a drain session has emptied the queue, so it can release
// whatever it holds on the session's behalf.
type Host interface {
	Stop()
}

// DiscardSink is told about jobs that left the queue without running.
type DiscardSink interface {
	Discarded(ctx context.Context, jobs []domain.Job)
}
