package task

import "errors"

var (
	// ErrInvariantViolation marks internal corruption of the processing guard
	// or the queue. It ends the session and is never reported as a job failure.
	ErrInvariantViolation = errors.New("queue processor invariant violated")

	// ErrTaskPanicked wraps a panic recovered from a unit of work.
	ErrTaskPanicked = errors.New("task panicked")

	// ErrPoolStopped is returned when submitting to a stopped WorkerPool, and is
	// the cancellation cause seen by units running when the pool is stopped.
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrJobCancelled is the cancellation cause of a job interrupted by a
	// chapter cancel signal.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrMissingCollaborator is returned by NewQueueProcessor when a required
	// collaborator is nil.
	ErrMissingCollaborator = errors.New("missing queue processor collaborator")
)
