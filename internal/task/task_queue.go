package task

import (
	"log/slog"
	"sync"

	"github.com/phrazzld/chapterq/internal/domain"
)

// TaskQueue is an unbounded FIFO of pending jobs, safe for concurrent use.
// Every removal happens under the queue's mutex, so no two removals can take
// the same head element.
type TaskQueue struct {
	mu     sync.Mutex
	jobs   []domain.Job
	head   int
	logger *slog.Logger
}

// NewTaskQueue creates an empty task queue.
func NewTaskQueue(logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue appends a job to the tail of the queue.
func (q *TaskQueue) Enqueue(job domain.Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	n := len(q.jobs) - q.head
	q.mu.Unlock()

	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"chapter", job.Chapter,
		"queue_len", n)
}

// Dequeue removes and returns the head job. ok is false when the queue is empty.
func (q *TaskQueue) Dequeue() (job domain.Job, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.jobs) {
		return domain.Job{}, false
	}

	job = q.jobs[q.head]
	q.jobs[q.head] = domain.Job{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.jobs) {
		q.jobs = q.jobs[:0]
		q.head = 0
	} else if q.head > 64 && q.head*2 >= len(q.jobs) {
		q.jobs = append(q.jobs[:0], q.jobs[q.head:]...)
		q.head = 0
	}

	return job, true
}

// Len returns the number of pending jobs.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs) - q.head
}

// Clear drops every pending job and returns the dropped jobs in queue order.
func (q *TaskQueue) Clear() []domain.Job {
	q.mu.Lock()
	dropped := q.jobs[q.head:]
	q.jobs = nil
	q.head = 0
	q.mu.Unlock()

	if len(dropped) > 0 {
		q.logger.Info("task queue cleared", "dropped", len(dropped))
	}
	return dropped
}

// Remove drops every pending job for which match returns true, preserving the
// order of the rest, and returns the removed jobs.
func (q *TaskQueue) Remove(match func(domain.Job) bool) []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []domain.Job
	kept := q.jobs[:q.head]
	for _, job := range q.jobs[q.head:] {
		if match(job) {
			removed = append(removed, job)
			continue
		}
		kept = append(kept, job)
	}
	clear(q.jobs[len(kept):])
	q.jobs = kept
	return removed
}

// Snapshot returns a copy of the pending jobs in queue order.
func (q *TaskQueue) Snapshot() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Job, len(q.jobs)-q.head)
	copy(out, q.jobs[q.head:])
	return out
}
