// Package task drains a shared queue of chapter download jobs one at a time.
//
// A QueueProcessor owns the single-flight guard: however many start signals
// arrive, at most one drain session runs. Each job executes as a supervised
// unit inside a WorkerPool, so a failing or panicking download is reported
// and the session moves on to the next job. The host learns about progress,
// failures and the end of a session through the small collaborator
// interfaces declared in task.go.
package task
