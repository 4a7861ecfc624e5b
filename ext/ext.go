// Package ext defines the extension system for the PDF processor.
// Extensions are notified of job lifecycle events (submitted, started,
// completed, failed, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called after a job is recorded and enqueued.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, r *job.Record) error
}

// JobStarted is called when a worker moves a job to PROCESSING.
type JobStarted interface {
	OnJobStarted(ctx context.Context, r *job.Record, e *queue.Entry) error
}

// JobCompleted is called after a job's result is stored and the job is
// COMPLETED.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, r *job.Record, res *result.Result, elapsed time.Duration) error
}

// JobFailed is called when a job ends FAILED.
type JobFailed interface {
	OnJobFailed(ctx context.Context, r *job.Record, errMsg string) error
}

// JobDeadLettered is called when recovery gives up on an entry.
type JobDeadLettered interface {
	OnJobDeadLettered(ctx context.Context, r *job.Record, e *queue.Entry, errMsg string) error
}

// JobDeleted is called after a job and its artifacts are removed.
type JobDeleted interface {
	OnJobDeleted(ctx context.Context, jobID id.JobID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
