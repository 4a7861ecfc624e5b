// Package store defines the aggregate persistence interface. The job
// record store, the result store and the work queue each define their own
// contract; a backend implements all three so one client serves a worker.
package store

import (
	"context"

	"github.com/alejochang/pdf-processor/job"
	"github.com/alejochang/pdf-processor/queue"
	"github.com/alejochang/pdf-processor/result"
)

// Store is the aggregate persistence interface.
type Store interface {
	job.Store
	result.Store
	queue.Queue

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store. Backends built on a
	// caller-supplied client leave that client open.
	Close() error
}
