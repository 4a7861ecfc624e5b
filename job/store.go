package job

import (
	"context"

	"github.com/alejochang/pdf-processor/id"
)

// Store defines the persistence contract for job records. Implementations
// must be safe for concurrent use and make every write a single atomic
// operation.
type Store interface {
	// CreateJob persists a new record. It returns ErrJobAlreadyExists
	// rather than overwriting an existing record with the same ID.
	CreateJob(ctx context.Context, r *Record) error

	// GetJob retrieves a record by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.JobID) (*Record, error)

	// SetJobStatus changes only the status and error fields. errMsg is
	// stored when status is failed and cleared otherwise. It returns
	// ErrJobNotFound for a missing record and ErrInvalidTransition when
	// the move would regress the record.
	SetJobStatus(ctx context.Context, jobID id.JobID, status Status, errMsg string) error

	// ListJobs returns a snapshot of all records in no particular order.
	ListJobs(ctx context.Context) ([]*Record, error)

	// DeleteJob removes a record. Deleting a missing record is not an error.
	DeleteJob(ctx context.Context, jobID id.JobID) error
}
