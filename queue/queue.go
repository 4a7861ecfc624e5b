package queue

import (
	"context"
	"time"

	"github.com/alejochang/pdf-processor/id"
	"github.com/alejochang/pdf-processor/job"
)

// Entry is one immutable submission in the log.
type Entry struct {
	// ID is assigned by the queue on Enqueue and strictly increases in
	// append order ("<unix-ms>-<seq>").
	ID string `json:"id"`

	JobID    id.JobID       `json:"job_id"`
	Filename string         `json:"filename"`
	Parser   job.ParserKind `json:"parser"`

	// Deliveries counts how many times the entry has been handed to a
	// consumer, including this one. Set by Claim and Reclaim.
	Deliveries int64 `json:"deliveries,omitempty"`
}

// Pending describes a claimed entry that has not been acknowledged.
type Pending struct {
	EntryID    string
	Consumer   string
	Idle       time.Duration
	Deliveries int64
}

// Queue is the work queue contract. Implementations must be safe for
// concurrent use by many consumers.
type Queue interface {
	// Enqueue appends an entry and returns its assigned ID. It fails only
	// when the backend is unreachable (ErrQueueUnavailable).
	Enqueue(ctx context.Context, e *Entry) (string, error)

	// EnsureGroup creates a consumer group that reads from the start of
	// the log. An existing group is left untouched.
	EnsureGroup(ctx context.Context, group string) error

	// Claim returns up to count entries never delivered to any consumer of
	// group and adds them to consumer's pending list. When none are
	// available it waits up to block and then returns an empty slice. A
	// non-positive block does not wait.
	Claim(ctx context.Context, group, consumer string, count int, block time.Duration) ([]*Entry, error)

	// Acknowledge removes an entry from the group's pending list. Unknown
	// or already acknowledged IDs are not an error.
	Acknowledge(ctx context.Context, group, entryID string) error

	// Pending returns up to count entries of the group's pending list,
	// oldest first.
	Pending(ctx context.Context, group string, count int) ([]Pending, error)

	// Reclaim moves up to count pending entries idle for at least minIdle
	// to consumer and returns them with their updated delivery count.
	Reclaim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]*Entry, error)
}
