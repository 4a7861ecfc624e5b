// Package job defines the JobRecord, its status state machine, and the
// store interface that is the source of truth for a job's lifecycle.
//
// # Status
//
// A [Record] moves through a closed set of statuses:
//
//	pending → processing → completed
//	pending → processing → failed
//	pending → failed              (recovery dead-letter only)
//
// Writing the current status again is allowed, which makes redelivered
// queue entries harmless. Terminal statuses never change.
//
// # Ownership
//
// The gateway creates records (pending) and deletes them. The worker that
// claimed the matching queue entry owns every later transition.
package job
