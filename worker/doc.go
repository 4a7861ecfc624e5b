// Package worker drives queue entries to a terminal job status.
//
// An [Executor] runs the per-entry state machine: mark the record
// processing, invoke the parser through middleware, write the result, set
// the terminal status, and always acknowledge. A [Worker] is one consumer
// of the group: it claims entries and hands them to the executor until its
// context is canceled. A [Pool] runs several workers in one process, and a
// [Reclaimer] periodically takes over entries whose consumer died.
package worker
