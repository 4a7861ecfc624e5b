// Package pdfprocessor is the job queue and worker orchestration core of the
// PDF processor. Requests are decoupled from processing: a gateway records a
// job and appends it to a stream, and any number of worker processes claim
// entries through a consumer group, run a parser over the uploaded file and
// publish the outcome.
//
// # Architecture
//
// Each concern defines its own interface in its own package and a single
// backend implements all of them:
//
//   - job: the JobRecord store, authoritative for status
//   - result: the expiring result store
//   - queue: the append-only work queue with consumer groups
//
// store/redis is the production backend (hash, string with TTL, stream);
// store/memory implements the same contracts in-process for tests and local
// development.
//
// # Delivery
//
// Delivery is at-least-once. A worker acknowledges every entry it finishes,
// successfully or not. Entries left pending by a dead worker are recovered
// by worker.Reclaimer.
package pdfprocessor
