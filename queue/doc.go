// Package queue defines the work queue: an ordered, append-only log of
// entries shared by the workers of a consumer group.
//
// # Delivery
//
// [Queue.Claim] hands each new entry to exactly one consumer of the group
// and records it in the group's pending list. The entry stays pending
// until [Queue.Acknowledge] is called, so a worker that dies mid-job leaves
// its entries behind for [Queue.Reclaim]:
//
//	enqueue → claim (pending for consumer A) → acknowledge
//	enqueue → claim (A dies) → reclaim (pending for B) → acknowledge
//
// Delivery is at-least-once; consumers must tolerate seeing an entry again.
package queue
