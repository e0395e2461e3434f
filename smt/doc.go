// Package smt implements the shared-memory transport: a multi-queue,
// multi-producer/multi-consumer message-passing protocol layered over a
// single mapped shared-memory region.
//
// The region holds a transport header, a small fixed set of ring queues
// (each a sequence of message slots), and a heap of variable-size message
// buffers carved out on demand. A single producer posts to each queue; any
// number of subscribers read independently, acknowledging slots as they go.
// A subscriber that stops acknowledging is evicted once its queue's
// configured timeout elapses.
//
// Resource identities (subscribers, heap allocations) are managed with the
// same epoch-checked index scheme used throughout this module: an ID
// combines a dense slot index with an epoch counter, so a stale ID from a
// destroyed/reused slot is detected rather than silently aliased.
package smt
