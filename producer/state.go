// Package producer implements the producer orchestrator (PO) of spec.md
// §4.5: the state machine and main loop that ties a capture.Backend, the
// smt shared-memory transport, and an optional pp.Chain together into one
// running frame-publishing session.
package producer

import "sync/atomic"

// State is one node of the orchestrator's state machine, per spec.md §4.5.
type State int32

const (
	// StateIdle is the resting state: no subscribers on either queue.
	StateIdle State = iota
	// StateStarting creates, initialises and starts the backend.
	StateStarting
	// StateRunning is the normal capture loop.
	StateRunning
	// StateTransToIdle is entered when every subscriber has gone away.
	StateTransToIdle
	// StateReinitLGMP is entered after a capture or publish error, or when
	// the transport reports CORRUPTED. It tears the backend down, resets
	// damage tracking and re-enters STARTING. The shared-memory host, its
	// queues and its session id are kept; they are not re-created.
	StateReinitLGMP
	// StateShutdown is terminal, reachable from any state via Stop.
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateTransToIdle:
		return "TRANS_TO_IDLE"
	case StateReinitLGMP:
		return "REINIT_LGMP"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// stateBox is an atomically-accessed State, mirroring the transport's
// corrupted atomic.Bool flag style (see smt.Host).
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State      { return State(b.v.Load()) }
func (b *stateBox) store(s State)    { b.v.Store(int32(s)) }
func (b *stateBox) cas(old, new_ State) bool {
	return b.v.CompareAndSwap(int32(old), int32(new_))
}
