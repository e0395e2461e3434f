package smt

import (
	"sync"

	"github.com/gogpu/glance/internal/logging"
)

// QueueID names one of the transport's well-known queues.
type QueueID uint32

const (
	// QFrame is the frame-descriptor queue.
	QFrame QueueID = iota
	// QPointer is the cursor/pointer queue.
	QPointer
)

func (q QueueID) String() string {
	switch q {
	case QFrame:
		return "frame"
	case QPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// QueueConfig declares a queue's capacity and subscriber timeout at creation
// time, per spec.md §3 ("a queue declares a subscriber timeout in
// milliseconds used to evict non-acknowledging subscribers").
type QueueConfig struct {
	ID        QueueID
	Capacity  int
	TimeoutMS int
}

// qslot is one ring entry: a posted message's metadata plus the bitmap of
// subscribers that have acknowledged it.
type qslot struct {
	sequence uint64 // 0 means never posted (or fully reclaimed, see maybeFreeLocked)
	flags    uint32
	size     uint32
	offset   uint64
	heapID   HeapBlockID // the Heap block backing this slot's message, freed on reclaim
	acks     uint64      // bit i set => subscriber with bitIndex i has acknowledged
}

// Queue is one multi-producer(single, in practice)/multi-consumer ring of
// message slots, backed by Heap-allocated message buffers.
//
// Thread-safe for concurrent use, though spec.md §4.1's concurrency model
// assumes a single producer thread per queue; the mutex here protects
// bookkeeping shared with the transport-maintenance tick (Process) and any
// number of consumer threads.
type Queue struct {
	mu sync.Mutex

	cfg  QueueConfig
	heap *Heap

	slots       []qslot
	writeCursor int
	producerSeq uint64

	subscribers  map[int]*subscriber // keyed by bitIndex
	newSubsCount int
}

func newQueue(cfg QueueConfig, heap *Heap) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 4
	}
	return &Queue{
		cfg:         cfg,
		heap:        heap,
		slots:       make([]qslot, cfg.Capacity),
		subscribers: make(map[int]*subscriber),
	}
}

// pending returns the number of slots currently holding unacknowledged data
// for at least one subscriber.
func (q *Queue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for i := range q.slots {
		if q.slots[i].sequence != 0 {
			n++
		}
	}
	return n
}

// hasSubs reports whether any subscriber currently follows this queue.
func (q *Queue) hasSubs() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subscribers) > 0
}

// newSubsSinceLastCall returns the number of subscribers that joined since
// the previous call, then resets the counter to zero - spec.md §4.1's
// `queue_new_subs(queue) → count-since-last-call-then-zeroed`.
func (q *Queue) newSubsSinceLastCall() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.newSubsCount
	q.newSubsCount = 0
	return n
}

// post publishes a message into the next ring slot, freeing the heap block
// of whatever message previously occupied that slot back to the Heap (all
// prior subscribers are implicitly considered done with a slot once it is
// overwritten - the producer never blocks waiting for a slow consumer beyond
// its timeout). Returns ErrQueueFull if pending() has already reached
// capacity; the caller (send_frame per spec.md §4.5) is expected to spin
// until a slot frees up.
func (q *Queue) post(flags uint32, mem Memory) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	// With no subscriber left to acknowledge them, earlier slots are
	// complete; reclaim them so posts into an unwatched queue never fill it.
	if len(q.subscribers) == 0 {
		for i := range q.slots {
			q.maybeFreeLocked(i)
		}
	}

	if q.pendingLocked() >= len(q.slots) {
		return ErrQueueFull
	}

	idx := q.writeCursor
	old := q.slots[idx]
	if old.sequence != 0 && !old.heapID.IsZero() {
		if err := q.heap.Free(old.heapID); err != nil {
			logging.Logger().Warn("smt: heap free on slot overwrite failed", "error", err)
		}
	}

	q.producerSeq++
	q.slots[idx] = qslot{
		sequence: q.producerSeq,
		flags:    flags,
		size:     uint32(mem.Size), //nolint:gosec // G115: message sizes are bounded well under 2^32
		offset:   mem.Offset,
		heapID:   mem.ID,
	}
	q.writeCursor = (q.writeCursor + 1) % len(q.slots)
	return nil
}

func (q *Queue) pendingLocked() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].sequence != 0 {
			n++
		}
	}
	return n
}

// subscriberMaskLocked returns the bitmask of every currently-subscribed
// bit index. Must be called with q.mu held.
func (q *Queue) subscriberMaskLocked() uint64 {
	var mask uint64
	for ix := range q.subscribers {
		mask |= uint64(1) << uint(ix)
	}
	return mask
}

// maybeFreeLocked frees slot i's heap block and clears it once every
// currently-subscribed bit index has acknowledged it - spec.md §3's "reclaimed
// when the last subscriber acknowledges" and testable property 6. A
// subscriber that joins after the slot was posted has an unset ack bit and
// is therefore counted as outstanding, so the slot is not reclaimed out from
// under it. Must be called with q.mu held.
func (q *Queue) maybeFreeLocked(i int) {
	s := &q.slots[i]
	if s.sequence == 0 || s.heapID.IsZero() {
		return
	}
	if mask := q.subscriberMaskLocked(); mask != 0 && s.acks&mask != mask {
		return
	}
	if err := q.heap.Free(s.heapID); err != nil {
		logging.Logger().Warn("smt: heap free on full ack failed", "error", err)
	}
	*s = qslot{}
}

// ack sets bitIndex's acknowledgement bit on the slot carrying serial, then
// reclaims its heap block if that completes the slot's ack set, per
// client_message_done (spec.md §4.1).
func (q *Queue) ack(serial uint64, bitIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.slots {
		if q.slots[i].sequence == serial {
			q.slots[i].acks |= uint64(1) << uint(bitIndex)
			q.maybeFreeLocked(i)
			return
		}
	}
}

// subscribe registers a subscriber's interest in this queue and marks it as
// "new" for the next queue_new_subs call.
func (q *Queue) subscribe(sub *subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, already := q.subscribers[sub.bitIndex]; already {
		return
	}
	q.subscribers[sub.bitIndex] = sub
	q.newSubsCount++
}

// unsubscribe removes a subscriber and clears its ack bits from every slot,
// then reclaims any slot that departure completed the ack set for (spec.md
// §3: a subscriber's outstanding, un-acknowledged slots must not block
// reclamation forever once it is gone).
func (q *Queue) unsubscribe(bitIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.subscribers, bitIndex)
	mask := ^(uint64(1) << uint(bitIndex))
	for i := range q.slots {
		q.slots[i].acks &= mask
		q.maybeFreeLocked(i)
	}
}

// evictTimedOut drops any subscriber whose last heartbeat is older than the
// queue's configured timeout, clearing their ack bits and reclaiming any
// slot their eviction completed the ack set for (spec.md §3 testable
// property 6). Returns the evicted bit indices.
func (q *Queue) evictTimedOut(isStale func(*subscriber) bool) []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var evicted []int
	for ix, sub := range q.subscribers {
		if isStale(sub) {
			evicted = append(evicted, ix)
			delete(q.subscribers, ix)
			mask := ^(uint64(1) << uint(ix))
			for i := range q.slots {
				q.slots[i].acks &= mask
			}
		}
	}
	if len(evicted) > 0 {
		for i := range q.slots {
			q.maybeFreeLocked(i)
		}
	}
	return evicted
}
