package smt

import (
	"sync"
	"time"
)

// maxSubscribers bounds the number of simultaneously registered subscribers.
// Each subscriber is assigned a dense bit index in [0, maxSubscribers) used
// as its position in every queue slot's acknowledgement bitmap - mirroring
// the fixed per-queue subscriber count in the original wire header.
const maxSubscribers = 64

// bitIndexAllocator hands out dense indices in [0, maxSubscribers), reusing
// released indices so the ack-bitmap bit position stays compact.
type bitIndexAllocator struct {
	mu     sync.Mutex
	free   []int
	nextIx int
}

func newBitIndexAllocator() *bitIndexAllocator {
	return &bitIndexAllocator{}
}

func (a *bitIndexAllocator) alloc() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) > 0 {
		ix := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		return ix, true
	}
	if a.nextIx >= maxSubscribers {
		return 0, false
	}
	ix := a.nextIx
	a.nextIx++
	return ix, true
}

func (a *bitIndexAllocator) free_(ix int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.free = append(a.free, ix)
}

// subscriber is the host-side bookkeeping record for one registered
// subscriber: which queues it is subscribed to, its read cursor per queue,
// and the heartbeat used for timeout eviction.
type subscriber struct {
	mu        sync.Mutex
	bitIndex  int
	heartbeat time.Time
	cursors   map[QueueID]uint64 // last acknowledged producer sequence per queue
	subbed    map[QueueID]bool
}

func newSubscriber(bitIndex int) *subscriber {
	return &subscriber{
		bitIndex:  bitIndex,
		heartbeat: time.Now(),
		cursors:   make(map[QueueID]uint64),
		subbed:    make(map[QueueID]bool),
	}
}

func (s *subscriber) touch() {
	s.mu.Lock()
	s.heartbeat = time.Now()
	s.mu.Unlock()
}

func (s *subscriber) lastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeat
}
