package smt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/glance/internal/logging"
	"github.com/gogpu/glance/shm"
	"github.com/gogpu/glance/wire"
)

// Host is the producer-side handle returned by HostInit: spec.md §4.1's
// `host_handle`. It owns the queue set, the message heap, and the
// subscriber registry for one producer session.
type Host struct {
	mu sync.RWMutex

	sessionID       uint64
	sessionUserData []byte
	header          wire.Header

	heap      *Heap
	queues    map[QueueID]*Queue
	subs      *Registry[*subscriber, subscriberMarker]
	bitAlloc  *bitIndexAllocator
	cmd       *commandChannel
	corrupted atomic.Bool
}

// sessionCounter hands out strictly increasing session ids across
// reinitializations of the same process, satisfying spec.md §8 property 7
// ("session id strictly different from the previous session id").
var sessionCounter atomic.Uint64

// HostInit creates a new transport session over a heap of `heapSize` bytes,
// storing `sessionUserData` for consumers to retrieve via client_session_init.
// Matches spec.md §4.1's `host_init(region, size, session_user_data) →
// host_handle`. A real cross-process deployment maps the same shm.Region in
// every address space and addresses it with the offsets Host hands out
// (see package shm); Host's own Heap additionally keeps a same-process copy
// of the bytes so a same-process Client can WriteMessage/ReadMessage without
// a second, platform-specific mapping (the common loopback/test topology).
func HostInit(heapSize uint64, sessionUserData []byte) *Host {
	sessionID := sessionCounter.Add(1)
	header := wire.NewHeader(sessionID, wire.FeatureSetCursorPosition, "")
	return newHost(sessionID, header, NewHeap(heapSize), sessionUserData)
}

// HostInitOverRegion is HostInit backed by a real shm.Region instead of a
// plain Go slice: the region's bytes are what a cross-process consumer
// (mapping the same IVSHMEM BAR, or the same file via shm.OpenFile) reads
// at the offsets this Host's messages carry. The transport header (spec.md
// §3's "first bytes are a transport header") is encoded with wire.Header
// and written to the front of the region before the heap claims the rest;
// a cross-process consumer recovers it with wire.DecodeHeader before it
// knows anything else about the session. The caller owns region's lifetime
// and must Close it after this Host is no longer in use.
func HostInitOverRegion(region shm.Region, sessionUserData []byte) (*Host, error) {
	sessionID := sessionCounter.Add(1)
	header := wire.NewHeader(sessionID, wire.FeatureSetCursorPosition, "")
	encoded := header.Encode()
	if uint64(len(encoded)) > region.Size() {
		return nil, fmt.Errorf("smt: region of %d bytes too small for header of %d bytes", region.Size(), len(encoded))
	}
	copy(region.Bytes(), encoded)
	heap := NewHeapOverRegion(region, uint64(len(encoded)))
	return newHost(sessionID, header, heap, sessionUserData), nil
}

func newHost(sessionID uint64, header wire.Header, heap *Heap, sessionUserData []byte) *Host {
	h := &Host{
		sessionID:       sessionID,
		sessionUserData: append([]byte(nil), sessionUserData...),
		header:          header,
		heap:            heap,
		queues:          make(map[QueueID]*Queue),
		subs:            NewRegistry[*subscriber, subscriberMarker](),
		bitAlloc:        newBitIndexAllocator(),
		cmd:             newCommandChannel(),
	}
	logging.Logger().Debug("smt: host session initialized", "session_id", h.sessionID, "heap_bytes", heap.total)
	return h
}

// Header returns the transport header this session was initialized with.
func (h *Host) Header() wire.Header {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.header
}

// SessionID returns the current session identifier.
func (h *Host) SessionID() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionID
}

// SessionUserData returns the opaque session data supplied at HostInit.
func (h *Host) SessionUserData() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionUserData
}

// QueueNew declares a new queue, per spec.md §4.1's `queue_new(host_handle,
// config) → queue`.
func (h *Host) QueueNew(cfg QueueConfig) (QueueID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.queues[cfg.ID]; exists {
		return cfg.ID, nil
	}
	h.queues[cfg.ID] = newQueue(cfg, h.heap)
	return cfg.ID, nil
}

func (h *Host) queue(id QueueID) (*Queue, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	q, ok := h.queues[id]
	if !ok {
		return nil, ErrUnknownQueue
	}
	return q, nil
}

// MemAlloc carves a message buffer out of the session heap: spec.md §4.1's
// `mem_alloc(host_handle, size, alignment) → memory`.
func (h *Host) MemAlloc(size, alignment uint64) (Memory, error) {
	return h.heap.Alloc(size, alignment)
}

// MemFree releases a heap allocation back to the pool. Called once all
// interested subscribers have acknowledged, or a subscriber was evicted
// holding the last outstanding ack on it.
func (h *Host) MemFree(id HeapBlockID) error {
	return h.heap.Free(id)
}

// WriteMessage copies data into mem's heap allocation, making it visible to
// every subscriber's subsequent ReadMessage once the post carrying mem has
// been observed via client_process.
func (h *Host) WriteMessage(mem Memory, data []byte) error {
	return h.heap.WriteAt(mem, data)
}

// ReadMessage returns a copy of the bytes at [offset, offset+size), per a
// delivered Message's Offset/Size.
func (h *Host) ReadMessage(offset uint64, size uint32) []byte {
	return h.heap.ReadAt(offset, size)
}

// QueuePost publishes `mem` into the named queue with the given flags,
// per spec.md §4.1's `queue_post(queue, flags, memory) → status`.
func (h *Host) QueuePost(id QueueID, flags uint32, mem Memory) error {
	q, err := h.queue(id)
	if err != nil {
		return err
	}
	return q.post(flags, mem)
}

// QueuePending reports how many slots in the named queue hold
// unacknowledged data, per `queue_pending(queue) → count`.
func (h *Host) QueuePending(id QueueID) (int, error) {
	q, err := h.queue(id)
	if err != nil {
		return 0, err
	}
	return q.pending(), nil
}

// QueueHasSubs reports whether the named queue has any subscriber,
// per `queue_has_subs(queue) → bool`.
func (h *Host) QueueHasSubs(id QueueID) (bool, error) {
	q, err := h.queue(id)
	if err != nil {
		return false, err
	}
	return q.hasSubs(), nil
}

// QueueNewSubs returns and resets the new-subscriber counter for the named
// queue, per `queue_new_subs(queue) → count-since-last-call-then-zeroed`.
func (h *Host) QueueNewSubs(id QueueID) (int, error) {
	q, err := h.queue(id)
	if err != nil {
		return 0, err
	}
	return q.newSubsSinceLastCall(), nil
}

// QueueReadData peeks the oldest pending reverse-channel command without
// consuming it, per `queue_read_data(queue, out_buf)`.
func (h *Host) QueueReadData() (Command, bool) {
	return h.cmd.read()
}

// QueueAckData consumes the command most recently returned by
// QueueReadData, per `queue_ack_data(queue)`.
func (h *Host) QueueAckData() {
	h.cmd.ack()
}

// RegisterSubscriber allocates a new subscriber identity. Subscription to
// individual queues happens separately via Subscribe.
func (h *Host) RegisterSubscriber() (SubscriberID, error) {
	bitIx, ok := h.bitAlloc.alloc()
	if !ok {
		return SubscriberID{}, ErrQueueFull
	}
	id := h.subs.Register(newSubscriber(bitIx))
	return id, nil
}

// Subscribe attaches a registered subscriber to a queue.
func (h *Host) Subscribe(id SubscriberID, queueID QueueID) error {
	sub, err := h.subs.Get(id)
	if err != nil {
		return err
	}
	q, err := h.queue(queueID)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	sub.subbed[queueID] = true
	sub.mu.Unlock()
	q.subscribe(sub)
	return nil
}

// Unsubscribe detaches a subscriber from a queue and frees its ack bits.
func (h *Host) Unsubscribe(id SubscriberID, queueID QueueID) error {
	sub, err := h.subs.Get(id)
	if err != nil {
		return err
	}
	q, err := h.queue(queueID)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	delete(sub.subbed, queueID)
	sub.mu.Unlock()
	q.unsubscribe(sub.bitIndex)
	return nil
}

// UnregisterSubscriber fully removes a subscriber from every queue it was
// following and releases its identity and bit index for reuse.
func (h *Host) UnregisterSubscriber(id SubscriberID) error {
	sub, err := h.subs.Unregister(id)
	if err != nil {
		return err
	}
	sub.mu.Lock()
	subbed := make([]QueueID, 0, len(sub.subbed))
	for qid := range sub.subbed {
		subbed = append(subbed, qid)
	}
	sub.mu.Unlock()

	h.mu.RLock()
	for _, qid := range subbed {
		if q, ok := h.queues[qid]; ok {
			q.unsubscribe(sub.bitIndex)
		}
	}
	h.mu.RUnlock()
	h.bitAlloc.free_(sub.bitIndex)
	return nil
}

// Heartbeat records that the given subscriber is still alive, resetting its
// eviction clock. Called whenever a subscriber acknowledges or advances.
func (h *Host) Heartbeat(id SubscriberID) error {
	sub, err := h.subs.Get(id)
	if err != nil {
		return err
	}
	sub.touch()
	return nil
}

// Process performs the periodic transport-maintenance work described in
// spec.md §4.1: it sweeps every queue for subscribers that have stopped
// acknowledging past their queue's timeout, evicting them so their slots
// can be reclaimed, and validates basic header invariants. Returns
// ErrCorrupted (wrapped in a *CorruptionError) if those invariants fail;
// once reported, subsequent Process calls keep returning it until the
// caller reinitializes the transport with a fresh HostInit.
func (h *Host) Process() error {
	if h.corrupted.Load() {
		return ErrCorrupted
	}
	if h.sessionID == 0 {
		h.corrupted.Store(true)
		return NewCorruptionError("zero session id")
	}

	h.mu.RLock()
	queues := make([]*Queue, 0, len(h.queues))
	for _, q := range h.queues {
		queues = append(queues, q)
	}
	h.mu.RUnlock()

	for _, q := range queues {
		timeout := time.Duration(q.cfg.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			continue
		}
		evicted := q.evictTimedOut(func(sub *subscriber) bool {
			return time.Since(sub.lastSeen()) > timeout
		})
		for range evicted {
			logging.Logger().Debug("smt: subscriber evicted on timeout", "queue", q.cfg.ID, "timeout_ms", q.cfg.TimeoutMS)
		}
	}
	return nil
}
