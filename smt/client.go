package smt

import "sync"

// Message is what client_process delivers: the metadata of the oldest
// not-yet-consumed slot in a subscribed queue. The message bytes themselves
// live in the shared region at [Offset, Offset+Size) - the caller decodes
// them (see the wire package for the frame/cursor descriptor layouts).
type Message struct {
	Serial uint64
	Flags  uint32
	Offset uint64
	Size   uint32
}

// Client is the consumer-side handle: spec.md §4.1's contract mirrored for
// `client_init`/`client_session_init`/`client_subscribe`/etc. It operates
// against a Host directly, since both live in the same process; a
// cross-process consumer instead maps the same shared region and replays
// this same state machine against the wire-visible header and descriptors
// (see wire.Header, wire.FrameDescriptor) - the logic captured here is that
// replay loop, decoupled from the IPC boundary, run also by an in-process
// viewer / test harness.
type Client struct {
	mu      sync.Mutex
	host    *Host
	subID   SubscriberID
	cursors map[QueueID]uint64 // last delivered sequence per queue, for advance-to-last and message_done
}

// ClientInit binds a new client to a host's transport.
func ClientInit(host *Host) (*Client, error) {
	id, err := host.RegisterSubscriber()
	if err != nil {
		return nil, err
	}
	return &Client{
		host:    host,
		subID:   id,
		cursors: make(map[QueueID]uint64),
	}, nil
}

// SessionInit returns the producer's session user-data and session id,
// per spec.md §4.1's `client_session_init`.
func (c *Client) SessionInit() ([]byte, uint64) {
	return c.host.SessionUserData(), c.host.SessionID()
}

// Subscribe follows a queue, per `client_subscribe(queue_id)`.
func (c *Client) Subscribe(queueID QueueID) error {
	if err := c.host.Subscribe(c.subID, queueID); err != nil {
		return err
	}
	c.mu.Lock()
	if _, ok := c.cursors[queueID]; !ok {
		c.cursors[queueID] = 0
	}
	c.mu.Unlock()
	return c.host.Heartbeat(c.subID)
}

// Unsubscribe stops following a queue, per `client_unsubscribe`.
func (c *Client) Unsubscribe(queueID QueueID) error {
	return c.host.Unsubscribe(c.subID, queueID)
}

// AdvanceToLast skips the client's cursor to the newest posted slot in a
// queue, discarding any stale messages in between. Messages posted before
// this call are considered acknowledged by this subscriber, per spec.md
// §4.1's ordering guarantees.
func (c *Client) AdvanceToLast(queueID QueueID) error {
	q, err := c.host.queue(queueID)
	if err != nil {
		return err
	}
	sub, err := c.host.subs.Get(c.subID)
	if err != nil {
		return err
	}

	q.mu.Lock()
	latest := q.producerSeq
	for i := range q.slots {
		if q.slots[i].sequence != 0 {
			q.slots[i].acks |= uint64(1) << uint(sub.bitIndex)
			q.maybeFreeLocked(i)
		}
	}
	q.mu.Unlock()

	c.mu.Lock()
	c.cursors[queueID] = latest
	c.mu.Unlock()
	return c.host.Heartbeat(c.subID)
}

// Process returns the oldest message this client has not yet consumed in
// the named queue, per `client_process(queue, out_message)`. Returns
// (Message{}, false, nil) if nothing new is pending - the caller (the
// producer orchestrator's consumer-side test harness, or a same-process
// viewer) polls or backs off, matching spec.md's suspension-point model.
func (c *Client) Process(queueID QueueID) (Message, bool, error) {
	q, err := c.host.queue(queueID)
	if err != nil {
		return Message{}, false, err
	}

	c.mu.Lock()
	cursor := c.cursors[queueID]
	c.mu.Unlock()

	q.mu.Lock()
	defer q.mu.Unlock()

	var found *qslot
	for i := range q.slots {
		s := &q.slots[i]
		if s.sequence > cursor && (found == nil || s.sequence < found.sequence) {
			found = s
		}
	}
	if found == nil {
		return Message{}, false, nil
	}

	return Message{
		Serial: found.sequence,
		Flags:  found.flags,
		Offset: found.offset,
		Size:   found.size,
	}, true, nil
}

// ReadMessage returns a copy of msg's payload bytes, as delivered by
// Process. Decode it with the wire package's FrameDescriptor/CursorDescriptor
// codecs depending on which queue msg came from.
func (c *Client) ReadMessage(msg Message) []byte {
	return c.host.ReadMessage(msg.Offset, msg.Size)
}

// MessageDone acknowledges the message most recently returned by Process
// for this queue, per `client_message_done`, advancing the client's cursor
// and setting its ack bit on the underlying slot so the producer can
// reclaim the slot (freeing its heap block) once every subscriber has
// acknowledged it.
func (c *Client) MessageDone(queueID QueueID, msg Message) error {
	q, err := c.host.queue(queueID)
	if err != nil {
		return err
	}

	sub, err := c.host.subs.Get(c.subID)
	if err != nil {
		return err
	}

	q.ack(msg.Serial, sub.bitIndex)

	c.mu.Lock()
	if msg.Serial > c.cursors[queueID] {
		c.cursors[queueID] = msg.Serial
	}
	c.mu.Unlock()

	return c.host.Heartbeat(c.subID)
}

// PostCommand sends a reverse-channel command to the producer, e.g.
// SET_CURSOR_POS.
func (c *Client) PostCommand(cmd Command) {
	c.host.cmd.write(cmd)
}

// Close unregisters this client's subscriber identity from every queue it
// was following.
func (c *Client) Close() error {
	return c.host.UnregisterSubscriber(c.subID)
}
