package producer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/glance/capture"
	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/internal/logging"
	"github.com/gogpu/glance/internal/snatch"
	"github.com/gogpu/glance/internal/thread"
	"github.com/gogpu/glance/pp"
	"github.com/gogpu/glance/shm"
	"github.com/gogpu/glance/smt"
	"github.com/gogpu/glance/wire"
)

// Config configures a Producer. Struct-literal configuration, matching the
// rest of this module's ambient style (no functional options).
type Config struct {
	// HeapSize is the total shared-memory heap available for message
	// buffers across both queues. Defaults to 16 MiB when zero and Region
	// is nil. Ignored when Region is set, which supplies its own size.
	HeapSize uint64

	// Region backs the transport heap with a real mapped region (an
	// IVSHMEM BAR or a shm.OpenFile-backed file) instead of an ordinary Go
	// slice, so the offsets this Producer posts are valid in any other
	// address space that maps the same region. Leave nil for a
	// same-process loopback or test, which needs no real mapping.
	Region shm.Region

	// FrameQueueCapacity is Q_FRAME's slot count; spec.md §6 names 4 as the
	// reference value.
	FrameQueueCapacity int
	// PointerQueueCapacity is Q_POINTER's slot count.
	PointerQueueCapacity int
	// QueueTimeoutMS is the subscriber eviction timeout shared by both
	// queues (spec.md §5: "typical 1000 ms").
	QueueTimeoutMS int

	// NFrameBuffers is the number of rotating frame-buffer slots the
	// backend indexes Capture/WaitFrame/GetFrame calls against.
	NFrameBuffers int
	// FrameBufferSize bounds how many bytes each rotating fb.Buffer holds.
	FrameBufferSize int

	// ThrottleFPS caps capture rate; 0 disables throttling.
	ThrottleFPS int

	// Backend is the capture backend driving this session.
	Backend capture.Backend
	// Chain is the optional post-process chain; nil runs captured frames
	// through unmodified.
	Chain *pp.Chain

	// Signals reports host-OS-level state for the frame descriptor's
	// BLOCK_SCREENSAVER/REQUEST_ACTIVATION flags. Defaults to a HostSignals
	// that always reports false.
	Signals HostSignals

	// SessionUserData is opaque data made available to consumers via
	// client_session_init.
	SessionUserData []byte
}

// Producer is the producer orchestrator (PO): spec.md §4.5's state machine,
// main loop, send_frame, and cursor pipeline, wired to one smt.Host and one
// capture.Backend.
type Producer struct {
	cfg Config

	host *smt.Host

	backendLock *snatch.Lock
	backend     *snatch.Snatchable[capture.Backend]

	chain *pp.Chain

	state   stateBox
	stopReq atomic.Bool

	serial       atomic.Uint64
	captureIndex int
	readIndex    int
	haveRead     bool
	buffers      []*fb.Buffer

	alignment uint64

	cursor  cursorState
	damage  *damageHistory
	maintWG sync.WaitGroup

	frameThread      *thread.Thread
	lastCaptureNanos atomic.Int64
	lastMem          smt.Memory
	haveLastMem      bool
}

// New validates cfg and constructs a Producer. The shared-memory host and
// its two well-known queues are created here, once, for the lifetime of the
// Producer, as are the frame buffers; STARTING only (re)creates and starts
// the backend, matching spec.md §9's guidance that the transport and the backend
// have independent, not mutually-owning, lifecycles.
func New(cfg Config) (*Producer, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("producer: Config.Backend is required")
	}
	if cfg.NFrameBuffers <= 0 {
		cfg.NFrameBuffers = 2
	}
	if cfg.FrameQueueCapacity <= 0 {
		cfg.FrameQueueCapacity = 4
	}
	if cfg.PointerQueueCapacity <= 0 {
		cfg.PointerQueueCapacity = 4
	}
	if cfg.QueueTimeoutMS <= 0 {
		cfg.QueueTimeoutMS = 1000
	}
	if cfg.FrameBufferSize <= 0 {
		cfg.FrameBufferSize = 16 << 20
	}
	if cfg.HeapSize == 0 && cfg.Region == nil {
		cfg.HeapSize = 16 << 20
	}
	if cfg.Signals == nil {
		cfg.Signals = noSignals{}
	}

	var host *smt.Host
	if cfg.Region != nil {
		var err error
		host, err = smt.HostInitOverRegion(cfg.Region, cfg.SessionUserData)
		if err != nil {
			return nil, fmt.Errorf("producer: %w", err)
		}
	} else {
		host = smt.HostInit(cfg.HeapSize, cfg.SessionUserData)
	}
	if _, err := host.QueueNew(smt.QueueConfig{ID: smt.QFrame, Capacity: cfg.FrameQueueCapacity, TimeoutMS: cfg.QueueTimeoutMS}); err != nil {
		return nil, fmt.Errorf("producer: declare frame queue: %w", err)
	}
	if _, err := host.QueueNew(smt.QueueConfig{ID: smt.QPointer, Capacity: cfg.PointerQueueCapacity, TimeoutMS: cfg.QueueTimeoutMS}); err != nil {
		return nil, fmt.Errorf("producer: declare pointer queue: %w", err)
	}

	buffers := make([]*fb.Buffer, cfg.NFrameBuffers)
	for i := range buffers {
		buffers[i] = fb.New(cfg.FrameBufferSize)
	}

	backend := cfg.Backend
	if cfg.Chain != nil {
		backend = newChainedBackend(backend, cfg.Chain, cfg.NFrameBuffers, cfg.FrameBufferSize)
	}

	p := &Producer{
		cfg:         cfg,
		host:        host,
		backendLock: snatch.NewLock(),
		backend:     snatch.New(backend),
		chain:       cfg.Chain,
		buffers:     buffers,
		damage:      newDamageHistory(),
		alignment:   64,
	}
	p.state.store(StateIdle)
	return p, nil
}

// Host exposes the underlying transport handle, e.g. so an embedder can
// hand it to a same-process consumer for a loopback setup.
func (p *Producer) Host() *smt.Host { return p.host }

// State reports the orchestrator's current state.
func (p *Producer) State() State { return p.state.load() }

// Stop requests a transition to SHUTDOWN; Run returns once the current
// tick observes the request.
func (p *Producer) Stop() { p.stopReq.Store(true) }

// Run drives the state machine until Stop is called or ctx is cancelled,
// per spec.md §4.5. It blocks on the calling goroutine; the frame/pointer/
// maintenance threads it spawns internally are joined before Run returns.
func (p *Producer) Run(ctx context.Context) error {
	defer p.maintWG.Wait()

	// Maintenance keeps sweeping subscriber timeouts until Run itself
	// returns, so a send_frame waiting on a silent consumer after ctx is
	// cancelled is released by that consumer's eviction.
	maintCtx, cancelMaint := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelMaint()
	p.maintWG.Add(1)
	go p.maintenanceLoop(maintCtx)

	for {
		if ctx.Err() != nil || p.stopReq.Load() {
			p.state.store(StateShutdown)
			return nil
		}

		switch p.state.load() {
		case StateIdle:
			if err := p.runIdle(ctx); err != nil {
				return err
			}
		case StateStarting:
			if err := p.runStarting(); err != nil {
				logging.Logger().Error("producer: starting failed", "error", err)
				p.state.store(StateTransToIdle)
				continue
			}
			p.state.store(StateRunning)
		case StateRunning:
			if err := p.runTick(); err != nil {
				return err
			}
		case StateTransToIdle:
			p.teardownBackend()
			p.state.store(StateIdle)
		case StateReinitLGMP:
			p.teardownBackend()
			p.damage.reset()
			p.state.store(StateStarting)
		case StateShutdown:
			p.teardownBackend()
			return nil
		}
	}
}

// runIdle blocks briefly waiting for a subscriber to appear on either
// queue, then transitions to STARTING.
func (p *Producer) runIdle(ctx context.Context) error {
	for {
		if ctx.Err() != nil || p.stopReq.Load() {
			p.state.store(StateShutdown)
			return nil
		}
		frameSubs, _ := p.host.QueueHasSubs(smt.QFrame)
		pointerSubs, _ := p.host.QueueHasSubs(smt.QPointer)
		if frameSubs || pointerSubs {
			p.state.store(StateStarting)
			return nil
		}
		select {
		case <-ctx.Done():
			p.state.store(StateShutdown)
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// runStarting brings the backend up, per spec.md §4.5's STARTING node.
func (p *Producer) runStarting() error {
	guard := p.backendLock.Read()
	b := p.backend.Get(guard)
	guard.Release()
	if b == nil {
		return fmt.Errorf("producer: backend unavailable (snatched)")
	}
	backend := *b

	cb := capture.Callbacks{
		GetPointerBuffer:  p.getPointerBuffer,
		PostPointerBuffer: p.postPointerBuffer,
	}
	if err := backend.Create(cb, len(p.buffers)); err != nil {
		return fmt.Errorf("backend.Create: %w", err)
	}
	if err := backend.Init(&p.alignment); err != nil {
		return fmt.Errorf("backend.Init: %w", err)
	}
	if err := backend.Start(); err != nil {
		return fmt.Errorf("backend.Start: %w", err)
	}

	if backend.AsyncCapture() {
		p.frameThread = thread.New()
		p.frameThread.CallAsync(p.asyncFrameLoop)
	}

	logging.Logger().Info("producer: backend started", "backend", backend.ShortName(), "async", backend.AsyncCapture())
	return nil
}

// teardownBackend stops and frees the backend, and joins the frame thread
// if one was spawned for an async backend.
func (p *Producer) teardownBackend() {
	if p.frameThread != nil {
		p.frameThread.Stop()
		p.frameThread = nil
	}
	guard := p.backendLock.Read()
	b := p.backend.Get(guard)
	guard.Release()
	if b == nil {
		return
	}
	backend := *b
	if err := backend.Stop(); err != nil {
		logging.Logger().Warn("producer: backend.Stop failed", "error", err)
	}
	if err := backend.Deinit(); err != nil {
		logging.Logger().Warn("producer: backend.Deinit failed", "error", err)
	}
}

// runTick executes one RUNNING-state iteration, per spec.md §4.5's
// "main loop per tick".
func (p *Producer) runTick() error {
	frameSubs, _ := p.host.QueueHasSubs(smt.QFrame)
	pointerSubs, _ := p.host.QueueHasSubs(smt.QPointer)
	if !frameSubs && !pointerSubs {
		p.state.store(StateTransToIdle)
		return nil
	}

	// Step 1: resend cursor state to a brand-new pointer subscriber.
	if n, _ := p.host.QueueNewSubs(smt.QPointer); n > 0 {
		p.resendCursor()
	}

	// Step 2: throttle.
	p.throttle()

	guard := p.backendLock.Read()
	b := p.backend.Get(guard)
	guard.Release()
	if b == nil {
		p.state.store(StateTransToIdle)
		return nil
	}
	backend := *b

	if backend.AsyncCapture() {
		// The async frame thread drives WaitFrame/GetFrame/send_frame on
		// its own; the main loop still owns Capture for scheduling.
		_, _ = backend.Capture(p.captureIndex, p.buffers[p.captureIndex])
		return nil
	}

	buf := p.buffers[p.captureIndex]
	result, err := backend.Capture(p.captureIndex, buf)
	if err != nil {
		logging.Logger().Error("producer: capture error", "error", err)
		p.state.store(StateReinitLGMP)
		return nil
	}

	switch result {
	case capture.ResultOK:
		if err := p.sendFrame(backend, p.captureIndex); err != nil {
			logging.Logger().Error("producer: send_frame failed", "error", err)
			p.state.store(StateReinitLGMP)
		}
	case capture.ResultTimeout:
		if n, _ := p.host.QueueNewSubs(smt.QFrame); n > 0 && p.haveRead {
			p.resendLastFrame()
		}
	case capture.ResultReinit:
		p.state.store(StateTransToIdle)
	case capture.ResultError:
		return fmt.Errorf("producer: backend reported fatal error")
	}
	return nil
}

// asyncFrameLoop is the "frame thread" of spec.md §5, present only for
// async backends: it repeatedly waits for the backend's own thread to
// fulfil a frame and publishes it, terminating on any non-OK/TIMEOUT
// result.
func (p *Producer) asyncFrameLoop() {
	for p.state.load() == StateRunning || p.state.load() == StateStarting {
		guard := p.backendLock.Read()
		b := p.backend.Get(guard)
		guard.Release()
		if b == nil {
			return
		}
		backend := *b
		if err := p.sendFrame(backend, p.captureIndex); err != nil {
			logging.Logger().Error("producer: async send_frame failed", "error", err)
			p.state.store(StateReinitLGMP)
			return
		}
	}
}

// throttle sleeps the remainder of one frame interval if capture was
// started less than 1,000,000/ThrottleFPS microseconds ago.
func (p *Producer) throttle() {
	if p.cfg.ThrottleFPS <= 0 {
		return
	}
	interval := time.Second / time.Duration(p.cfg.ThrottleFPS)
	now := time.Now()
	last := time.Unix(0, p.lastCaptureNanos.Load())
	if elapsed := now.Sub(last); elapsed < interval {
		time.Sleep(interval - elapsed)
	}
	p.lastCaptureNanos.Store(time.Now().UnixNano())
}

// sendFrame implements spec.md §4.5's send_frame: wait for queue headroom,
// fill a descriptor, compute flags, assign a serial, then post first and
// copy pixels second.
func (p *Producer) sendFrame(backend capture.Backend, bufIndex int) error {
	for {
		pending, err := p.host.QueuePending(smt.QFrame)
		if err != nil {
			return err
		}
		if pending < p.cfg.FrameQueueCapacity {
			break
		}
		time.Sleep(time.Millisecond)
	}

	buf := p.buffers[bufIndex]
	const maxPayload = 1 << 30
	desc, result, err := backend.WaitFrame(bufIndex, maxPayload)
	if err != nil {
		return err
	}
	switch result {
	case capture.ResultTimeout:
		return nil
	case capture.ResultReinit:
		p.state.store(StateTransToIdle)
		return nil
	case capture.ResultError:
		return fmt.Errorf("producer: backend.WaitFrame error")
	}

	if desc.DataHeight < desc.ScreenHeight {
		desc.Flags |= wire.FrameFlagTruncated
	}
	if p.cfg.Signals.ScreensaverBlocked() {
		desc.Flags |= wire.FrameFlagBlockScreensaver
	}
	if p.cfg.Signals.ActivationRequested() {
		desc.Flags |= wire.FrameFlagRequestActivation
	}

	desc.Serial = p.serial.Add(1)
	desc.Damage = p.damage.rectsForSlot(bufIndex, desc.Damage, int32(desc.FrameWidth), int32(desc.FrameHeight))

	buf.Prepare()

	// Offset is always 0: pixel payload lives in this frame-buffer slot's
	// fb.Buffer, a separate object from the heap-allocated descriptor
	// message (see the comment on capture.Backend.Init), not appended
	// in-place after the descriptor the way a single flat shared region
	// would lay it out.
	desc.Offset = 0
	encoded := desc.Encode()
	mem, err := p.host.MemAlloc(uint64(len(encoded)), p.alignment)
	if err != nil {
		return fmt.Errorf("producer: mem_alloc: %w", err)
	}
	if err := p.host.WriteMessage(mem, encoded); err != nil {
		return fmt.Errorf("producer: write descriptor: %w", err)
	}

	// Post first, copy second (spec.md §4.5 step 5): publish the slot
	// before pixels are necessarily fully written, so a consumer blocked
	// on fb.Buffer.Wait starts reading as bytes land.
	if err := p.host.QueuePost(smt.QFrame, uint32(wire.FrameFlagUpdate), mem); err != nil {
		return fmt.Errorf("producer: queue_post: %w", err)
	}
	if _, err := backend.GetFrame(bufIndex, buf, maxPayload); err != nil {
		return fmt.Errorf("producer: backend.GetFrame: %w", err)
	}

	p.captureIndex = (p.captureIndex + 1) % len(p.buffers)
	p.readIndex = bufIndex
	p.haveRead = true
	p.lastMem = mem
	p.haveLastMem = true
	return nil
}

// resendLastFrame re-publishes the descriptor most recently published, for a
// synchronous backend's TIMEOUT-with-new-subscriber path (spec.md §4.5
// step 3): a late subscriber would otherwise wait indefinitely for the
// next genuinely-changed frame. It copies the prior descriptor's bytes into
// a fresh heap allocation rather than re-posting the original Memory handle,
// since that handle's block may since have been freed back to the heap by
// full subscriber acknowledgement of its first post.
func (p *Producer) resendLastFrame() {
	if !p.haveLastMem {
		return
	}
	payload := p.host.ReadMessage(p.lastMem.Offset, uint32(p.lastMem.Size))
	mem, err := p.host.MemAlloc(uint64(len(payload)), p.alignment)
	if err != nil {
		logging.Logger().Warn("producer: resend mem_alloc failed", "error", err)
		return
	}
	if err := p.host.WriteMessage(mem, payload); err != nil {
		logging.Logger().Warn("producer: resend write failed", "error", err)
		return
	}
	if err := p.host.QueuePost(smt.QFrame, uint32(wire.FrameFlagUpdate), mem); err != nil {
		logging.Logger().Warn("producer: resend post failed", "error", err)
		return
	}
	p.lastMem = mem
}

// getPointerBuffer and postPointerBuffer are capture.Callbacks passed to
// the backend at Create time (spec.md §4.3).
func (p *Producer) getPointerBuffer(size int) []byte {
	return make([]byte, size)
}

func (p *Producer) postPointerBuffer(desc wire.CursorDescriptor, shapeData []byte) {
	p.cursor.update(desc, shapeData)

	payload := desc.Encode()
	payload = append(payload, shapeData...)
	mem, err := p.host.MemAlloc(uint64(len(payload)), 1)
	if err != nil {
		logging.Logger().Warn("producer: pointer mem_alloc failed", "error", err)
		return
	}
	if err := p.host.WriteMessage(mem, payload); err != nil {
		logging.Logger().Warn("producer: pointer write failed", "error", err)
		return
	}
	if err := p.host.QueuePost(smt.QPointer, uint32(desc.Flags), mem); err != nil {
		logging.Logger().Warn("producer: pointer queue_post failed", "error", err)
	}
}

// resendCursor re-publishes the producer's last-known cursor position,
// visibility, and (if ever received) shape to a newly-subscribed consumer,
// satisfying spec.md §8 property 10.
func (p *Producer) resendCursor() {
	desc, payload := p.cursor.snapshotForResend()
	full := desc.Encode()
	full = append(full, payload...)
	mem, err := p.host.MemAlloc(uint64(len(full)), 1)
	if err != nil {
		logging.Logger().Warn("producer: cursor resend alloc failed", "error", err)
		return
	}
	if err := p.host.WriteMessage(mem, full); err != nil {
		logging.Logger().Warn("producer: cursor resend write failed", "error", err)
		return
	}
	if err := p.host.QueuePost(smt.QPointer, uint32(desc.Flags), mem); err != nil {
		logging.Logger().Warn("producer: cursor resend post failed", "error", err)
	}
}

// maintenanceLoop is the ~100Hz "transport maintenance" thread of spec.md
// §5: it calls Process to sweep subscriber timeouts and drains the
// host-bound command queue.
func (p *Producer) maintenanceLoop(ctx context.Context) {
	defer p.maintWG.Done()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.host.Process(); err != nil {
				logging.Logger().Error("producer: transport corrupted", "error", err)
				p.state.store(StateReinitLGMP)
			}
			p.drainCommands()
		}
	}
}

// drainCommands services the reverse command channel (spec.md §6):
// currently only SET_CURSOR_POS.
func (p *Producer) drainCommands() {
	for {
		cmd, ok := p.host.QueueReadData()
		if !ok {
			return
		}
		kind, payload, err := wire.DecodeCommand(cmd.Payload)
		if err != nil {
			logging.Logger().Warn("producer: bad command payload", "error", err)
			p.host.QueueAckData()
			continue
		}
		switch kind {
		case wire.CommandSetCursorPos:
			if pos, ok := payload.(wire.SetCursorPos); ok {
				p.cursor.mu.Lock()
				p.cursor.x, p.cursor.y = int16(pos.X), int16(pos.Y)
				p.cursor.mu.Unlock()
			}
		}
		p.host.QueueAckData()
	}
}
