// Package capture defines the capture-backend interface (CBI) of spec.md
// §4.3: a small, uniform contract that lets different platform capture
// mechanisms (DXGI, Desktop Duplication, NvFBC, XCB - all out of scope per
// spec.md §1) plug into the producer orchestrator interchangeably, in
// either a synchronous or asynchronous flavor.
//
// A concrete backend is registered globally by variant name (mirroring
// hal.RegisterBackend's pattern for GPU backends), so the producer selects
// one by name without every caller needing an import-time reference to the
// concrete type. This package also ships two reference backends,
// capture/noop and capture/synthetic, used by producer's own tests and by
// any integrator that wants a platform-independent capture source.
package capture

import (
	"fmt"

	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/wire"
)

// Result is the four-result vocabulary every blocking CBI operation returns,
// per spec.md §4.3 and the propagation policy in §7. It is a typed enum
// rather than a raw error so the orchestrator's state-machine transitions
// (retry / reinit / fatal) are driven by an exhaustive switch instead of
// errors.Is chains.
type Result int

const (
	// ResultOK indicates the operation completed successfully.
	ResultOK Result = iota
	// ResultTimeout indicates a transient condition; the caller retries on
	// its next tick without tearing anything down.
	ResultTimeout
	// ResultReinit asks the orchestrator to stop, deinit, and reinit this
	// backend (display mode change, device lost, secure-desktop switch).
	ResultReinit
	// ResultError is unrecoverable by REINIT; the orchestrator exits with a
	// well-known fatal code (spec.md §7).
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultTimeout:
		return "TIMEOUT"
	case ResultReinit:
		return "REINIT"
	case ResultError:
		return "ERROR"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Callbacks are the two hooks a backend is given at Create time so it can
// push cursor/pointer updates to the producer's cursor queue independently
// of frame cadence, per spec.md §4.3 ("is given two callbacks by which it
// can request a pointer payload buffer and publish a populated pointer
// update"). Modeled as plain closures rather than an interface the backend
// must implement, so the producer orchestrator - not the backend - owns the
// cursor queue and its lifetime; see spec.md §9's guidance to avoid mutual
// owning references between orchestrator and backend.
type Callbacks struct {
	// GetPointerBuffer returns a scratch buffer of at least size bytes that
	// the backend may fill with shape pixel data before calling
	// PostPointerBuffer. The buffer is only valid until the matching
	// PostPointerBuffer call returns.
	GetPointerBuffer func(size int) []byte

	// PostPointerBuffer publishes a cursor update. shapeData is nil unless
	// desc.Flags has CursorFlagShape set, in which case it is the buffer
	// most recently returned by GetPointerBuffer, populated by the backend.
	PostPointerBuffer func(desc wire.CursorDescriptor, shapeData []byte)
}

// Backend is the capability set of spec.md §4.3: a polymorphic value one
// concrete capture mechanism implements. Each backend is registered once by
// ShortName via Register and instantiated fresh per producer session via
// its factory.
type Backend interface {
	// ShortName identifies the backend for registration and selection, e.g.
	// "dxgi", "nvfbc", "xcb".
	ShortName() string

	// DisplayName is a human-readable label for logs and diagnostics.
	DisplayName() string

	// AsyncCapture reports whether Capture returns immediately and a
	// backend-owned thread later fulfils WaitFrame (true), or whether
	// Capture blocks on the caller's thread until a frame is ready (false).
	// The orchestrator must expose identical external behavior in either
	// mode; only the location of the waiting differs (spec.md §4.3, §9).
	AsyncCapture() bool

	// Deprecated marks a backend that still functions but should not be
	// preferred when multiple backends are available.
	Deprecated() bool

	// Create allocates the backend's internal state for one producer
	// session. cb gives the backend a channel back to the cursor queue;
	// nFrameBuffers is the number of rotating frame-buffer slots the
	// orchestrator will index Capture/WaitFrame/GetFrame calls against.
	Create(cb Callbacks, nFrameBuffers int) error

	// Init binds the backend to the session and negotiates the minimum
	// byte alignment it needs for pixel data to support zero-copy DMA
	// import; *alignment is the orchestrator's default on entry and the
	// backend's required alignment on return (spec.md §4.3's
	// `init(region_base, inout alignment)` - this port passes frame
	// buffers directly to Capture/GetFrame rather than a raw region base
	// address, since Go backends never need to compute absolute pointers
	// themselves).
	Init(alignment *uint64) error

	// Start begins the capture stream, if the backend requires an explicit
	// enter (some capture APIs are ready to capture as soon as Init
	// succeeds).
	Start() error

	// Stop ends the capture stream; symmetric with Start.
	Stop() error

	// Deinit releases session-scoped resources bound in Init.
	Deinit() error

	// Free releases the state allocated in Create. After Free the backend
	// value may be reused for a new session via Create.
	Free() error

	// Capture requests the next frame. frameBufferIndex names which
	// rotating slot the orchestrator intends to publish into; buf is where
	// a synchronous backend may stream pixels directly (an asynchronous
	// backend instead fills it from WaitFrame/GetFrame on its own thread).
	// Returns ResultReinit to request a backend restart, ResultTimeout if
	// no new frame is ready yet, ResultError if unrecoverable.
	Capture(frameBufferIndex int, buf *fb.Buffer) (Result, error)

	// WaitFrame blocks (synchronous backends: on the caller's thread;
	// asynchronous backends: on the backend's own thread) until the next
	// frame is ready, then fills desc with its metadata. maxPayloadSize
	// bounds how many pixel bytes the backend may report/produce.
	WaitFrame(frameBufferIndex int, maxPayloadSize uint64) (wire.FrameDescriptor, Result, error)

	// GetFrame streams the frame's pixels into buf, following the
	// descriptor WaitFrame returned for the same frameBufferIndex.
	GetFrame(frameBufferIndex int, buf *fb.Buffer, maxPayloadSize uint64) (Result, error)
}

// Factory creates a fresh, unconfigured Backend instance.
type Factory func() Backend
