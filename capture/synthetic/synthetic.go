// Package synthetic registers a capture backend that produces caller-defined
// pixel data instead of capturing a real display. It exists for tests (and
// for any integrator bringing up the pipeline without a platform capture
// API) and is deliberately synchronous: Capture/WaitFrame/GetFrame all run
// on the caller's thread and complete immediately.
package synthetic

import (
	"fmt"
	"sync"

	"github.com/gogpu/glance/capture"
	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

func init() {
	capture.Register("synthetic", func() capture.Backend { return New() })
}

// Image is one frame's worth of pixel data and metadata, as produced by a
// Generator.
type Image struct {
	Width, Height uint32
	Pitch         uint32 // bytes per row; 0 means Width*BytesPerPixel(Format)
	Format        wire.PixelFormat
	Pixels        []byte
	Damage        []rects.Rect // nil/empty means "whole frame damaged"
}

// Generator produces the next frame for a given serial number. Returning ok
// == false makes Capture report ResultTimeout, simulating "no new frame
// available this tick" without tearing anything down.
type Generator func(serial uint64) (img Image, ok bool)

// BytesPerPixel returns the pixel stride in bytes for the wire pixel
// formats this backend can emit.
func BytesPerPixel(f wire.PixelFormat) int {
	switch f {
	case wire.PixelFormatBGRA, wire.PixelFormatRGBA, wire.PixelFormatRGBA10, wire.PixelFormatBGR32, wire.PixelFormatRGB24:
		return 4
	case wire.PixelFormatRGBA16F:
		return 8
	case wire.PixelFormatYUV420:
		return 1 // planar; pitch carries the luma-plane row size
	default:
		return 4
	}
}

// Backend is a configurable, synchronous capture.Backend driven entirely by
// a Generator function supplied via SetGenerator.
type Backend struct {
	mu        sync.Mutex
	gen       Generator
	serial    uint64
	alignment uint64
	cb        capture.Callbacks
	pending   map[int]*Image
}

// New creates an unconfigured synthetic backend. Call SetGenerator before
// using it with a producer.
func New() *Backend {
	return &Backend{pending: make(map[int]*Image)}
}

// Constant returns a Generator that always yields the same image, used by
// the simplest producer tests (spec.md §8 scenario S1).
func Constant(img Image) Generator {
	return func(uint64) (Image, bool) { return img, true }
}

// SetGenerator installs the frame-producing function. Safe to call before
// Create or at any point thereafter to change the pattern mid-session.
func (b *Backend) SetGenerator(gen Generator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen = gen
}

func (b *Backend) ShortName() string   { return "synthetic" }
func (b *Backend) DisplayName() string { return "Synthetic Capture" }
func (b *Backend) AsyncCapture() bool  { return false }
func (b *Backend) Deprecated() bool    { return false }

func (b *Backend) Create(cb capture.Callbacks, _ int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cb = cb
	b.serial = 0
	b.pending = make(map[int]*Image)
	return nil
}

func (b *Backend) Init(alignment *uint64) error {
	if *alignment == 0 {
		*alignment = 4096
	}
	b.alignment = *alignment
	return nil
}

func (b *Backend) Start() error  { return nil }
func (b *Backend) Stop() error   { return nil }
func (b *Backend) Deinit() error { return nil }

func (b *Backend) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[int]*Image)
	return nil
}

// Capture invokes the generator for the next serial and stashes the result
// keyed by frameBufferIndex for the matching WaitFrame/GetFrame calls.
func (b *Backend) Capture(frameBufferIndex int, _ *fb.Buffer) (capture.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gen == nil {
		return capture.ResultError, fmt.Errorf("synthetic: no generator configured")
	}
	b.serial++
	img, ok := b.gen(b.serial)
	if !ok {
		delete(b.pending, frameBufferIndex)
		return capture.ResultTimeout, nil
	}
	if img.Pitch == 0 {
		img.Pitch = img.Width * uint32(BytesPerPixel(img.Format)) //nolint:gosec // G115: bounded by test/image dimensions
	}
	cp := img
	b.pending[frameBufferIndex] = &cp
	return capture.ResultOK, nil
}

// WaitFrame returns immediately with the descriptor for the image most
// recently produced by Capture on this frameBufferIndex.
func (b *Backend) WaitFrame(frameBufferIndex int, maxPayloadSize uint64) (wire.FrameDescriptor, capture.Result, error) {
	b.mu.Lock()
	img, ok := b.pending[frameBufferIndex]
	b.mu.Unlock()
	if !ok {
		return wire.FrameDescriptor{}, capture.ResultTimeout, nil
	}

	payload := uint64(img.Pitch) * uint64(img.Height)
	truncated := payload > maxPayloadSize

	desc := wire.FrameDescriptor{
		ScreenWidth:  img.Width,
		ScreenHeight: img.Height,
		DataWidth:    img.Width,
		DataHeight:   img.Height,
		FrameWidth:   img.Width,
		FrameHeight:  img.Height,
		Pitch:        img.Pitch,
		Stride:       uint32(BytesPerPixel(img.Format)), //nolint:gosec // G115: small constant
		Format:       img.Format,
		Damage:       img.Damage,
	}
	if truncated {
		desc.Flags |= wire.FrameFlagTruncated
	}
	return desc, capture.ResultOK, nil
}

// GetFrame streams the pending image's pixels into buf, following the
// descriptor WaitFrame returned for the same frameBufferIndex.
func (b *Backend) GetFrame(frameBufferIndex int, buf *fb.Buffer, maxPayloadSize uint64) (capture.Result, error) {
	b.mu.Lock()
	img, ok := b.pending[frameBufferIndex]
	b.mu.Unlock()
	if !ok {
		return capture.ResultError, fmt.Errorf("synthetic: GetFrame called without a prior Capture for index %d", frameBufferIndex)
	}

	n := uint64(len(img.Pixels))
	if n > maxPayloadSize {
		n = maxPayloadSize
	}
	if err := buf.Write(img.Pixels[:n]); err != nil {
		return capture.ResultError, err
	}
	return capture.ResultOK, nil
}

// EmitPointer drives the backend's pointer callbacks as if the platform
// capture API had reported a cursor event - used by tests and by any
// integrator simulating pointer input without a real backend thread.
func (b *Backend) EmitPointer(desc wire.CursorDescriptor, shapeData []byte) {
	b.mu.Lock()
	cb := b.cb
	b.mu.Unlock()
	if cb.PostPointerBuffer != nil {
		cb.PostPointerBuffer(desc, shapeData)
	}
}
