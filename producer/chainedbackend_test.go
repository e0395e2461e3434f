package producer

import (
	"testing"

	"github.com/gogpu/glance/capture"
	"github.com/gogpu/glance/capture/synthetic"
	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/pp"
	"github.com/gogpu/glance/wire"
)

// TestChainedBackend_NegotiatesAndTransformsFrame drives a chainedBackend
// wrapping a synthetic.Backend through one capture cycle, checking that
// WaitFrame reports the post-processed dimensions and GetFrame returns
// pixels the chain actually transformed.
func TestChainedBackend_NegotiatesAndTransformsFrame(t *testing.T) {
	const srcW, srcH = 4, 4
	pixels := make([]byte, srcW*srcH*4)
	for i := range pixels {
		pixels[i] = byte(i % 256)
	}

	inner := synthetic.New()
	inner.SetGenerator(synthetic.Constant(synthetic.Image{
		Width: srcW, Height: srcH, Format: wire.PixelFormatBGRA, Pixels: pixels,
	}))

	chain := pp.NewChain(&pp.Downsample{TargetWidth: 2, TargetHeight: 2})
	if err := chain.Setup(nil, false); err != nil {
		t.Fatalf("chain.Setup: %v", err)
	}

	cb := newChainedBackend(inner, chain, 1, 1<<16)

	var alignment uint64
	if err := cb.Create(capture.Callbacks{}, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := cb.Init(&alignment); err != nil {
		t.Fatalf("Init: %v", err)
	}

	result, err := cb.Capture(0, nil)
	if err != nil || result != capture.ResultOK {
		t.Fatalf("Capture: result=%v err=%v", result, err)
	}

	desc, result, err := cb.WaitFrame(0, 1<<20)
	if err != nil || result != capture.ResultOK {
		t.Fatalf("WaitFrame: result=%v err=%v", result, err)
	}
	if desc.FrameWidth != 2 || desc.FrameHeight != 2 {
		t.Fatalf("WaitFrame dims = %dx%d, want 2x2", desc.FrameWidth, desc.FrameHeight)
	}

	out := fb.New(1 << 16)
	out.Prepare()
	result, err = cb.GetFrame(0, out, 1<<20)
	if err != nil || result != capture.ResultOK {
		t.Fatalf("GetFrame: result=%v err=%v", result, err)
	}
	want := uint64(2 * 2 * 4)
	if out.WritePtr() != want {
		t.Fatalf("GetFrame wrote %d bytes, want %d", out.WritePtr(), want)
	}
}

// TestChainedBackend_GetFrameBeforeWaitFrameErrors checks the defensive
// ordering guard: GetFrame must not be called before WaitFrame has
// negotiated a shape for that slot.
func TestChainedBackend_GetFrameBeforeWaitFrameErrors(t *testing.T) {
	inner := synthetic.New()
	inner.SetGenerator(synthetic.Constant(synthetic.Image{
		Width: 2, Height: 2, Format: wire.PixelFormatBGRA, Pixels: make([]byte, 16),
	}))
	chain := pp.NewChain(&pp.Downsample{TargetWidth: 1, TargetHeight: 1})
	if err := chain.Setup(nil, false); err != nil {
		t.Fatalf("chain.Setup: %v", err)
	}
	cb := newChainedBackend(inner, chain, 1, 1<<16)
	var alignment uint64
	if err := cb.Create(capture.Callbacks{}, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := cb.Init(&alignment); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := cb.Capture(0, nil); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	out := fb.New(1 << 16)
	out.Prepare()
	if _, err := cb.GetFrame(0, out, 1<<20); err == nil {
		t.Fatal("GetFrame without a prior WaitFrame should error")
	}
}
