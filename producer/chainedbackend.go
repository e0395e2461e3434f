package producer

import (
	"fmt"

	"github.com/gogpu/glance/capture"
	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/pp"
	"github.com/gogpu/glance/wire"
)

// chainedBackend wraps a capture.Backend with a pp.Chain, running every
// captured frame through the chain before it reaches the frame-buffer slot
// the orchestrator publishes. This keeps pp.Chain invocation backend-local
// (mirroring spec.md §9's note that the D12/DXGI backends run their own
// post-process internally) while leaving the rest of the producer's main
// loop and send_frame oblivious to whether post-processing is active.
type chainedBackend struct {
	inner capture.Backend
	chain *pp.Chain

	// scratch holds one pre-PP capture buffer per frame-buffer slot, since
	// the wrapped backend must write its raw pixels somewhere other than
	// the slot the orchestrator will publish.
	scratch []*fb.Buffer

	lastConfig  pp.Config
	haveLastCfg bool
}

// newChainedBackend wraps backend with chain. nFrameBuffers must match the
// Create call the orchestrator will make.
func newChainedBackend(backend capture.Backend, chain *pp.Chain, nFrameBuffers, scratchSize int) *chainedBackend {
	scratch := make([]*fb.Buffer, nFrameBuffers)
	for i := range scratch {
		scratch[i] = fb.New(scratchSize)
	}
	return &chainedBackend{inner: backend, chain: chain, scratch: scratch}
}

func (c *chainedBackend) ShortName() string   { return c.inner.ShortName() }
func (c *chainedBackend) DisplayName() string { return c.inner.DisplayName() + " (post-processed)" }
func (c *chainedBackend) AsyncCapture() bool  { return c.inner.AsyncCapture() }
func (c *chainedBackend) Deprecated() bool    { return c.inner.Deprecated() }

func (c *chainedBackend) Create(cb capture.Callbacks, nFrameBuffers int) error {
	return c.inner.Create(cb, nFrameBuffers)
}

func (c *chainedBackend) Init(alignment *uint64) error { return c.inner.Init(alignment) }
func (c *chainedBackend) Start() error                 { return c.inner.Start() }
func (c *chainedBackend) Stop() error                  { return c.inner.Stop() }
func (c *chainedBackend) Deinit() error                { return c.inner.Deinit() }
func (c *chainedBackend) Free() error                  { return c.inner.Free() }

func (c *chainedBackend) Capture(frameBufferIndex int, buf *fb.Buffer) (capture.Result, error) {
	// Sync backends may stream pixels during Capture itself; redirect that
	// stream to this slot's scratch buffer instead of the caller's buf, so
	// the chain still has a chance to run in GetFrame.
	return c.inner.Capture(frameBufferIndex, c.scratch[frameBufferIndex])
}

func (c *chainedBackend) WaitFrame(frameBufferIndex int, maxPayloadSize uint64) (wire.FrameDescriptor, capture.Result, error) {
	desc, result, err := c.inner.WaitFrame(frameBufferIndex, maxPayloadSize)
	if err != nil || result != capture.ResultOK {
		return desc, result, err
	}

	in := pp.Config{
		Width: desc.FrameWidth, Height: desc.FrameHeight,
		Cols: desc.DataWidth, Rows: desc.DataHeight,
		Format: desc.Format,
	}
	out, err := c.chain.NegotiatedConfig(in)
	if err != nil {
		return desc, capture.ResultError, fmt.Errorf("producer: pp chain negotiate: %w", err)
	}
	c.lastConfig, c.haveLastCfg = in, true

	desc.FrameWidth, desc.FrameHeight = out.Width, out.Height
	desc.DataWidth, desc.DataHeight = out.Cols, out.Rows
	desc.Format = out.Format
	return desc, result, nil
}

func (c *chainedBackend) GetFrame(frameBufferIndex int, buf *fb.Buffer, maxPayloadSize uint64) (capture.Result, error) {
	scratch := c.scratch[frameBufferIndex]
	scratch.Prepare()
	result, err := c.inner.GetFrame(frameBufferIndex, scratch, maxPayloadSize)
	if err != nil || result != capture.ResultOK {
		return result, err
	}
	if !c.haveLastCfg {
		return result, fmt.Errorf("producer: pp chain ran GetFrame before WaitFrame negotiated a shape")
	}

	raw := scratch.Data()[:scratch.WritePtr()]
	in := pp.Frame{Config: c.lastConfig, Pixels: raw}
	in.Pitch = uint32(scratch.WritePtr()) / maxU32(c.lastConfig.Height, 1)

	out, err := c.chain.Run(in)
	if err != nil {
		return capture.ResultError, fmt.Errorf("producer: pp chain run: %w", err)
	}
	if err := buf.Write(out.Pixels); err != nil {
		return capture.ResultError, fmt.Errorf("producer: pp chain output write: %w", err)
	}
	return capture.ResultOK, nil
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
