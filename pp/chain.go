package pp

import (
	"fmt"

	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/internal/logging"
	"github.com/gogpu/glance/types"
)

// Chain is an ordered post-process pipeline: spec.md §4.4's "src → pp[0] →
// pp[1] → … → fb". It reconfigures left to right whenever the input shape
// changes and skips stages that report bypass for the current input.
type Chain struct {
	stages    []Stage
	instances []any
	active    []bool // per-stage: false when bypassed for the current configuration
	lastIn    Config
	lastOut   Config
	haveLast  bool

	// device and shareable are recorded at Setup time so reconfigure can
	// (re)create the chain's shareable output texture whenever the
	// negotiated output shape changes, per spec.md §4.4's
	// setup(device, context, output, shareable). device is nil when the
	// chain runs without a real GPU device (e.g. tests, or a capture
	// backend that never requested texture sharing).
	device    hal.Device
	shareable bool

	outputTexture hal.Texture
	haveTexture   bool
}

// NewChain builds a Chain over stages, applied in order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{
		stages:    stages,
		instances: make([]any, len(stages)),
		active:    make([]bool, len(stages)),
	}
}

// Setup runs EarlyInit/Setup/Init for every stage against device. shareable
// requests that the final stage prefer a consumer-importable output format.
func (c *Chain) Setup(device hal.Device, shareable bool) error {
	c.device = device
	c.shareable = shareable
	for i, s := range c.stages {
		if err := s.EarlyInit(); err != nil {
			return fmt.Errorf("pp: %s: EarlyInit: %w", s.Name(), err)
		}
		last := i == len(c.stages)-1
		if err := s.Setup(device, shareable && last); err != nil {
			return fmt.Errorf("pp: %s: Setup: %w", s.Name(), err)
		}
		inst, err := s.Init()
		if err != nil {
			return fmt.Errorf("pp: %s: Init: %w", s.Name(), err)
		}
		c.instances[i] = inst
	}
	return nil
}

// reconfigure calls Configure on every stage in order, propagating each
// stage's output Config as the next stage's input, and recording which
// stages are active (not bypassed) for this shape.
func (c *Chain) reconfigure(in Config) error {
	cur := in
	for i, s := range c.stages {
		out, ok, err := s.Configure(c.instances[i], cur)
		if err != nil {
			return fmt.Errorf("pp: %s: Configure: %w", s.Name(), err)
		}
		c.active[i] = ok
		if ok {
			cur = out
		}
		// A bypassed stage passes `cur` through unchanged to the next stage.
	}
	shapeChanged := !c.haveLast || cur != c.lastOut
	c.lastIn = in
	c.lastOut = cur
	c.haveLast = true
	logging.Logger().Debug("pp: chain reconfigured", "width", in.Width, "height", in.Height, "format", in.Format)

	if c.device != nil && c.shareable && shapeChanged {
		if err := c.recreateOutputTexture(cur); err != nil {
			return err
		}
	}
	return nil
}

// recreateOutputTexture destroys any previously-created shareable output
// texture and creates a new one sized and formatted for out, exercising the
// real device's texture lifecycle even though the per-pixel Run step below
// executes on the CPU (see doc.go).
func (c *Chain) recreateOutputTexture(out Config) error {
	if c.haveTexture {
		c.device.DestroyTexture(c.outputTexture)
		c.haveTexture = false
	}
	if out.Cols == 0 || out.Rows == 0 {
		return nil
	}
	format, err := textureFormatFor(out.Format)
	if err != nil {
		return fmt.Errorf("pp: output texture: %w", err)
	}
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "pp-chain-output",
		Size:          hal.Extent3D{Width: out.Cols, Height: out.Rows, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     types.TextureDimension2D,
		Format:        format,
		Usage:         types.TextureUsageTextureBinding | types.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("pp: create output texture: %w", err)
	}
	c.outputTexture = tex
	c.haveTexture = true
	return nil
}

// NegotiatedConfig reports the chain's output Config for a given input
// shape, reconfiguring first if in differs from the last shape seen. This
// lets a caller learn the post-process output dimensions/format (e.g. to
// fill a wire descriptor) before the corresponding pixel data is available,
// since Stage.Configure - unlike Run - only needs the input's Config, not
// its pixels.
func (c *Chain) NegotiatedConfig(in Config) (Config, error) {
	if !c.haveLast || in != c.lastIn {
		if err := c.reconfigure(in); err != nil {
			return Config{}, err
		}
	}
	return c.lastOut, nil
}

// Run pushes src through every active stage in order, reconfiguring first
// if src's shape differs from the last frame processed.
func (c *Chain) Run(src Frame) (Frame, error) {
	if !c.haveLast || src.Config != c.lastIn {
		if err := c.reconfigure(src.Config); err != nil {
			return Frame{}, err
		}
	}

	cur := src
	for i, s := range c.stages {
		if !c.active[i] {
			continue
		}
		out, err := s.Run(c.instances[i], cur)
		if err != nil {
			return Frame{}, fmt.Errorf("pp: %s: Run: %w", s.Name(), err)
		}
		out.Damage = s.AdjustDamage(c.instances[i], cur.Damage)
		cur = out
	}
	return cur, nil
}

// Finish tears down every stage's per-texture instance and shared setup
// state. Call once, when the chain itself is discarded.
func (c *Chain) Finish() error {
	var firstErr error
	for i, s := range c.stages {
		if c.instances[i] != nil {
			if err := s.Free(c.instances[i]); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("pp: %s: Free: %w", s.Name(), err)
			}
			c.instances[i] = nil
		}
	}
	for _, s := range c.stages {
		if err := s.Finish(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pp: %s: Finish: %w", s.Name(), err)
		}
	}
	if c.haveTexture {
		c.device.DestroyTexture(c.outputTexture)
		c.haveTexture = false
	}
	return firstErr
}
