// Package noop registers a capture backend that never produces a frame. It
// always reports ResultTimeout, the same way a real backend would behave
// while waiting for a display signal (e.g. a VM with no attached display
// head). Useful as the producer's default when no platform backend is
// available, and in tests that only exercise the orchestrator's state
// machine without caring about pixel content.
package noop

import (
	"github.com/gogpu/glance/capture"
	"github.com/gogpu/glance/fb"
	"github.com/gogpu/glance/wire"
)

func init() {
	capture.Register("noop", func() capture.Backend { return &Backend{} })
}

// Backend implements capture.Backend with no-op behavior throughout.
type Backend struct {
	alignment uint64
}

func (b *Backend) ShortName() string   { return "noop" }
func (b *Backend) DisplayName() string { return "No Capture" }
func (b *Backend) AsyncCapture() bool  { return false }
func (b *Backend) Deprecated() bool    { return false }

func (b *Backend) Create(capture.Callbacks, int) error { return nil }

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
func (b *Backend) Free() error   { return nil }

func (b *Backend) Capture(int, *fb.Buffer) (capture.Result, error) {
	return capture.ResultTimeout, nil
}

func (b *Backend) WaitFrame(int, uint64) (wire.FrameDescriptor, capture.Result, error) {
	return wire.FrameDescriptor{}, capture.ResultTimeout, nil
}

func (b *Backend) GetFrame(int, *fb.Buffer, uint64) (capture.Result, error) {
	return capture.ResultTimeout, nil
}
