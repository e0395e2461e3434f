package pp

import (
	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/rects"
)

// Stage is one GPU program in the post-process chain, per spec.md §4.4's
// capability set. Each concrete stage (HDR16ToPQ10, Downsample, RGB24Pack,
// SDRWhiteLevel) implements this once; the chain drives every call.
type Stage interface {
	// Name identifies the stage for logs and diagnostics.
	Name() string

	// EarlyInit declares the stage's options and validates its WGSL kernel
	// source (see shaders.go). Called once, before Setup.
	EarlyInit() error

	// Setup performs one-time GPU resource creation against device. When
	// shareable is true the stage should prefer a texture format consumers
	// can import without a copy (matching spec.md §4.4's `setup(device,
	// context, output, shareable)`).
	Setup(device hal.Device, shareable bool) error

	// Init creates a new per-texture instance, returned as an opaque
	// handle the caller passes back into Configure/Run/Free.
	Init() (any, error)

	// Configure negotiates the stage's output Config given its input. ok
	// is false when the stage should be bypassed entirely for this input
	// (spec.md §4.4: "stages that return bypass are dropped for that
	// input").
	Configure(instance any, in Config) (out Config, ok bool, err error)

	// Run executes the stage against in, most recently configured via
	// Configure, producing the transformed frame. Run does not set
	// Frame.Damage; the chain calls AdjustDamage separately.
	Run(instance any, in Frame) (Frame, error)

	// AdjustDamage rewrites damage rectangles from the stage's input
	// coordinate space to its output coordinate space (spec.md §4.4).
	AdjustDamage(instance any, in []rects.Rect) []rects.Rect

	// Free releases a per-texture instance created by Init.
	Free(instance any) error

	// Finish releases resources created by Setup. Called once, when the
	// chain itself is torn down.
	Finish() error
}
