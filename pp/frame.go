package pp

import (
	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

// ColorSpace enumerates the transfer function and primaries a Frame's pixel
// data is encoded in, as referenced by spec.md §4.4's stage descriptions.
type ColorSpace uint8

const (
	// ColorSpaceSRGB is conventional gamma-encoded BT.709/sRGB.
	ColorSpaceSRGB ColorSpace = iota
	// ColorSpaceScRGBLinear is linear light, BT.709 primaries, where 1.0
	// represents 80 nits - the HDR16->PQ10 stage's input space.
	ColorSpaceScRGBLinear
	// ColorSpaceBT2020PQ is BT.2020 primaries with the SMPTE ST 2084
	// perceptual-quantizer transfer function - the HDR16->PQ10 stage's
	// output space.
	ColorSpaceBT2020PQ
)

// Config is the negotiated shape of a frame flowing between stages:
// spec.md §4.4's `configure(instance, inout width, inout height, inout
// cols, inout rows, inout format)`, generalized with a color space field
// since two stages (HDR16ToPQ10, SDRWhiteLevel) change space without
// changing pixel format.
type Config struct {
	Width, Height uint32 // visible image dimensions
	Cols, Rows    uint32 // data dimensions including GPU copy-alignment padding
	Format        wire.PixelFormat
	Space         ColorSpace
}

// Frame is the payload handed between post-process stages.
type Frame struct {
	Config
	Pitch  uint32
	Pixels []byte
	Damage []rects.Rect
}
