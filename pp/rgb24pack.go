package pp

import (
	"fmt"

	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

// rgb24PackAlignment is the row-pitch alignment a copy engine requires, per
// scenario S6 (packed_pitch rounded up to a 64-byte boundary).
const rgb24PackAlignment = 64

// Pack flattens an RGBA8 image's color channels (alpha dropped) into a
// contiguous byte stream and re-chunks that stream into rows of
// packedPitch*4 bytes, padding the final row with zeros. Unpack reverses
// this exactly, so Pack followed by Unpack round-trips the original color
// bytes (spec.md §8 property 9) by construction: both share flattenRGB.
func Pack(src []byte, width, height uint32) (packed []byte, packedPitch, frameWidth, frameHeight uint32) {
	flat := flattenRGB(src, width, height)

	// packed_pitch = ceil(width*3/4) texels, rounded up to the alignment.
	rawPitchTexels := (width*3 + 3) / 4
	packedPitch = alignUp32(rawPitchTexels, rgb24PackAlignment)

	rowBytes := packedPitch * 4
	totalBytes := uint32(len(flat))
	packedRows := (totalBytes + rowBytes - 1) / rowBytes
	if packedRows == 0 {
		packedRows = 1
	}

	packed = make([]byte, rowBytes*packedRows)
	copy(packed, flat)

	frameWidth = rawPitchTexels
	frameHeight = packedRows
	return packed, packedPitch, frameWidth, frameHeight
}

// Unpack reverses Pack: given the packed byte stream and the original
// image's dimensions, it reconstructs an RGBA8 buffer (alpha forced to
// 0xff).
func Unpack(packed []byte, packedPitch, width, height uint32) []byte {
	rowBytes := packedPitch * 4
	flat := make([]byte, 0, width*height*3)
	for row := uint32(0); row < (uint32(len(packed))+rowBytes-1)/rowBytes; row++ {
		start := row * rowBytes
		end := start + rowBytes
		if end > uint32(len(packed)) {
			end = uint32(len(packed))
		}
		flat = append(flat, packed[start:end]...)
	}
	if need := int(width * height * 3); len(flat) > need {
		flat = flat[:need]
	}
	return unflattenRGB(flat, width, height)
}

// flattenRGB drops the alpha byte from every RGBA8 pixel, producing width*
// height*3 bytes in row-major order.
func flattenRGB(src []byte, width, height uint32) []byte {
	out := make([]byte, 0, width*height*3)
	for y := uint32(0); y < height; y++ {
		rowStart := y * width * 4
		for x := uint32(0); x < width; x++ {
			px := rowStart + x*4
			if int(px+3) > len(src) {
				break
			}
			out = append(out, src[px], src[px+1], src[px+2])
		}
	}
	return out
}

// unflattenRGB is flattenRGB's inverse, synthesizing an opaque alpha
// channel.
func unflattenRGB(flat []byte, width, height uint32) []byte {
	out := make([]byte, width*height*4)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			srcOff := (y*width + x) * 3
			dstOff := (y*width + x) * 4
			if int(srcOff+3) > len(flat) {
				continue
			}
			out[dstOff] = flat[srcOff]
			out[dstOff+1] = flat[srcOff+1]
			out[dstOff+2] = flat[srcOff+2]
			out[dstOff+3] = 0xff
		}
	}
	return out
}

func alignUp32(v, align uint32) uint32 {
	return (v + align - 1) / align * align
}

// packedDims computes the output frame_width/frame_height Configure must
// report, without materializing a packed buffer (Pack does that at Run
// time once real pixels are available).
func packedDims(width, height uint32) (packedPitch, frameWidth, frameHeight uint32) {
	rawPitchTexels := (width*3 + 3) / 4
	packedPitch = alignUp32(rawPitchTexels, rgb24PackAlignment)
	rowBytes := packedPitch * 4
	totalBytes := width * height * 3
	packedRows := (totalBytes + rowBytes - 1) / rowBytes
	if packedRows == 0 {
		packedRows = 1
	}
	return packedPitch, rawPitchTexels, packedRows
}

// RGB24Pack repacks RGBA8 frames into the tightly-packed 24-bit-per-pixel
// representation, published under wire.PixelFormatBGR32 per spec.md §4.4
// ("packs RGBA8 ... into RGB24 ... within a BGRA8 texture") and scenario S6.
// It bypasses when the input is already PixelFormatBGR32.
type RGB24Pack struct{}

// rgb24PackInstance is the per-texture handle Init returns.
type rgb24PackInstance struct {
	width, height uint32
}

func (s *RGB24Pack) Name() string { return "rgb24pack" }

func (s *RGB24Pack) EarlyInit() error {
	return validateWGSL(rgb24PackWGSL)
}

func (s *RGB24Pack) Setup(device hal.Device, shareable bool) error {
	// No persistent GPU resource: the pack is a pure byte-stream transform.
	return nil
}

func (s *RGB24Pack) Init() (any, error) {
	return &rgb24PackInstance{}, nil
}

func (s *RGB24Pack) Configure(instance any, in Config) (Config, bool, error) {
	if in.Format == wire.PixelFormatBGR32 {
		return in, false, nil
	}
	st := instance.(*rgb24PackInstance)
	_, frameWidth, frameHeight := packedDims(in.Width, in.Height)
	st.width, st.height = in.Width, in.Height
	out := Config{
		Width:  frameWidth,
		Height: frameHeight,
		Cols:   in.Width,
		Rows:   in.Height,
		Format: wire.PixelFormatBGR32,
		Space:  in.Space,
	}
	return out, true, nil
}

func (s *RGB24Pack) Run(instance any, in Frame) (Frame, error) {
	st, ok := instance.(*rgb24PackInstance)
	if !ok {
		return Frame{}, fmt.Errorf("pp: rgb24pack: bad instance")
	}
	packed, packedPitch, frameWidth, frameHeight := Pack(in.Pixels, st.width, st.height)
	out := Frame{
		Config: Config{
			Width:  frameWidth,
			Height: frameHeight,
			Cols:   st.width,
			Rows:   st.height,
			Format: wire.PixelFormatBGR32,
			Space:  in.Space,
		},
		Pitch:  packedPitch * 4,
		Pixels: packed,
	}
	return out, nil
}

// AdjustDamage implements spec.md §4.4's literal RGB24Pack rewrite:
// newLeft = floor(left*3/4); newRight = newLeft + ceil(width*3/4). Only the
// X axis is rescaled; rows are untouched by packing.
func (s *RGB24Pack) AdjustDamage(instance any, in []rects.Rect) []rects.Rect {
	out := make([]rects.Rect, len(in))
	for i, r := range in {
		newLeft := (r.X * 3) / 4
		newRight := newLeft + (r.Width*3+3)/4
		out[i] = rects.Rect{
			X:      newLeft,
			Y:      r.Y,
			Width:  newRight - newLeft,
			Height: r.Height,
		}
	}
	return out
}

func (s *RGB24Pack) Free(instance any) error { return nil }
func (s *RGB24Pack) Finish() error           { return nil }
