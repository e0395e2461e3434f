package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/glance/rects"
)

// PixelFormat enumerates the frame descriptor's pixel layout, per spec.md §6.
type PixelFormat uint8

const (
	PixelFormatBGRA PixelFormat = iota + 1
	PixelFormatRGBA
	PixelFormatRGBA10
	PixelFormatRGBA16F
	PixelFormatBGR32
	PixelFormatRGB24
	PixelFormatYUV420
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA:
		return "BGRA"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatRGBA10:
		return "RGBA10"
	case PixelFormatRGBA16F:
		return "RGBA16F"
	case PixelFormatBGR32:
		return "BGR_32"
	case PixelFormatRGB24:
		return "RGB_24"
	case PixelFormatYUV420:
		return "YUV420"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// Rotation enumerates the frame descriptor's display rotation, per spec.md §6.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// FrameFlags is the frame descriptor's bit-0..5 flag word, per spec.md §6.
type FrameFlags uint8

const (
	FrameFlagUpdate FrameFlags = 1 << iota
	FrameFlagTruncated
	FrameFlagHDR
	FrameFlagHDRPQ
	FrameFlagBlockScreensaver
	FrameFlagRequestActivation
)

func (f FrameFlags) Has(bit FrameFlags) bool { return f&bit != 0 }

// maxDamageRects bounds the fixed-capacity damage-rect array carried in the
// descriptor, per spec.md §3 ("damage-rect array of bounded capacity").
const maxDamageRects = 32

// ColorMetadata is the frame descriptor's "display color-metadata block"
// (spec.md §3), used by the HDR/PQ post-process stages to describe the
// source mastering display.
type ColorMetadata struct {
	MaxLuminance     uint16
	MinLuminance     uint16
	MaxFullFrameLuma uint16
	WhiteLevelNits   uint16
}

// FrameDescriptor is the frame queue's message payload, per spec.md §3 and
// the wire layout in §6.
type FrameDescriptor struct {
	FormatVersion uint32
	Serial        uint64

	ScreenWidth  uint32
	ScreenHeight uint32
	DataWidth    uint32
	DataHeight   uint32
	FrameWidth   uint32
	FrameHeight  uint32

	Pitch  uint32
	Stride uint32

	Format   PixelFormat
	Rotation Rotation
	Flags    FrameFlags

	Color ColorMetadata

	Damage []rects.Rect

	// Offset is the byte offset from the start of this descriptor to the
	// first pixel byte, placed so that (descriptorAddr+Offset)%alignment==0.
	Offset uint64
}

// Encode serializes d in the little-endian, packed layout spec.md §6
// requires. The damage-rect array is always written at maxDamageRects
// capacity with DamageCount recording how many entries are valid, so every
// encoded descriptor has identical size.
func (d FrameDescriptor) Encode() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, d.FormatVersion)
	_ = binary.Write(buf, binary.LittleEndian, d.Serial)
	_ = binary.Write(buf, binary.LittleEndian, d.ScreenWidth)
	_ = binary.Write(buf, binary.LittleEndian, d.ScreenHeight)
	_ = binary.Write(buf, binary.LittleEndian, d.DataWidth)
	_ = binary.Write(buf, binary.LittleEndian, d.DataHeight)
	_ = binary.Write(buf, binary.LittleEndian, d.FrameWidth)
	_ = binary.Write(buf, binary.LittleEndian, d.FrameHeight)
	_ = binary.Write(buf, binary.LittleEndian, d.Pitch)
	_ = binary.Write(buf, binary.LittleEndian, d.Stride)
	buf.WriteByte(byte(d.Format))
	buf.WriteByte(byte(d.Rotation))
	buf.WriteByte(byte(d.Flags))
	_ = binary.Write(buf, binary.LittleEndian, d.Color.MaxLuminance)
	_ = binary.Write(buf, binary.LittleEndian, d.Color.MinLuminance)
	_ = binary.Write(buf, binary.LittleEndian, d.Color.MaxFullFrameLuma)
	_ = binary.Write(buf, binary.LittleEndian, d.Color.WhiteLevelNits)

	count := len(d.Damage)
	if count > maxDamageRects {
		count = maxDamageRects
	}
	_ = binary.Write(buf, binary.LittleEndian, uint32(count))
	for i := 0; i < maxDamageRects; i++ {
		var r rects.Rect
		if i < count {
			r = d.Damage[i]
		}
		_ = binary.Write(buf, binary.LittleEndian, r.X)
		_ = binary.Write(buf, binary.LittleEndian, r.Y)
		_ = binary.Write(buf, binary.LittleEndian, r.Width)
		_ = binary.Write(buf, binary.LittleEndian, r.Height)
	}
	_ = binary.Write(buf, binary.LittleEndian, d.Offset)
	return buf.Bytes()
}

// DecodeFrameDescriptor parses a FrameDescriptor previously produced by
// Encode.
func DecodeFrameDescriptor(data []byte) (FrameDescriptor, error) {
	var d FrameDescriptor
	r := bytes.NewReader(data)

	fields := []any{
		&d.FormatVersion, &d.Serial,
		&d.ScreenWidth, &d.ScreenHeight,
		&d.DataWidth, &d.DataHeight,
		&d.FrameWidth, &d.FrameHeight,
		&d.Pitch, &d.Stride,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor: %w", err)
		}
	}

	var format, rotation, flags byte
	for _, f := range []*byte{&format, &rotation, &flags} {
		b, err := r.ReadByte()
		if err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor flags: %w", err)
		}
		*f = b
	}
	d.Format = PixelFormat(format)
	d.Rotation = Rotation(rotation)
	d.Flags = FrameFlags(flags)

	for _, f := range []*uint16{&d.Color.MaxLuminance, &d.Color.MinLuminance, &d.Color.MaxFullFrameLuma, &d.Color.WhiteLevelNits} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor color metadata: %w", err)
		}
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return d, fmt.Errorf("wire: decode FrameDescriptor damage count: %w", err)
	}
	if count > maxDamageRects {
		return d, fmt.Errorf("wire: FrameDescriptor damage count %d exceeds capacity %d", count, maxDamageRects)
	}
	d.Damage = make([]rects.Rect, 0, count)
	for i := 0; i < maxDamageRects; i++ {
		var rr rects.Rect
		if err := binary.Read(r, binary.LittleEndian, &rr.X); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor damage[%d]: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rr.Y); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor damage[%d]: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rr.Width); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor damage[%d]: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &rr.Height); err != nil {
			return d, fmt.Errorf("wire: decode FrameDescriptor damage[%d]: %w", i, err)
		}
		if uint32(i) < count {
			d.Damage = append(d.Damage, rr)
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &d.Offset); err != nil {
		return d, fmt.Errorf("wire: decode FrameDescriptor offset: %w", err)
	}
	return d, nil
}
