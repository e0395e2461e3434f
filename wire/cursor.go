package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CursorShapeType enumerates the cursor descriptor's pixel encoding, per
// spec.md §6.
type CursorShapeType uint8

const (
	CursorShapeColor CursorShapeType = iota + 1
	CursorShapeMonochrome
	CursorShapeMaskedColor
)

func (t CursorShapeType) String() string {
	switch t {
	case CursorShapeColor:
		return "COLOR"
	case CursorShapeMonochrome:
		return "MONOCHROME"
	case CursorShapeMaskedColor:
		return "MASKED_COLOR"
	default:
		return fmt.Sprintf("CursorShapeType(%d)", uint8(t))
	}
}

// CursorFlags is the per-post "user data" flag word posted alongside a
// cursor message, per spec.md §6.
type CursorFlags uint8

const (
	CursorFlagPosition CursorFlags = 1 << iota
	CursorFlagVisible
	CursorFlagShape
)

func (f CursorFlags) Has(bit CursorFlags) bool { return f&bit != 0 }

// CursorDescriptor is the pointer queue's message payload, per spec.md §3.
// Shape pixel bytes, when CursorFlagShape is set, follow immediately after
// the descriptor in the heap-allocated message; this struct carries only
// the fixed-size fields.
type CursorDescriptor struct {
	Version uint32
	X, Y    int16
	HotX    int16
	HotY    int16
	Width   uint32
	Height  uint32
	Pitch   uint32
	Shape   CursorShapeType
	Flags   CursorFlags
}

// Encode serializes d in the little-endian, packed layout spec.md §6
// requires.
func (d CursorDescriptor) Encode() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, d.Version)
	_ = binary.Write(buf, binary.LittleEndian, d.X)
	_ = binary.Write(buf, binary.LittleEndian, d.Y)
	_ = binary.Write(buf, binary.LittleEndian, d.HotX)
	_ = binary.Write(buf, binary.LittleEndian, d.HotY)
	_ = binary.Write(buf, binary.LittleEndian, d.Width)
	_ = binary.Write(buf, binary.LittleEndian, d.Height)
	_ = binary.Write(buf, binary.LittleEndian, d.Pitch)
	buf.WriteByte(byte(d.Shape))
	buf.WriteByte(byte(d.Flags))
	return buf.Bytes()
}

// DecodeCursorDescriptor parses a CursorDescriptor previously produced by
// Encode.
func DecodeCursorDescriptor(data []byte) (CursorDescriptor, error) {
	var d CursorDescriptor
	r := bytes.NewReader(data)

	for _, f := range []any{&d.Version, &d.X, &d.Y, &d.HotX, &d.HotY, &d.Width, &d.Height, &d.Pitch} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return d, fmt.Errorf("wire: decode CursorDescriptor: %w", err)
		}
	}
	shape, err := r.ReadByte()
	if err != nil {
		return d, fmt.Errorf("wire: decode CursorDescriptor.Shape: %w", err)
	}
	d.Shape = CursorShapeType(shape)
	flags, err := r.ReadByte()
	if err != nil {
		return d, fmt.Errorf("wire: decode CursorDescriptor.Flags: %w", err)
	}
	d.Flags = CursorFlags(flags)
	return d, nil
}

// ShapeDataSize returns the number of shape-payload bytes that follow this
// descriptor. For CursorShapeMonochrome, Height already spans both
// concatenated AND/XOR bitmasks (each height/2 rows), so the same
// pitch*height computation applies to every shape type.
func (d CursorDescriptor) ShapeDataSize() uint32 {
	return d.Pitch * d.Height
}
