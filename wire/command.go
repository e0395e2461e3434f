package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CommandKind tags the consumer→producer command channel's fixed-shape
// tagged union, per spec.md §6 ("Messages are fixed-shape tagged unions").
type CommandKind uint8

const (
	CommandSetCursorPos CommandKind = iota + 1
)

// SetCursorPos is the only command currently defined: spec.md §6's
// `SET_CURSOR_POS{x:i32, y:i32}`.
type SetCursorPos struct {
	X, Y int32
}

// Encode serializes a SET_CURSOR_POS command as a one-byte kind tag
// followed by its little-endian payload.
func (c SetCursorPos) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(CommandSetCursorPos))
	_ = binary.Write(buf, binary.LittleEndian, c.X)
	_ = binary.Write(buf, binary.LittleEndian, c.Y)
	return buf.Bytes()
}

// DecodeCommand inspects the leading kind byte and dispatches to the
// matching payload decoder. Returns the CommandKind and the decoded value
// as `any` (currently always a SetCursorPos, since it is the only command
// defined).
func DecodeCommand(data []byte) (CommandKind, any, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("wire: empty command payload")
	}
	kind := CommandKind(data[0])
	switch kind {
	case CommandSetCursorPos:
		r := bytes.NewReader(data[1:])
		var c SetCursorPos
		if err := binary.Read(r, binary.LittleEndian, &c.X); err != nil {
			return kind, nil, fmt.Errorf("wire: decode SetCursorPos.X: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &c.Y); err != nil {
			return kind, nil, fmt.Errorf("wire: decode SetCursorPos.Y: %w", err)
		}
		return kind, c, nil
	default:
		return kind, nil, fmt.Errorf("wire: unknown command kind %d", kind)
	}
}
