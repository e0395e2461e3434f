package producer

import (
	"sync"

	"github.com/gogpu/glance/wire"
)

// cursorState remembers the last-known pointer position, visibility, and
// shape so a newly-subscribed consumer can be brought up to date
// immediately, per spec.md §4.5's cursor pipeline and testable property 10
// ("cursor resend").
type cursorState struct {
	mu sync.Mutex

	haveShape  bool
	shapeVer   uint32
	shapeDesc  wire.CursorDescriptor
	shapeBytes []byte

	x, y    int16
	visible bool
}

// update records a pointer update: a fresh shape (bumping the shape version)
// when desc.Flags has CursorFlagShape, the position when it has
// CursorFlagPosition, and visibility from CursorFlagVisible. Called from the
// backend's PostPointerBuffer callback for every pointer update.
func (c *cursorState) update(desc wire.CursorDescriptor, shapeData []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if desc.Flags.Has(wire.CursorFlagShape) {
		c.shapeVer++
		c.shapeDesc = desc
		c.shapeBytes = append(c.shapeBytes[:0], shapeData...)
		c.haveShape = true
	}
	if desc.Flags.Has(wire.CursorFlagPosition) {
		c.x, c.y = desc.X, desc.Y
	}
	if desc.Flags.Has(wire.CursorFlagVisible) {
		c.visible = true
	} else {
		c.visible = false
	}
}

// snapshotForResend builds the descriptor+payload a newly-subscribed
// consumer must receive: current position, current visibility, and — if a
// shape has ever been posted — the most recent shape, all flags set
// together (spec.md §8 property 10).
func (c *cursorState) snapshotForResend() (wire.CursorDescriptor, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	desc := c.shapeDesc
	desc.X, desc.Y = c.x, c.y
	desc.Flags = wire.CursorFlagPosition
	if c.visible {
		desc.Flags |= wire.CursorFlagVisible
	}
	var payload []byte
	if c.haveShape {
		desc.Flags |= wire.CursorFlagShape
		payload = append([]byte(nil), c.shapeBytes...)
	}
	return desc, payload
}
