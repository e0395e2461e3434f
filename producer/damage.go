package producer

import "github.com/gogpu/glance/rects"

// damageHistory tracks, per frame-buffer slot, which rectangles were
// damaged the last time that slot was published. spec.md §4.5's
// "damage-aware copy invariants": publishing into a slot must copy both the
// current frame's damage and whatever was damaged the previous time that
// same slot was used, because the slot may hold pixels from several
// publications ago.
type damageHistory struct {
	perSlot map[int][]rects.Rect
}

func newDamageHistory() *damageHistory {
	return &damageHistory{perSlot: make(map[int][]rects.Rect)}
}

// wireCap bounds how many damage rects the wire format can carry per
// descriptor (see wire.maxDamageRects); reproduced here to decide when to
// fall back to a full-frame copy without importing wire's unexported
// constant.
const wireCap = 32

// rectsForSlot merges the current frame's damage with the slot's previous
// publication damage, and records the merged set as the new history for
// that slot. If the merged count would exceed the wire cap, it instead
// returns a single full-frame rect and resets the slot's history to "full".
func (h *damageHistory) rectsForSlot(slot int, current []rects.Rect, width, height int32) []rects.Rect {
	prev := h.perSlot[slot]

	merged := make([]rects.Rect, 0, len(current)+len(prev))
	merged = append(merged, current...)
	merged = append(merged, prev...)
	merged = rects.MergeOverlapping(merged)
	merged = rects.RejectContained(merged)

	if len(merged) == 0 || len(merged) > wireCap {
		full := []rects.Rect{rects.Full(width, height)}
		h.perSlot[slot] = full
		return full
	}

	h.perSlot[slot] = append([]rects.Rect(nil), merged...)
	return merged
}

// reset clears the recorded history for every slot, used when a REINIT_LGMP
// transition invalidates every shared-memory slot's prior contents.
func (h *damageHistory) reset() {
	h.perSlot = make(map[int][]rects.Rect)
}
