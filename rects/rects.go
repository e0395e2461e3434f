// Package rects manipulates the damage-rectangle lists attached to frame
// descriptors: merging overlapping rects, rejecting ones wholly contained in
// another, and copying only the damaged rows of a framebuffer instead of the
// whole image. Adapted from the original producer's common/rects.c, which
// does the same bookkeeping in C for the guest-side capture path.
package rects

// Rect is an axis-aligned damage rectangle in framebuffer pixel coordinates,
// matching the FrameDamageRect fields carried in a wire.FrameDescriptor.
type Rect struct {
	X      int32
	Y      int32
	Width  int32
	Height int32
}

// Clamp restricts r to the [0,0]-[width,height] bounds, shrinking width/height
// as needed. Returns false if the clamped rect would be empty.
func (r Rect) Clamp(width, height int32) (Rect, bool) {
	x1, y1 := r.X, r.Y
	x2, y2 := r.X+r.Width, r.Y+r.Height

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > width {
		x2 = width
	}
	if y2 > height {
		y2 = height
	}
	if x2 <= x1 || y2 <= y1 {
		return Rect{}, false
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

// Expand grows r by margin pixels on every side.
func (r Rect) Expand(margin int32) Rect {
	return Rect{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
}

func (r Rect) intersects(o Rect) bool {
	return !(r.X > o.X+o.Width ||
		o.X > r.X+r.Width ||
		r.Y > o.Y+o.Height ||
		o.Y > r.Y+r.Height)
}

func (r Rect) contains(o Rect) bool {
	return !(o.X < r.X ||
		o.X+o.Width > r.X+r.Width ||
		o.Y < r.Y ||
		o.Y+o.Height > r.Y+r.Height)
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// MergeOverlapping repeatedly unions intersecting rects in place until no two
// remaining rects intersect, returning the (possibly shorter) result slice.
func MergeOverlapping(rects []Rect) []Rect {
	if len(rects) == 0 {
		return rects
	}
	removed := make([]bool, len(rects))

	for {
		changed := false
		for i := range rects {
			if removed[i] {
				continue
			}
			for j := i + 1; j < len(rects); j++ {
				if removed[j] || !rects[i].intersects(rects[j]) {
					continue
				}
				x2 := max32(rects[i].X+rects[i].Width, rects[j].X+rects[j].Width)
				y2 := max32(rects[i].Y+rects[i].Height, rects[j].Y+rects[j].Height)
				rects[i].X = min32(rects[i].X, rects[j].X)
				rects[i].Y = min32(rects[i].Y, rects[j].Y)
				rects[i].Width = x2 - rects[i].X
				rects[i].Height = y2 - rects[i].Y
				removed[j] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return removeMarked(rects, removed)
}

// RejectContained drops every rect wholly contained within another, returning
// the (possibly shorter) result slice.
func RejectContained(rects []Rect) []Rect {
	removed := make([]bool, len(rects))
	for i := range rects {
		if removed[i] {
			continue
		}
		for j := range rects {
			if j == i || removed[j] {
				continue
			}
			removed[j] = rects[i].contains(rects[j])
		}
	}
	return removeMarked(rects, removed)
}

func removeMarked(rects []Rect, removed []bool) []Rect {
	o := 0
	for i := range rects {
		if removed[i] {
			continue
		}
		rects[o] = rects[i]
		o++
	}
	return rects[:o]
}

// CopyRows copies only the rows spanned by rects from src to dst, both laid
// out with the given stride in bytes and bpp bytes per pixel. Rects outside
// [0,height) are ignored. This is the Go analog of rectsBufferToFramebuffer /
// rectsFramebufferToBuffer, minus the row-granular write-pointer callback
// (handled by the caller via fb.Stream, not this package).
func CopyRows(dst []byte, dstStride int, src []byte, srcStride int, height int, bpp int, damage []Rect) {
	for _, r := range damage {
		y1, y2 := int(r.Y), int(r.Y+r.Height)
		if y1 < 0 {
			y1 = 0
		}
		if y2 > height {
			y2 = height
		}
		dx := int(r.X) * bpp
		width := int(r.Width) * bpp
		for y := y1; y < y2; y++ {
			srcOff := y*srcStride + dx
			dstOff := y*dstStride + dx
			copy(dst[dstOff:dstOff+width], src[srcOff:srcOff+width])
		}
	}
}

// Union returns the smallest rect containing all of rects, or false if rects
// is empty.
func Union(rects []Rect) (Rect, bool) {
	if len(rects) == 0 {
		return Rect{}, false
	}
	u := rects[0]
	for _, r := range rects[1:] {
		x2 := max32(u.X+u.Width, r.X+r.Width)
		y2 := max32(u.Y+u.Height, r.Y+r.Height)
		u.X = min32(u.X, r.X)
		u.Y = min32(u.Y, r.Y)
		u.Width = x2 - u.X
		u.Height = y2 - u.Y
	}
	return u, true
}

// Full returns a single rect covering the entire width x height frame, used
// whenever a producer cannot compute precise damage and must mark the whole
// frame dirty.
func Full(width, height int32) Rect {
	return Rect{Width: width, Height: height}
}
