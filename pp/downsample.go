package pp

import (
	"fmt"

	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/rects"
)

// Downsample bilinearly scales a frame down to a caller-chosen target size,
// per spec.md §4.4. It bypasses when the target matches the input size.
type Downsample struct {
	// TargetWidth/TargetHeight are the desired output dimensions. Setting
	// either to 0 means "no change on that axis".
	TargetWidth, TargetHeight uint32
}

type downsampleInstance struct {
	srcWidth, srcHeight uint32
	dstWidth, dstHeight uint32
}

func (s *Downsample) Name() string { return "downsample" }

func (s *Downsample) EarlyInit() error {
	return validateWGSL(downsampleWGSL)
}

func (s *Downsample) Setup(device hal.Device, shareable bool) error { return nil }

func (s *Downsample) Init() (any, error) {
	return &downsampleInstance{}, nil
}

func (s *Downsample) Configure(instance any, in Config) (Config, bool, error) {
	dst := instance.(*downsampleInstance)
	targetW, targetH := s.TargetWidth, s.TargetHeight
	if targetW == 0 {
		targetW = in.Width
	}
	if targetH == 0 {
		targetH = in.Height
	}
	if targetW >= in.Width && targetH >= in.Height {
		return in, false, nil
	}
	dst.srcWidth, dst.srcHeight = in.Width, in.Height
	dst.dstWidth, dst.dstHeight = targetW, targetH
	out := in
	out.Width, out.Height = targetW, targetH
	out.Cols, out.Rows = targetW, targetH
	return out, true, nil
}

func (s *Downsample) Run(instance any, in Frame) (Frame, error) {
	st, ok := instance.(*downsampleInstance)
	if !ok {
		return Frame{}, fmt.Errorf("pp: downsample: bad instance")
	}
	const bpp = 4
	dstPitch := st.dstWidth * bpp
	dst := make([]byte, int(dstPitch)*int(st.dstHeight))

	scaleX := float64(st.srcWidth) / float64(st.dstWidth)
	scaleY := float64(st.srcHeight) / float64(st.dstHeight)

	for dy := uint32(0); dy < st.dstHeight; dy++ {
		srcY := (float64(dy) + 0.5) * scaleY - 0.5
		y0 := clampInt(int(srcY), 0, int(st.srcHeight)-1)
		y1 := clampInt(y0+1, 0, int(st.srcHeight)-1)
		fy := srcY - float64(y0)
		if fy < 0 {
			fy = 0
		}
		for dx := uint32(0); dx < st.dstWidth; dx++ {
			srcX := (float64(dx) + 0.5) * scaleX - 0.5
			x0 := clampInt(int(srcX), 0, int(st.srcWidth)-1)
			x1 := clampInt(x0+1, 0, int(st.srcWidth)-1)
			fx := srcX - float64(x0)
			if fx < 0 {
				fx = 0
			}

			for c := 0; c < 4; c++ {
				p00 := float64(samplePixel(in.Pixels, int(in.Pitch), x0, y0, c))
				p10 := float64(samplePixel(in.Pixels, int(in.Pitch), x1, y0, c))
				p01 := float64(samplePixel(in.Pixels, int(in.Pitch), x0, y1, c))
				p11 := float64(samplePixel(in.Pixels, int(in.Pitch), x1, y1, c))
				top := p00 + (p10-p00)*fx
				bot := p01 + (p11-p01)*fx
				v := top + (bot-top)*fy
				dst[int(dy)*int(dstPitch)+int(dx)*4+c] = byte(clampFloat(v, 0, 255))
			}
		}
	}

	out := Frame{
		Config: Config{
			Width:  st.dstWidth,
			Height: st.dstHeight,
			Cols:   st.dstWidth,
			Rows:   st.dstHeight,
			Format: in.Format,
			Space:  in.Space,
		},
		Pitch:  dstPitch,
		Pixels: dst,
	}
	return out, nil
}

// AdjustDamage scales a damage rectangle by the same ratio used for pixels,
// then expands by one pixel on every edge to cover bilinear filter bleed,
// clamping to the output bounds.
func (s *Downsample) AdjustDamage(instance any, in []rects.Rect) []rects.Rect {
	st, ok := instance.(*downsampleInstance)
	if !ok || st.srcWidth == 0 || st.srcHeight == 0 {
		return in
	}
	scaleX := float64(st.dstWidth) / float64(st.srcWidth)
	scaleY := float64(st.dstHeight) / float64(st.srcHeight)

	out := make([]rects.Rect, len(in))
	for i, r := range in {
		left := int32(float64(r.X)*scaleX) - 1
		top := int32(float64(r.Y)*scaleY) - 1
		right := int32(float64(r.X+r.Width)*scaleX) + 1
		bottom := int32(float64(r.Y+r.Height)*scaleY) + 1

		scaled := rects.Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
		clamped, ok := scaled.Clamp(int32(st.dstWidth), int32(st.dstHeight))
		if !ok {
			clamped = rects.Rect{}
		}
		out[i] = clamped
	}
	return out
}

func (s *Downsample) Free(instance any) error { return nil }
func (s *Downsample) Finish() error            { return nil }

func samplePixel(pixels []byte, pitch, x, y, channel int) byte {
	off := y*pitch + x*4 + channel
	if off < 0 || off >= len(pixels) {
		return 0
	}
	return pixels[off]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
