package pp

import (
	"fmt"
	"math"

	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

// ST-2084 (PQ) constants, as fixed-point ratios per spec.md §4.4 to keep the
// arithmetic reproducible across platforms.
const (
	pqM1 = 1305.0 / 8192.0
	pqM2 = 2523.0 / 32.0
	pqC1 = 107.0 / 128.0
	pqC2 = 2413.0 / 128.0
	pqC3 = 2392.0 / 128.0

	// sdrWhiteNits is the reference white level scRGB 1.0 represents.
	sdrWhiteNits = 80.0
	// hdrPeakNits is the PQ curve's peak luminance (10,000 nits).
	hdrPeakNits = 10000.0
)

// bt709ToBT2020 converts linear BT.709 RGB to linear BT.2020 RGB.
var bt709ToBT2020 = [3][3]float64{
	{0.627404, 0.329283, 0.043313},
	{0.069097, 0.919540, 0.011362},
	{0.016391, 0.088013, 0.895595},
}

// pqOETF applies the ST-2084 perceptual quantizer transfer function to a
// linear value normalized to [0,1] against hdrPeakNits.
func pqOETF(linear float64) float64 {
	if linear < 0 {
		linear = 0
	}
	lm1 := math.Pow(linear, pqM1)
	return math.Pow((pqC1+pqC2*lm1)/(1+pqC3*lm1), pqM2)
}

// HDR16ToPQ10 converts scRGB linear RGBA16F pixels to BT.2020 ST-2084
// RGBA10, per spec.md §4.4. This stage never bypasses: it always runs
// when present in a chain, converting color space unconditionally.
type HDR16ToPQ10 struct{}

type hdr16ToPQ10Instance struct {
	width, height uint32
}

func (s *HDR16ToPQ10) Name() string { return "hdr16_to_pq10" }

func (s *HDR16ToPQ10) EarlyInit() error {
	return validateWGSL(hdr16ToPQ10WGSL)
}

func (s *HDR16ToPQ10) Setup(device hal.Device, shareable bool) error { return nil }

func (s *HDR16ToPQ10) Init() (any, error) {
	return &hdr16ToPQ10Instance{}, nil
}

func (s *HDR16ToPQ10) Configure(instance any, in Config) (Config, bool, error) {
	st := instance.(*hdr16ToPQ10Instance)
	st.width, st.height = in.Width, in.Height
	out := in
	out.Format = wire.PixelFormatRGBA10
	out.Space = ColorSpaceBT2020PQ
	return out, true, nil
}

func (s *HDR16ToPQ10) Run(instance any, in Frame) (Frame, error) {
	st, ok := instance.(*hdr16ToPQ10Instance)
	if !ok {
		return Frame{}, fmt.Errorf("pp: hdr16_to_pq10: bad instance")
	}
	out := make([]byte, len(in.Pixels))
	n := int(st.width) * int(st.height)
	for i := 0; i < n; i++ {
		off := i * 8 // RGBA16F: 4 channels * 2 bytes
		if off+8 > len(in.Pixels) {
			break
		}
		r := halfToFloat64(in.Pixels[off : off+2])
		g := halfToFloat64(in.Pixels[off+2 : off+4])
		b := halfToFloat64(in.Pixels[off+4 : off+6])
		a := halfToFloat64(in.Pixels[off+6 : off+8])

		r2020 := bt709ToBT2020[0][0]*r + bt709ToBT2020[0][1]*g + bt709ToBT2020[0][2]*b
		g2020 := bt709ToBT2020[1][0]*r + bt709ToBT2020[1][1]*g + bt709ToBT2020[1][2]*b
		b2020 := bt709ToBT2020[2][0]*r + bt709ToBT2020[2][1]*g + bt709ToBT2020[2][2]*b

		pr := pqOETF(r2020 * sdrWhiteNits / hdrPeakNits)
		pg := pqOETF(g2020 * sdrWhiteNits / hdrPeakNits)
		pb := pqOETF(b2020 * sdrWhiteNits / hdrPeakNits)

		dstOff := i * 4
		if dstOff+4 > len(out) {
			break
		}
		packed := packRGB10A2(pr, pg, pb, a)
		out[dstOff] = byte(packed)
		out[dstOff+1] = byte(packed >> 8)
		out[dstOff+2] = byte(packed >> 16)
		out[dstOff+3] = byte(packed >> 24)
	}

	return Frame{
		Config: Config{
			Width:  st.width,
			Height: st.height,
			Cols:   st.width,
			Rows:   st.height,
			Format: wire.PixelFormatRGBA10,
			Space:  ColorSpaceBT2020PQ,
		},
		Pitch:  st.width * 4,
		Pixels: out,
	}, nil
}

// AdjustDamage is the identity: HDR16ToPQ10 transforms color, not geometry.
func (s *HDR16ToPQ10) AdjustDamage(instance any, in []rects.Rect) []rects.Rect { return in }

func (s *HDR16ToPQ10) Free(instance any) error { return nil }
func (s *HDR16ToPQ10) Finish() error           { return nil }

// packRGB10A2 packs three 10-bit channels (clamped to [0,1]) and a 2-bit
// alpha flag into a little-endian uint32, matching the RGB10A2 layout.
func packRGB10A2(r, g, b, a float64) uint32 {
	clamp := func(v float64) uint32 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint32(v*1023.0 + 0.5)
	}
	ac := uint32(0)
	if a > 0.5 {
		ac = 3
	}
	return clamp(r) | clamp(g)<<10 | clamp(b)<<20 | ac<<30
}

// halfToFloat64 decodes a little-endian IEEE-754 binary16 value.
func halfToFloat64(b []byte) float64 {
	h := uint16(b[0]) | uint16(b[1])<<8
	sign := h >> 15
	exp := (h >> 10) & 0x1f
	mant := h & 0x3ff

	var f float64
	switch {
	case exp == 0:
		f = float64(mant) / 1024.0 * math.Pow(2, -14)
	case exp == 0x1f:
		if mant == 0 {
			f = math.Inf(1)
		} else {
			f = math.NaN()
		}
	default:
		f = (1 + float64(mant)/1024.0) * math.Pow(2, float64(exp)-15)
	}
	if sign == 1 {
		f = -f
	}
	return f
}
