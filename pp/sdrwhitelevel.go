package pp

import (
	"fmt"

	"github.com/gogpu/glance/hal"
	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

// NitsProvider reports the compositor's current SDR white level in nits,
// polled once per Configure. Recovered from original_source/: the guest
// driver exposes this as a per-frame value rather than a static constant,
// since the user can change Windows' HDR "SDR content brightness" slider
// live.
type NitsProvider func() float64

// SDRWhiteLevel rescales scRGB linear pixels so that the caller-reported
// SDR white level maps to the PQ curve's 80-nit reference white, then
// PQ-encodes them into RGBA10 without the BT.709->BT.2020 gamut conversion
// HDR16ToPQ10 performs. It is an alternative to
// HDR16ToPQ10 for displays running in SDR-in-HDR-container mode; a chain
// uses one or the other, never both.
type SDRWhiteLevel struct {
	Nits NitsProvider
}

type sdrWhiteLevelInstance struct {
	width, height uint32
	whiteNits     float64
}

func (s *SDRWhiteLevel) Name() string { return "sdr_white_level" }

func (s *SDRWhiteLevel) EarlyInit() error {
	return validateWGSL(sdrWhiteLevelWGSL)
}

func (s *SDRWhiteLevel) Setup(device hal.Device, shareable bool) error { return nil }

func (s *SDRWhiteLevel) Init() (any, error) {
	return &sdrWhiteLevelInstance{}, nil
}

func (s *SDRWhiteLevel) Configure(instance any, in Config) (Config, bool, error) {
	st := instance.(*sdrWhiteLevelInstance)
	st.width, st.height = in.Width, in.Height
	st.whiteNits = sdrWhiteNits
	if s.Nits != nil {
		if n := s.Nits(); n > 0 {
			st.whiteNits = n
		}
	}
	out := in
	out.Format = wire.PixelFormatRGBA10
	out.Space = ColorSpaceBT2020PQ
	return out, true, nil
}

func (s *SDRWhiteLevel) Run(instance any, in Frame) (Frame, error) {
	st, ok := instance.(*sdrWhiteLevelInstance)
	if !ok {
		return Frame{}, fmt.Errorf("pp: sdr_white_level: bad instance")
	}
	scale := sdrWhiteNits / st.whiteNits

	out := make([]byte, len(in.Pixels))
	n := int(st.width) * int(st.height)
	for i := 0; i < n; i++ {
		off := i * 8
		if off+8 > len(in.Pixels) {
			break
		}
		r := halfToFloat64(in.Pixels[off:off+2]) * scale
		g := halfToFloat64(in.Pixels[off+2:off+4]) * scale
		b := halfToFloat64(in.Pixels[off+4:off+6]) * scale
		a := halfToFloat64(in.Pixels[off+6 : off+8])

		dstOff := i * 4
		if dstOff+4 > len(out) {
			break
		}
		packed := packRGB10A2(pqOETF(r*sdrWhiteNits/hdrPeakNits), pqOETF(g*sdrWhiteNits/hdrPeakNits), pqOETF(b*sdrWhiteNits/hdrPeakNits), a)
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

// AdjustDamage is the identity: SDRWhiteLevel transforms color, not
// geometry.
func (s *SDRWhiteLevel) AdjustDamage(instance any, in []rects.Rect) []rects.Rect { return in }

func (s *SDRWhiteLevel) Free(instance any) error { return nil }
func (s *SDRWhiteLevel) Finish() error           { return nil }
