package pp

import (
	"math"
	"testing"

	"github.com/gogpu/glance/wire"
)

func float64ToHalfBytes(f float64) []byte {
	// Minimal encoder sufficient for the small test values used here
	// (normal range, no subnormals/infinities needed).
	sign := uint16(0)
	if f < 0 {
		sign = 1
		f = -f
	}
	if f == 0 {
		return []byte{0, 0}
	}
	exp := math.Floor(math.Log2(f))
	mant := f/math.Pow(2, exp) - 1
	e := uint16(exp + 15)
	m := uint16(mant * 1024)
	h := sign<<15 | e<<10 | m
	return []byte{byte(h), byte(h >> 8)}
}

func TestHalfToFloat64_RoundTrip(t *testing.T) {
	for _, v := range []float64{0.5, 1.0, 0.0, 2.0, 0.25} {
		b := float64ToHalfBytes(v)
		got := halfToFloat64(b)
		if math.Abs(got-v) > 1e-2 {
			t.Fatalf("halfToFloat64(%v) = %v, want ~%v", b, got, v)
		}
	}
}

func TestPQOETF_Monotonic(t *testing.T) {
	prev := -1.0
	for _, v := range []float64{0, 0.001, 0.01, 0.1, 0.5, 1.0} {
		got := pqOETF(v)
		if got <= prev {
			t.Fatalf("pqOETF not monotonic at %v: got %v after %v", v, got, prev)
		}
		prev = got
	}
}

func TestHDR16ToPQ10_ConvertsSpace(t *testing.T) {
	s := &HDR16ToPQ10{}
	inst, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}
	out, ok, err := s.Configure(inst, Config{Width: 2, Height: 1, Format: wire.PixelFormatRGBA16F, Space: ColorSpaceScRGBLinear})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("HDR16ToPQ10 should never bypass")
	}
	if out.Space != ColorSpaceBT2020PQ {
		t.Fatalf("output space = %v, want ColorSpaceBT2020PQ", out.Space)
	}

	src := make([]byte, 2*8)
	copy(src[0:2], float64ToHalfBytes(1.0))
	copy(src[2:4], float64ToHalfBytes(1.0))
	copy(src[4:6], float64ToHalfBytes(1.0))
	copy(src[6:8], float64ToHalfBytes(1.0))

	frame, err := s.Run(inst, Frame{
		Config: Config{Width: 2, Height: 1, Format: wire.PixelFormatRGBA16F},
		Pixels: src,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(frame.Pixels) != 2*4 {
		t.Fatalf("output pixel length = %d, want %d", len(frame.Pixels), 2*4)
	}
}
