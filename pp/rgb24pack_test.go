package pp

import (
	"bytes"
	"testing"

	"github.com/gogpu/glance/rects"
	"github.com/gogpu/glance/wire"
)

// TestRGB24Pack_S6 reproduces spec.md scenario S6: a 12x1 RGBA8 image packs
// to packed_pitch=64, frame_width=9, frame_height=1.
func TestRGB24Pack_S6(t *testing.T) {
	const width, height = 12, 1
	src := make([]byte, width*height*4)
	for i := 0; i < width; i++ {
		src[i*4+0] = byte(i)
		src[i*4+1] = byte(i + 100)
		src[i*4+2] = byte(i + 200)
		src[i*4+3] = 0xff
	}

	packed, packedPitch, frameWidth, frameHeight := Pack(src, width, height)

	if packedPitch != 64 {
		t.Fatalf("packedPitch = %d, want 64", packedPitch)
	}
	if frameWidth != 9 {
		t.Fatalf("frameWidth = %d, want 9", frameWidth)
	}
	if frameHeight != 1 {
		t.Fatalf("frameHeight = %d, want 1", frameHeight)
	}
	if len(packed) != int(packedPitch)*4*int(frameHeight) {
		t.Fatalf("packed length = %d, want %d", len(packed), int(packedPitch)*4)
	}

	wantColorBytes := flattenRGB(src, width, height)
	if len(wantColorBytes) != 36 {
		t.Fatalf("expected 36 source color bytes, got %d", len(wantColorBytes))
	}
	if !bytes.Equal(packed[:36], wantColorBytes) {
		t.Fatalf("first 36 packed bytes = %v, want %v", packed[:36], wantColorBytes)
	}

	s := &RGB24Pack{}
	inst, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}
	inConfig := Config{Width: width, Height: height, Format: wire.PixelFormatRGBA}
	if _, _, err := s.Configure(inst, inConfig); err != nil {
		t.Fatal(err)
	}
	out, err := s.Run(inst, Frame{Config: inConfig, Pixels: src})
	if err != nil {
		t.Fatal(err)
	}
	if out.Format != wire.PixelFormatBGR32 {
		t.Fatalf("published pixel format = %v, want BGR_32", out.Format)
	}
}

// TestRGB24Pack_RoundTrip verifies testable property 9: unpacking equals
// the truncation of the source RGBA8 input to 24bpp (alpha dropped, then
// restored as opaque).
func TestRGB24Pack_RoundTrip(t *testing.T) {
	const width, height = 7, 3
	src := make([]byte, width*height*4)
	for i := range src {
		src[i] = byte(i * 37)
	}
	for i := 0; i < width*height; i++ {
		src[i*4+3] = 0xff
	}

	packed, packedPitch, _, _ := Pack(src, width, height)
	got := Unpack(packed, packedPitch, width, height)

	if !bytes.Equal(got, src) {
		t.Fatalf("round trip mismatch:\n got  %v\n want %v", got, src)
	}
}

func TestRGB24Pack_Configure_Bypass(t *testing.T) {
	s := &RGB24Pack{}
	inst, err := s.Init()
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := s.Configure(inst, Config{Width: 4, Height: 4, Format: wire.PixelFormatBGR32})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected bypass when input is already BGR_32")
	}
}

func TestRGB24Pack_AdjustDamage(t *testing.T) {
	s := &RGB24Pack{}
	in := []rects.Rect{{X: 8, Y: 0, Width: 4, Height: 1}}
	out := s.AdjustDamage(nil, in)
	if len(out) != 1 {
		t.Fatalf("expected 1 rect, got %d", len(out))
	}
	// left = floor(8*3/4) = 6; right = 6 + ceil(4*3/4) = 6 + 3 = 9
	if out[0].X != 6 || out[0].Width != 3 {
		t.Fatalf("AdjustDamage = %+v, want X=6 Width=3", out[0])
	}
}
