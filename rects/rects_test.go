package rects

import "testing"

func TestMergeOverlapping(t *testing.T) {
	in := []Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 5, Y: 5, Width: 10, Height: 10},
		{X: 100, Y: 100, Width: 5, Height: 5},
	}
	out := MergeOverlapping(in)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
	want := Rect{X: 0, Y: 0, Width: 15, Height: 15}
	if out[0] != want {
		t.Errorf("merged rect = %+v, want %+v", out[0], want)
	}
}

func TestRejectContained(t *testing.T) {
	in := []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 10, Y: 10, Width: 5, Height: 5},
		{X: 200, Y: 200, Width: 5, Height: 5},
	}
	out := RejectContained(in)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2: %+v", len(out), out)
	}
}

func TestClamp(t *testing.T) {
	r := Rect{X: -5, Y: -5, Width: 20, Height: 20}
	clamped, ok := r.Clamp(10, 10)
	if !ok {
		t.Fatal("Clamp returned false, want true")
	}
	want := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	if clamped != want {
		t.Errorf("clamped = %+v, want %+v", clamped, want)
	}

	_, ok = Rect{X: 100, Y: 100, Width: 5, Height: 5}.Clamp(10, 10)
	if ok {
		t.Error("Clamp of out-of-bounds rect returned true, want false")
	}
}

func TestUnion(t *testing.T) {
	u, ok := Union([]Rect{
		{X: 0, Y: 0, Width: 5, Height: 5},
		{X: 10, Y: 10, Width: 5, Height: 5},
	})
	if !ok {
		t.Fatal("Union returned false, want true")
	}
	want := Rect{X: 0, Y: 0, Width: 15, Height: 15}
	if u != want {
		t.Errorf("Union = %+v, want %+v", u, want)
	}
}

func TestCopyRows(t *testing.T) {
	const stride = 4 * 4 // 4px * 4 bytes/px
	src := make([]byte, stride*4)
	dst := make([]byte, stride*4)
	for i := range src {
		src[i] = byte(i)
	}
	CopyRows(dst, stride, src, stride, 4, 4, []Rect{{X: 1, Y: 1, Width: 2, Height: 2}})

	// row 0 and row 3 should remain untouched (zero).
	for _, y := range []int{0, 3} {
		for x := 0; x < stride; x++ {
			if dst[y*stride+x] != 0 {
				t.Fatalf("row %d unexpectedly written at byte %d", y, x)
			}
		}
	}
	// damaged region in rows 1-2 should match src.
	for _, y := range []int{1, 2} {
		off := y*stride + 1*4
		if string(dst[off:off+8]) != string(src[off:off+8]) {
			t.Errorf("row %d damaged bytes not copied", y)
		}
	}
}
