package shm

import "testing"

func TestAnonymousRegion_SizeAndBytes(t *testing.T) {
	r := NewAnonymous(4096)
	defer r.Close()

	if r.Size() != 4096 {
		t.Fatalf("Size() = %d, want 4096", r.Size())
	}
	b := r.Bytes()
	if len(b) != 4096 {
		t.Fatalf("len(Bytes()) = %d, want 4096", len(b))
	}

	b[0] = 0xAB
	if r.Bytes()[0] != 0xAB {
		t.Error("write through Bytes() did not persist")
	}
}

func TestAnonymousRegion_CloseClearsBytes(t *testing.T) {
	r := NewAnonymous(64)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Bytes() != nil {
		t.Error("Bytes() after Close() should be nil")
	}
}
