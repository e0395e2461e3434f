package smt

import "testing"

func TestHeap_AllocRespectsAlignment(t *testing.T) {
	h := NewHeap(4096)
	mem, err := h.Alloc(100, 64)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if mem.Offset%64 != 0 {
		t.Errorf("Offset = %d, not 64-aligned", mem.Offset)
	}
}

func TestHeap_FreeAndReallocCoalesces(t *testing.T) {
	h := NewHeap(1024)
	a, err := h.Alloc(256, 1)
	if err != nil {
		t.Fatalf("Alloc a: %v", err)
	}
	b, err := h.Alloc(256, 1)
	if err != nil {
		t.Fatalf("Alloc b: %v", err)
	}
	if err := h.Free(a.ID); err != nil {
		t.Fatalf("Free a: %v", err)
	}
	if err := h.Free(b.ID); err != nil {
		t.Fatalf("Free b: %v", err)
	}
	if got := h.Available(); got != 1024 {
		t.Errorf("Available() = %d, want 1024 after coalescing", got)
	}
}

func TestHeap_ExhaustionReturnsNoMemory(t *testing.T) {
	h := NewHeap(128)
	if _, err := h.Alloc(128, 1); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := h.Alloc(1, 1); err != ErrNoMemory {
		t.Errorf("second Alloc error = %v, want ErrNoMemory", err)
	}
}

func TestHeap_WriteAtReadAtRoundTrip(t *testing.T) {
	h := NewHeap(1024)
	mem, err := h.Alloc(5, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	want := []byte("hello")
	if err := h.WriteAt(mem, want); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := h.ReadAt(mem.Offset, uint32(mem.Size))
	if string(got) != string(want) {
		t.Errorf("ReadAt = %q, want %q", got, want)
	}
}

func TestHeap_WriteAtRejectsOversizedData(t *testing.T) {
	h := NewHeap(1024)
	mem, err := h.Alloc(4, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := h.WriteAt(mem, []byte("toolong")); err == nil {
		t.Error("WriteAt: expected error for data exceeding allocation size")
	}
}

func TestHeap_DoubleFreeFails(t *testing.T) {
	h := NewHeap(128)
	mem, err := h.Alloc(64, 1)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if err := h.Free(mem.ID); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	if err := h.Free(mem.ID); err == nil {
		t.Error("second Free: expected error, got nil")
	}
}
