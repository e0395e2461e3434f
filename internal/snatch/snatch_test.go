package snatch

import "testing"

type testBackendHandle struct {
	name string
}

func TestSnatchable_NewAndGet(t *testing.T) {
	s := New(testBackendHandle{name: "dxgi"})
	lock := NewLock()
	guard := lock.Read()
	defer guard.Release()

	got := s.Get(guard)
	if got == nil {
		t.Fatal("Get() returned nil, want non-nil")
	}
	if got.name != "dxgi" {
		t.Errorf("Get().name = %q, want %q", got.name, "dxgi")
	}
}

func TestSnatchable_GetAfterSnatch(t *testing.T) {
	s := New(testBackendHandle{name: "dxgi"})
	lock := NewLock()

	wg := lock.Write()
	if s.Snatch(wg) == nil {
		t.Fatal("Snatch() returned nil, want non-nil")
	}
	wg.Release()

	rg := lock.Read()
	defer rg.Release()
	if got := s.Get(rg); got != nil {
		t.Errorf("Get() after Snatch() = %+v, want nil", got)
	}
}

func TestSnatchable_SnatchOnlyOnce(t *testing.T) {
	s := New(testBackendHandle{name: "dxgi"})
	lock := NewLock()

	wg1 := lock.Write()
	first := s.Snatch(wg1)
	wg1.Release()
	if first == nil {
		t.Fatal("first Snatch() returned nil, want non-nil")
	}

	wg2 := lock.Write()
	second := s.Snatch(wg2)
	wg2.Release()
	if second != nil {
		t.Errorf("second Snatch() = %+v, want nil", second)
	}
}

func TestSnatchable_IsSnatched(t *testing.T) {
	s := New(testBackendHandle{name: "dxgi"})
	if s.IsSnatched() {
		t.Fatal("IsSnatched() = true before any Snatch()")
	}

	lock := NewLock()
	wg := lock.Write()
	s.Snatch(wg)
	wg.Release()

	if !s.IsSnatched() {
		t.Error("IsSnatched() = false after Snatch()")
	}
}

func TestLock_ReadersDoNotBlockEachOther(t *testing.T) {
	lock := NewLock()
	g1 := lock.Read()
	g2 := lock.Read()
	g1.Release()
	g2.Release()
}
