package noop

import "testing"

func TestBackend_AlwaysTimesOut(t *testing.T) {
	b := &Backend{}
	var alignment uint64
	if err := b.Init(&alignment); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if alignment == 0 {
		t.Error("Init did not negotiate a default alignment")
	}

	result, err := b.Capture(0, nil)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if result.String() != "TIMEOUT" {
		t.Errorf("Capture result = %v, want TIMEOUT", result)
	}

	_, result, err = b.WaitFrame(0, 1<<20)
	if err != nil {
		t.Fatalf("WaitFrame: %v", err)
	}
	if result.String() != "TIMEOUT" {
		t.Errorf("WaitFrame result = %v, want TIMEOUT", result)
	}
}
