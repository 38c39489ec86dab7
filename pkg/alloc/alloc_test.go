package alloc

import "testing"

func TestAllocAdvancesFrameThenCartridge(t *testing.T) {
	a := New(2, 2)
	want := []Slot{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	for i, w := range want {
		got, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		if got != w {
			t.Fatalf("Alloc #%d: got %+v want %+v", i, got, w)
		}
	}
}

func TestAllocExhaustion(t *testing.T) {
	a := New(1, 2)
	if _, err := a.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := a.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := a.Alloc(); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}
