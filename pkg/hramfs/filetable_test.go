package hramfs

import "testing"

func TestOpenCreatesFreshEntry(t *testing.T) {
	ft := newFileTable()
	h, err := ft.open("a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if h != 1 {
		t.Fatalf("expected handle 1, got %d", h)
	}
}

func TestOpenAlreadyOpenFails(t *testing.T) {
	ft := newFileTable()
	if _, err := ft.open("a"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := ft.open("a"); err == nil {
		t.Fatalf("expected error reopening an already-open file")
	}
}

func TestHandleReuseSmallestFree(t *testing.T) {
	ft := newFileTable()
	hx, _ := ft.open("x")
	hy, _ := ft.open("y")
	if hx != 1 || hy != 2 {
		t.Fatalf("expected handles 1,2, got %d,%d", hx, hy)
	}
	if err := ft.close(hx); err != nil {
		t.Fatalf("close: %v", err)
	}
	hz, err := ft.open("z")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if hz != 1 {
		t.Fatalf("expected smallest free handle 1, got %d", hz)
	}
}

func TestCloseRetainsLengthAndSlots(t *testing.T) {
	ft := newFileTable()
	h, _ := ft.open("p")
	e, err := ft.get(h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e.length = 4
	e.position = 4
	if err := ft.close(h); err != nil {
		t.Fatalf("close: %v", err)
	}

	h2, err := ft.open("p")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e2, err := ft.get(h2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e2.length != 4 {
		t.Fatalf("expected retained length 4, got %d", e2.length)
	}
	if e2.position != 0 {
		t.Fatalf("expected position reset to 0, got %d", e2.position)
	}
}

func TestCloseBadOrClosedHandleFails(t *testing.T) {
	ft := newFileTable()
	if err := ft.close(99); err == nil {
		t.Fatalf("expected error closing unknown handle")
	}
	h, _ := ft.open("a")
	if err := ft.close(h); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ft.close(h); err == nil {
		t.Fatalf("expected error double-closing handle")
	}
}

func TestSeekPastEndRejected(t *testing.T) {
	ft := newFileTable()
	h, _ := ft.open("q")
	e, _ := ft.get(h)
	e.length = 2
	if err := ft.seek(h, 3); err == nil {
		t.Fatalf("expected error seeking past end")
	}
	if e.position != 0 {
		t.Fatalf("expected position unchanged after rejected seek, got %d", e.position)
	}
	if err := ft.seek(h, 2); err != nil {
		t.Fatalf("seek to length should succeed: %v", err)
	}
}
