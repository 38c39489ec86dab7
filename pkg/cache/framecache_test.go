package cache

import "testing"

// assertPriorityInvariant checks that occupied entries' priorities form
// the set {1, ..., occupied} with no duplicates.
func assertPriorityInvariant(t *testing.T, c *Cache) {
	t.Helper()
	seen := make(map[int]bool)
	count := 0
	for _, e := range c.entries {
		if !e.occupied {
			continue
		}
		count++
		if e.priority < 1 || e.priority > c.occupied {
			t.Fatalf("priority %d out of range [1,%d]", e.priority, c.occupied)
		}
		if seen[e.priority] {
			t.Fatalf("duplicate priority %d", e.priority)
		}
		seen[e.priority] = true
	}
	if count != c.occupied {
		t.Fatalf("occupied count mismatch: counted %d, tracked %d", count, c.occupied)
	}
}

func frame(b byte) []byte {
	buf := make([]byte, FrameSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestPutGetRoundTrip(t *testing.T) {
	c, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Put(0, 1, frame(7)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	payload, ok := c.Get(0, 1)
	if !ok {
		t.Fatalf("expected hit")
	}
	if payload[0] != 7 {
		t.Fatalf("payload mismatch")
	}
	assertPriorityInvariant(t, c)
}

func TestGetMiss(t *testing.T) {
	c, _ := New(2)
	if _, ok := c.Get(0, 0); ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestPriorityInvariantAcrossOperations(t *testing.T) {
	c, _ := New(3)
	ops := []func(){
		func() { c.Put(0, 0, frame(0)) },
		func() { c.Put(0, 1, frame(1)) },
		func() { c.Get(0, 0) },
		func() { c.Put(0, 2, frame(2)) },
		func() { c.Put(0, 3, frame(3)) }, // triggers eviction
		func() { c.Get(0, 2) },
		func() { c.Put(0, 4, frame(4)) }, // triggers eviction
		func() { c.Get(0, 1000) },        // miss, no-op on invariant
	}
	for i, op := range ops {
		op()
		assertPriorityInvariant(t, c)
		_ = i
	}
}

func TestMostRecentlyUsedHasPriorityOne(t *testing.T) {
	c, _ := New(3)
	c.Put(0, 0, frame(0))
	c.Put(0, 1, frame(1))
	c.Put(0, 2, frame(2))

	c.Get(0, 0)
	i := c.index[Slot{0, 0}]
	if c.entries[i].priority != 1 {
		t.Fatalf("expected priority 1 after get, got %d", c.entries[i].priority)
	}

	c.Put(0, 1, frame(99))
	i = c.index[Slot{0, 1}]
	if c.entries[i].priority != 1 {
		t.Fatalf("expected priority 1 after put-refresh, got %d", c.entries[i].priority)
	}
}

func TestEvictionPicksLargestPriority(t *testing.T) {
	c, _ := New(2)
	c.Put(0, 0, frame(0)) // fills slot 0, priority 1 (occupied count 1)
	c.Put(0, 1, frame(1)) // fills slot 1, priority 2 (occupied count 2) -> next victim

	// touching the current victim protects it and makes (0,0) the victim.
	c.Get(0, 1)

	c.Put(0, 2, frame(2)) // cache full: should evict (0,0), the current victim

	if _, ok := c.Get(0, 0); ok {
		t.Fatalf("expected (0,0) to have been evicted")
	}
	if _, ok := c.Get(0, 1); !ok {
		t.Fatalf("expected (0,1) to survive eviction")
	}
	if _, ok := c.Get(0, 2); !ok {
		t.Fatalf("expected freshly inserted (0,2) to be present")
	}
}

func TestCapacityNeverExceeded(t *testing.T) {
	c, _ := New(2)
	for i := 0; i < 10; i++ {
		c.Put(0, i, frame(byte(i)))
		if c.Occupied() > c.Capacity() {
			t.Fatalf("occupied %d exceeds capacity %d", c.Occupied(), c.Capacity())
		}
	}
}

func TestDeletePreservesInvariant(t *testing.T) {
	c, _ := New(4)
	c.Put(0, 0, frame(0))
	c.Put(0, 1, frame(1))
	c.Put(0, 2, frame(2))

	payload, ok := c.Delete(0, 1)
	if !ok || payload[0] != 1 {
		t.Fatalf("Delete did not return expected payload")
	}
	assertPriorityInvariant(t, c)
	if _, ok := c.Get(0, 1); ok {
		t.Fatalf("expected (0,1) gone after delete")
	}
	if _, ok := c.Get(0, 0); !ok {
		t.Fatalf("expected (0,0) to remain")
	}
	if _, ok := c.Get(0, 2); !ok {
		t.Fatalf("expected (0,2) to remain")
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero capacity")
	}
	if _, err := New(-1); err == nil {
		t.Fatalf("expected error for negative capacity")
	}
}
