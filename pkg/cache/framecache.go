// Package cache implements the fixed-capacity frame cache: a
// priority/recency cache of (cartridge, frame) -> payload with
// deterministic eviction and priority re-ranking on every hit.
package cache

import (
	"github.com/complyue/hramfs/pkg/errors"

	"github.com/golang/glog"
)

// FrameSize is the fixed payload size of a cache entry, matching the
// device's atomic transfer unit.
const FrameSize = 1024

// Slot identifies one frame on the device.
type Slot struct {
	Cartridge int
	Frame     int
}

// entry is one cache line: a slot, its payload, and a 1-based priority.
// Priority 1 is most recently used; the largest priority among occupied
// entries is the next victim.
type entry struct {
	slot     Slot
	payload  [FrameSize]byte
	priority int
	occupied bool
}

// Cache is a fixed-capacity priority cache of (cartridge, frame) ->
// 1024-byte payload. The zero value is not usable; construct with New.
// Not safe for concurrent use — the whole system is single-threaded
// cooperative per spec.
type Cache struct {
	capacity int
	entries  []entry
	occupied int // count of occupied entries
	index    map[Slot]int
}

// New constructs a Cache with the given fixed capacity. Capacity must
// be supplied once, before first use, and cannot be grown later.
func New(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, errors.Op("cache.New", errors.KindOutOfMemory,
			errors.Errorf("capacity must be positive, got %d", capacity))
	}
	return &Cache{
		capacity: capacity,
		entries:  make([]entry, capacity),
		index:    make(map[Slot]int, capacity),
	}, nil
}

// Capacity returns the cache's fixed capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Occupied returns the number of entries presently holding data.
func (c *Cache) Occupied() int { return c.occupied }

// Get returns the cached payload for (cartridge, frame) if present,
// refreshing its priority to 1 (most recently used). The returned slice
// aliases the cache's internal storage and is only valid until the next
// mutating call to the cache (Put/Get/Delete); callers needing it to
// outlive that should copy it.
func (c *Cache) Get(cartridge, frame int) (payload []byte, ok bool) {
	slot := Slot{cartridge, frame}
	i, found := c.index[slot]
	if !found {
		return nil, false
	}
	c.promote(i)
	if glog.V(2) {
		glog.Infof("cache hit (%d,%d) priority now 1", cartridge, frame)
	}
	return c.entries[i].payload[:], true
}

// Put inserts or refreshes the entry for (cartridge, frame) with
// payload, which must be exactly FrameSize bytes. It never fails on a
// well-formed call.
func (c *Cache) Put(cartridge, frame int, payload []byte) error {
	if len(payload) != FrameSize {
		return errors.Op("cache.Put", errors.KindOutOfMemory,
			errors.Errorf("payload must be %d bytes, got %d", FrameSize, len(payload)))
	}
	slot := Slot{cartridge, frame}

	if i, found := c.index[slot]; found {
		copy(c.entries[i].payload[:], payload)
		c.promote(i)
		return nil
	}

	if c.occupied < c.capacity {
		i := c.occupied
		e := &c.entries[i]
		e.slot = slot
		copy(e.payload[:], payload)
		e.occupied = true
		c.occupied++
		e.priority = c.occupied // next victim until touched again
		c.index[slot] = i
		if glog.V(2) {
			glog.Infof("cache insert (%d,%d) into free slot %d, priority %d", cartridge, frame, i, e.priority)
		}
		return nil
	}

	// capacity exhausted: evict the entry with the largest priority.
	victim := c.victimIndex()
	old := c.entries[victim].slot
	delete(c.index, old)
	e := &c.entries[victim]
	e.slot = slot
	copy(e.payload[:], payload)
	c.index[slot] = victim
	c.promote(victim)
	if glog.V(2) {
		glog.Infof("cache evict (%d,%d) for (%d,%d) at slot %d", old.Cartridge, old.Frame, cartridge, frame, victim)
	}
	return nil
}

// Delete removes the entry for (cartridge, frame) if present and
// returns its payload; it is not used by the filesystem layer and may
// be treated as a convenience no-op by callers that don't need it.
func (c *Cache) Delete(cartridge, frame int) (payload []byte, ok bool) {
	slot := Slot{cartridge, frame}
	i, found := c.index[slot]
	if !found {
		return nil, false
	}
	out := make([]byte, FrameSize)
	copy(out, c.entries[i].payload[:])

	removedPriority := c.entries[i].priority
	delete(c.index, slot)
	c.entries[i] = entry{}

	// compact: move the last occupied entry into the freed slot, then
	// shrink priorities of everything ranked below the removed entry by
	// one to preserve the {1..occupied_count} contiguity invariant.
	last := c.occupied - 1
	if i != last && c.entries[last].occupied {
		c.entries[i] = c.entries[last]
		c.index[c.entries[i].slot] = i
		c.entries[last] = entry{}
	}
	c.occupied--

	for j := 0; j < c.occupied; j++ {
		if c.entries[j].priority > removedPriority {
			c.entries[j].priority--
		}
	}

	return out, true
}

// victimIndex locates the occupied entry with the largest priority
// (the next one to be evicted).
func (c *Cache) victimIndex() int {
	victim := 0
	for i := 1; i < c.occupied; i++ {
		if c.entries[i].priority > c.entries[victim].priority {
			victim = i
		}
	}
	return victim
}

// promote sets entries[i]'s priority to 1 and increments every other
// occupied entry whose priority was strictly less than entries[i]'s
// previous priority, preserving the permutation-of-{1..occupied}
// invariant. This is O(occupied) per call, which is fine: occupied is
// the cache capacity, expected to be small.
func (c *Cache) promote(i int) {
	prev := c.entries[i].priority
	for j := 0; j < c.occupied; j++ {
		if j == i {
			continue
		}
		if c.entries[j].priority < prev {
			c.entries[j].priority++
		}
	}
	c.entries[i].priority = 1
}
