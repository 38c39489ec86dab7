// Package hramfs implements the POSIX-like filesystem API (open, close,
// read, write, seek) over the HRAM bus device, frame cache, frame
// allocator and file table, following spec.md's data flow: reads and
// writes consult the frame cache first, fault in missing frames from
// the device (loading the owning cartridge as needed), and writes are
// write-through.
package hramfs

import (
	"github.com/complyue/hramfs/pkg/alloc"
	"github.com/complyue/hramfs/pkg/cache"
	"github.com/complyue/hramfs/pkg/device"
	"github.com/complyue/hramfs/pkg/errors"
	"github.com/complyue/hramfs/pkg/transport"

	"github.com/golang/glog"
)

// FrameSize is the device's atomic transfer unit, in bytes.
const FrameSize = transport.FrameSize

// Exchanger is the wire-level dependency the Driver's device needs;
// *transport.TCP satisfies it.
type Exchanger = device.Exchanger

// Driver is the single top-level value owning the cache, allocator,
// file table and device connection; its methods are the public
// filesystem API. Not safe for concurrent use: the system is
// single-threaded cooperative, per spec.
type Driver struct {
	dev *device.Driver

	cache         *cache.Cache
	cacheCapacity int

	allocator *alloc.Allocator
	table     *fileTable

	poweredOn bool
}

// New constructs a Driver against tx, for a device with the given
// geometry. Call SetCacheSize before PowerOn, then PowerOn before any
// other operation.
func New(tx Exchanger, maxCartridges, maxFramesPerCartridge int) *Driver {
	return &Driver{
		dev:       device.New(tx, maxCartridges, maxFramesPerCartridge),
		allocator: alloc.New(maxCartridges, maxFramesPerCartridge),
		table:     newFileTable(),
	}
}

// SetCacheSize fixes the frame cache capacity. Must be called before
// PowerOn; calling it afterwards is rejected.
func (d *Driver) SetCacheSize(n int) error {
	if d.poweredOn {
		return errors.Op("hramfs.SetCacheSize", errors.KindCacheNotInitialized,
			errors.New("cache size must be set before PowerOn"))
	}
	d.cacheCapacity = n
	return nil
}

// PowerOn initializes the cache, zeroes every cartridge on the device,
// and makes the driver ready for file operations.
func (d *Driver) PowerOn() error {
	if d.cacheCapacity <= 0 {
		return errors.Op("hramfs.PowerOn", errors.KindCacheNotInitialized,
			errors.New("SetCacheSize must be called with a positive capacity before PowerOn"))
	}
	c, err := cache.New(d.cacheCapacity)
	if err != nil {
		return errors.Op("hramfs.PowerOn", errors.KindOutOfMemory, err)
	}
	if err := d.dev.PowerOn(); err != nil {
		return errors.Op("hramfs.PowerOn", errors.KindDeviceError, err)
	}
	d.cache = c
	d.poweredOn = true
	if glog.V(1) {
		glog.Infof("hramfs powered on, cache capacity %d", d.cacheCapacity)
	}
	return nil
}

// PowerOff releases all file entries, open or closed, shuts down the device and
// tears down the cache. No operation is valid until the next PowerOn.
func (d *Driver) PowerOff() error {
	d.table.reset()
	err := d.dev.PowerOff()
	d.cache = nil
	d.poweredOn = false
	if err != nil {
		return errors.Op("hramfs.PowerOff", errors.KindDeviceError, err)
	}
	if glog.V(1) {
		glog.Infof("hramfs powered off")
	}
	return nil
}

// Open resolves name to a handle, creating a fresh entry, reviving a
// closed one, or failing if name is already open elsewhere.
func (d *Driver) Open(name string) (int16, error) {
	if !d.poweredOn {
		return 0, errors.Op("hramfs.Open", errors.KindCacheNotInitialized, errors.New("not powered on"))
	}
	h, err := d.table.open(name)
	if err != nil {
		return 0, err
	}
	if glog.V(2) {
		glog.Infof("open %q -> handle %d", name, h)
	}
	return h, nil
}

// Close releases handle's open state, retaining the file's content.
func (d *Driver) Close(handle int16) error {
	return d.table.close(handle)
}

// Seek repositions handle's cursor to offset, failing if offset exceeds
// the file's length.
func (d *Driver) Seek(handle int16, offset uint32) error {
	return d.table.seek(handle, offset)
}

// faultFrame returns the payload for slot, consulting the cache first
// and faulting it in from the device on a miss (loading the owning
// cartridge first), populating the cache as it goes. The returned
// slice is a fresh copy, safe to retain across further cache mutation.
func (d *Driver) faultFrame(slot alloc.Slot) ([]byte, error) {
	if payload, ok := d.cache.Get(slot.Cartridge, slot.Frame); ok {
		out := make([]byte, FrameSize)
		copy(out, payload)
		return out, nil
	}
	if err := d.dev.Load(slot.Cartridge); err != nil {
		return nil, errors.Op("hramfs.faultFrame", errors.KindDeviceError, err)
	}
	buf := make([]byte, FrameSize)
	if err := d.dev.ReadFrame(slot.Frame, buf); err != nil {
		return nil, errors.Op("hramfs.faultFrame", errors.KindDeviceError, err)
	}
	if err := d.cache.Put(slot.Cartridge, slot.Frame, buf); err != nil {
		return nil, errors.Op("hramfs.faultFrame", errors.KindOutOfMemory, err)
	}
	return buf, nil
}

// Read copies up to n bytes, starting at the handle's current
// position, into out, advancing the position by the amount read.
// Reading is clamped at EOF; it never reads past length.
func (d *Driver) Read(handle int16, out []byte, n uint32) (uint32, error) {
	e, err := d.table.get(handle)
	if err != nil {
		return 0, err
	}

	if e.position+n > e.length {
		n = e.length - e.position
	}
	if n == 0 {
		return 0, nil
	}

	first := int(e.position / FrameSize)
	last := int((e.position + n) / FrameSize)
	if last >= len(e.slots) {
		last = len(e.slots) - 1
	}

	collected := make([]byte, 0, n)
	for i := first; i <= last; i++ {
		payload, err := d.faultFrame(e.slots[i])
		if err != nil {
			return 0, err
		}
		collected = append(collected, payload...)
	}

	startInWindow := e.position - uint32(first)*FrameSize
	copy(out[:n], collected[startInWindow:startInWindow+n])

	e.position += n
	if glog.V(2) {
		glog.Infof("read %d bytes from handle %d, position now %d", n, handle, e.position)
	}
	return n, nil
}

// Write copies n bytes from in to the handle's current position,
// extending the file (allocating new slots as needed) if the write
// reaches past the current length, and advancing the position by n.
// Writes are write-through: the device write completes before Write
// returns, so the cache and device agree on every touched frame's
// content. On device failure mid-write, length and position are left
// unchanged.
func (d *Driver) Write(handle int16, in []byte, n uint32) (uint32, error) {
	e, err := d.table.get(handle)
	if err != nil {
		return 0, err
	}
	if uint32(len(in)) < n {
		return 0, errors.Op("hramfs.Write", errors.KindOutOfMemory,
			errors.Errorf("input buffer shorter than n: %d < %d", len(in), n))
	}

	if n == 0 {
		return 0, nil
	}

	start := e.position
	end := start + n

	// highest frame index touched: ceil(end/FrameSize) - 1
	highestFrame := int((end - 1) / FrameSize)
	for len(e.slots) < highestFrame+1 {
		slot, err := d.allocator.Alloc()
		if err != nil {
			return 0, errors.Op("hramfs.Write", errors.KindAllocatorExhausted, err)
		}
		e.slots = append(e.slots, slot)
	}

	first := int(start / FrameSize)
	srcOff := uint32(0)
	for i := first; i <= highestFrame; i++ {
		slot := e.slots[i]
		frameStart := uint32(i) * FrameSize
		frameEnd := frameStart + FrameSize

		overlapStart := frameStart
		if start > overlapStart {
			overlapStart = start
		}
		overlapEnd := frameEnd
		if end < overlapEnd {
			overlapEnd = end
		}
		overlapLen := overlapEnd - overlapStart
		inFrameOff := overlapStart - frameStart

		var buf []byte
		if overlapLen == FrameSize {
			buf = make([]byte, FrameSize)
		} else {
			buf, err = d.faultFrame(slot)
			if err != nil {
				return 0, err
			}
		}
		copy(buf[inFrameOff:inFrameOff+overlapLen], in[srcOff:srcOff+overlapLen])

		if err := d.dev.Load(slot.Cartridge); err != nil {
			return 0, errors.Op("hramfs.Write", errors.KindDeviceError, err)
		}
		if err := d.dev.WriteFrame(slot.Frame, buf); err != nil {
			return 0, errors.Op("hramfs.Write", errors.KindDeviceError, err)
		}
		if err := d.cache.Put(slot.Cartridge, slot.Frame, buf); err != nil {
			return 0, errors.Op("hramfs.Write", errors.KindOutOfMemory, err)
		}

		srcOff += overlapLen
	}

	if end > e.length {
		e.length = end
	}
	e.position = end

	if glog.V(2) {
		glog.Infof("wrote %d bytes to handle %d, position now %d, length %d", n, handle, e.position, e.length)
	}
	return n, nil
}

// CacheStats reports the frame cache's occupied entry count and fixed
// capacity, a read-only observability surface beyond spec.md's core
// API table.
func (d *Driver) CacheStats() (occupied, capacity int) {
	if d.cache == nil {
		return 0, d.cacheCapacity
	}
	return d.cache.Occupied(), d.cache.Capacity()
}
