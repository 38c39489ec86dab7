// Package alloc implements the monotonic (cartridge, frame) slot
// allocator: a single cursor that hands out fresh slots and never
// reclaims them.
package alloc

import "github.com/complyue/hramfs/pkg/errors"

// Slot identifies one frame on the device.
type Slot struct {
	Cartridge int
	Frame     int
}

// Allocator is a monotonic append-only cursor over device geometry.
// The zero value is not usable; construct with New. Not safe for
// concurrent use.
type Allocator struct {
	maxCartridges         int
	maxFramesPerCartridge int

	nextCartridge int
	nextFrame     int
}

// New returns an Allocator starting its cursor at (0, 0), over a device
// with the given geometry.
func New(maxCartridges, maxFramesPerCartridge int) *Allocator {
	return &Allocator{
		maxCartridges:         maxCartridges,
		maxFramesPerCartridge: maxFramesPerCartridge,
	}
}

// Alloc returns the cursor's current slot and advances it. It fails
// once the device is exhausted (the cursor has walked off the last
// cartridge); freed slots are never reclaimed.
func (a *Allocator) Alloc() (Slot, error) {
	if a.nextCartridge >= a.maxCartridges {
		return Slot{}, errors.Op("alloc.Alloc", errors.KindAllocatorExhausted,
			errors.Errorf("device exhausted: %d cartridge(s) x %d frame(s)", a.maxCartridges, a.maxFramesPerCartridge))
	}
	s := Slot{Cartridge: a.nextCartridge, Frame: a.nextFrame}
	a.nextFrame++
	if a.nextFrame == a.maxFramesPerCartridge {
		a.nextFrame = 0
		a.nextCartridge++
	}
	return s, nil
}
