// Package device wraps the bus transport, issuing opcodes against it and
// tracking which cartridge is currently loaded.
package device

import (
	"github.com/complyue/hramfs/pkg/bus"
	"github.com/complyue/hramfs/pkg/errors"

	"github.com/golang/glog"
)

// Exchanger is the wire-level dependency a Driver needs; *transport.TCP
// satisfies it, and tests substitute a fake.
type Exchanger interface {
	Exchange(requestWord uint64, buf []byte) (responseWord uint64, err error)
}

// Driver issues HRAM bus opcodes over an Exchanger and tracks the
// currently loaded cartridge. Not safe for concurrent use: the whole
// system is single-threaded cooperative per spec.
type Driver struct {
	tx Exchanger

	maxCartridges         int
	maxFramesPerCartridge int

	loaded        int
	loadedIsValid bool
}

// New returns a Driver that issues opcodes over tx, against a device
// with the given geometry.
func New(tx Exchanger, maxCartridges, maxFramesPerCartridge int) *Driver {
	return &Driver{
		tx:                    tx,
		maxCartridges:         maxCartridges,
		maxFramesPerCartridge: maxFramesPerCartridge,
	}
}

// LoadedCartridge returns the currently loaded cartridge id and whether
// any cartridge has been loaded yet.
func (d *Driver) LoadedCartridge() (int, bool) {
	return d.loaded, d.loadedIsValid
}

func (d *Driver) exchange(op bus.Opcode, cartridge, frame uint16, buf []byte) (bus.Response, error) {
	word := bus.Encode(op, cartridge, frame)
	respWord, err := d.tx.Exchange(word, buf)
	if err != nil {
		return bus.Response{}, errors.Op("device."+op.String(), errors.KindDeviceError, err)
	}
	resp := bus.Decode(respWord)
	if resp.Ret != 0 {
		return resp, errors.Op("device."+op.String(), errors.KindDeviceError,
			errors.Errorf("device returned ret=%d for %s(c=%d,f=%d)", resp.Ret, op, cartridge, frame))
	}
	return resp, nil
}

// PowerOn issues init, then loads and zeroes every cartridge in turn,
// leaving LoadedCartridge set to the last cartridge touched.
func (d *Driver) PowerOn() error {
	if _, err := d.exchange(bus.OpInit, 0, 0, nil); err != nil {
		return err
	}
	for c := 0; c < d.maxCartridges; c++ {
		if err := d.Load(c); err != nil {
			return err
		}
		if err := d.ZeroCurrent(); err != nil {
			return err
		}
	}
	if glog.V(1) {
		glog.Infof("device powered on: %d cartridge(s) x %d frame(s)", d.maxCartridges, d.maxFramesPerCartridge)
	}
	return nil
}

// PowerOff issues shutdown and marks the loaded-cartridge tracker
// invalid, so the next Load always issues a load opcode.
func (d *Driver) PowerOff() error {
	if _, err := d.exchange(bus.OpShutdown, 0, 0, nil); err != nil {
		return err
	}
	d.loadedIsValid = false
	if glog.V(1) {
		glog.Infof("device powered off")
	}
	return nil
}

// Load issues a load-cartridge opcode for c, unless c is already the
// loaded cartridge (an optimization callers may rely on). A non-zero
// device return code is a fatal failure.
func (d *Driver) Load(c int) error {
	if d.loadedIsValid && d.loaded == c {
		return nil
	}
	if _, err := d.exchange(bus.OpLoadCartridge, uint16(c), 0, nil); err != nil {
		return err
	}
	d.loaded = c
	d.loadedIsValid = true
	if glog.V(2) {
		glog.Infof("loaded cartridge %d", c)
	}
	return nil
}

// ZeroCurrent issues zero-current-cartridge against whichever cartridge
// is presently loaded.
func (d *Driver) ZeroCurrent() error {
	_, err := d.exchange(bus.OpZeroCurrent, 0, 0, nil)
	return err
}

// ReadFrame requires cartridge to already be loaded (callers load it
// first); it reads frame into out, which must be exactly
// transport.FrameSize bytes.
func (d *Driver) ReadFrame(frame int, out []byte) error {
	_, err := d.exchange(bus.OpReadFrame, 0, uint16(frame), out)
	if err != nil {
		return err
	}
	if glog.V(2) {
		glog.Infof("read frame %d from cartridge %d", frame, d.loaded)
	}
	return nil
}

// WriteFrame requires cartridge to already be loaded; it writes in
// (exactly transport.FrameSize bytes) to frame.
func (d *Driver) WriteFrame(frame int, in []byte) error {
	_, err := d.exchange(bus.OpWriteFrame, 0, uint16(frame), in)
	if err != nil {
		return err
	}
	if glog.V(2) {
		glog.Infof("wrote frame %d to cartridge %d", frame, d.loaded)
	}
	return nil
}

// MaxCartridges returns the device's cartridge count.
func (d *Driver) MaxCartridges() int { return d.maxCartridges }

// MaxFramesPerCartridge returns the device's per-cartridge frame count.
func (d *Driver) MaxFramesPerCartridge() int { return d.maxFramesPerCartridge }
