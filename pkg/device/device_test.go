package device

import (
	"testing"

	"github.com/complyue/hramfs/pkg/bus"
)

type fakeExchanger struct {
	calls []bus.Request
	ret   uint8

	lastWriteBuf []byte
	readFill     byte
}

func (f *fakeExchanger) Exchange(requestWord uint64, buf []byte) (uint64, error) {
	req := bus.Decode(requestWord)
	f.calls = append(f.calls, bus.Request{Key1: req.Key1, Cartridge1: req.Cartridge1, Frame1: req.Frame1})
	switch req.Key1 {
	case bus.OpReadFrame:
		for i := range buf {
			buf[i] = f.readFill
		}
	case bus.OpWriteFrame:
		f.lastWriteBuf = append([]byte(nil), buf...)
	}
	return bus.EncodeResponse(req.Key1, req.Cartridge1, req.Frame1, f.ret), nil
}

func TestPowerOnLoadsAndZeroesEveryCartridge(t *testing.T) {
	fx := &fakeExchanger{}
	d := New(fx, 3, 16)
	if err := d.PowerOn(); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	loaded, ok := d.LoadedCartridge()
	if !ok || loaded != 2 {
		t.Fatalf("expected last loaded cartridge 2, got %d (valid=%v)", loaded, ok)
	}

	var loads, zeroes int
	for _, c := range fx.calls {
		switch c.Key1 {
		case bus.OpLoadCartridge:
			loads++
		case bus.OpZeroCurrent:
			zeroes++
		}
	}
	if loads != 3 || zeroes != 3 {
		t.Fatalf("expected 3 loads and 3 zeroes, got %d/%d", loads, zeroes)
	}
}

func TestLoadSkipsWhenAlreadyLoaded(t *testing.T) {
	fx := &fakeExchanger{}
	d := New(fx, 4, 16)
	if err := d.Load(2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	callsBefore := len(fx.calls)
	if err := d.Load(2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fx.calls) != callsBefore {
		t.Fatalf("expected no-op reload to skip issuing a bus request")
	}
}

func TestNonZeroRetIsFatal(t *testing.T) {
	fx := &fakeExchanger{ret: 1}
	d := New(fx, 1, 16)
	if err := d.Load(0); err == nil {
		t.Fatalf("expected error on non-zero device ret")
	}
}

func TestReadWriteFrame(t *testing.T) {
	fx := &fakeExchanger{readFill: 0x42}
	d := New(fx, 1, 16)
	if err := d.Load(0); err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := make([]byte, 1024)
	if err := d.ReadFrame(3, out); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	for _, b := range out {
		if b != 0x42 {
			t.Fatalf("expected filled buffer, got %x", b)
		}
	}

	in := make([]byte, 1024)
	for i := range in {
		in[i] = byte(i)
	}
	if err := d.WriteFrame(3, in); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if len(fx.lastWriteBuf) != 1024 || fx.lastWriteBuf[10] != 10 {
		t.Fatalf("write payload not relayed correctly")
	}
}
