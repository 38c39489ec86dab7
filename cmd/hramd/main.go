// Command hramd runs a simulated HRAM device server: an in-memory grid
// of cartridges and frames, driven over TCP by the hramfs bus protocol.
// It is deliberately simple — no persistence, and each accepted
// connection is served in its own goroutine against its own fresh
// device — standing in for the real hardware that a hramfs driver
// would otherwise talk to.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/complyue/hramfs/pkg/bus"
	"github.com/golang/glog"
)

func init() {
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); err != nil {
			log.Printf("Failed changing glog default destination, err: %s", err)
		}
	}
}

var (
	tcpAddr       string
	maxCartridges int
	maxFrames     int
)

func init() {
	flag.StringVar(&tcpAddr, "tcp", "127.0.0.1:4040", "`addr` specifies the TCP address for the HRAM device service")
	flag.IntVar(&maxCartridges, "cartridges", 4, "number of simulated cartridges")
	flag.IntVar(&maxFrames, "frames", 64, "number of frames per simulated cartridge")
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
This is the hramd HRAM device simulator, all options:

`)
		flag.PrintDefaults()
	}
	flag.Parse()

	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		fmt.Printf("Error listening on [%s]: %+v\n", tcpAddr, err)
		os.Exit(1)
	}
	defer ln.Close()

	glog.Infof("hramd listening on %s (%d cartridges x %d frames)", ln.Addr(), maxCartridges, maxFrames)

	for {
		conn, err := ln.Accept()
		if err != nil {
			glog.Errorf("accept error: %+v", err)
			continue
		}
		go serveConn(conn)
	}
}

// device is the in-memory state backing one client connection. Each
// new TCP connection gets a fresh device, mirroring how each mount
// session of a real HRAM unit starts from a freshly powered-off state.
type device struct {
	cartridges [][][1024]byte
	loaded     int
}

func newDevice(cartridges, frames int) *device {
	d := &device{cartridges: make([][][1024]byte, cartridges)}
	for i := range d.cartridges {
		d.cartridges[i] = make([][1024]byte, frames)
	}
	return d
}

func serveConn(conn net.Conn) {
	defer conn.Close()
	d := newDevice(maxCartridges, maxFrames)

	for {
		req, err := readWord(conn)
		if err != nil {
			if err != io.EOF {
				glog.Warningf("read request failed: %+v", err)
			}
			return
		}
		decoded := bus.Decode(req)

		var ret uint8
		switch decoded.Key1 {
		case bus.OpInit:
			// no-op: state already fresh for this connection

		case bus.OpLoadCartridge:
			if int(decoded.Cartridge1) >= len(d.cartridges) {
				ret = 1
			} else {
				d.loaded = int(decoded.Cartridge1)
			}

		case bus.OpZeroCurrent:
			for f := range d.cartridges[d.loaded] {
				d.cartridges[d.loaded][f] = [1024]byte{}
			}

		case bus.OpReadFrame:
			if int(decoded.Frame1) >= len(d.cartridges[d.loaded]) {
				ret = 1
			}

		case bus.OpWriteFrame:
			if int(decoded.Frame1) >= len(d.cartridges[d.loaded]) {
				ret = 1
			}

		case bus.OpShutdown:
			// handled after the response is sent, below

		default:
			ret = 1
		}

		// frame payloads move whenever the opcode calls for one, even on
		// ret=1, so the stream stays in step with the client transport.
		if decoded.Key1 == bus.OpReadFrame {
			if err := writeWord(conn, bus.EncodeResponse(decoded.Key1, decoded.Cartridge1, decoded.Frame1, ret)); err != nil {
				glog.Warningf("write response failed: %+v", err)
				return
			}
			var frame [1024]byte
			if ret == 0 {
				frame = d.cartridges[d.loaded][decoded.Frame1]
			}
			if _, err := conn.Write(frame[:]); err != nil {
				glog.Warningf("write frame payload failed: %+v", err)
				return
			}
			continue
		}

		if decoded.Key1 == bus.OpWriteFrame {
			var frame [1024]byte
			if _, err := io.ReadFull(conn, frame[:]); err != nil {
				glog.Warningf("read frame payload failed: %+v", err)
				return
			}
			if ret == 0 {
				d.cartridges[d.loaded][decoded.Frame1] = frame
			}
		}

		if err := writeWord(conn, bus.EncodeResponse(decoded.Key1, decoded.Cartridge1, decoded.Frame1, ret)); err != nil {
			glog.Warningf("write response failed: %+v", err)
			return
		}

		if decoded.Key1 == bus.OpShutdown {
			return
		}
	}
}

func readWord(r io.Reader) (uint64, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(hdr[:]), nil
}

func writeWord(w io.Writer, word uint64) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], word)
	_, err := w.Write(hdr[:])
	return err
}
