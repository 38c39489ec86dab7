// Package transport relays HRAM bus words and frame payloads to a
// remote device server over TCP, lazily dialing on first use and
// re-arming after a shutdown exchange.
package transport

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/complyue/hramfs/pkg/bus"
	"github.com/complyue/hramfs/pkg/errors"

	"github.com/golang/glog"
)

// FrameSize is the device's atomic transfer unit, in bytes.
const FrameSize = 1024

// DefaultAddr is the literal default HRAM device server address, used
// when a caller does not supply one explicitly.
const DefaultAddr = "127.0.0.1:4040"

// TCP is a lazily-connected transport over a single TCP socket. The
// zero value is not usable; construct with NewTCP. A TCP value is not
// safe for concurrent use by multiple goroutines — the driver above it
// is single-threaded per spec.
type TCP struct {
	addr string
	dial func(network, addr string) (net.Conn, error)

	mu   sync.Mutex
	conn net.Conn
}

// NewTCP returns a transport that will dial addr on first Exchange. An
// empty addr falls back to DefaultAddr.
func NewTCP(addr string) *TCP {
	if addr == "" {
		addr = DefaultAddr
	}
	return &TCP{addr: addr, dial: net.Dial}
}

func (t *TCP) ensureConn() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	conn, err := t.dial("tcp", t.addr)
	if err != nil {
		return nil, errors.Op("transport.dial", errors.KindDeviceError, err)
	}
	t.conn = conn
	return conn, nil
}

func (t *TCP) closeConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

// Exchange sends requestWord, optionally writing or reading a
// FrameSize-byte payload in buf depending on the opcode encoded in
// requestWord, and returns the decoded response word. Any short read,
// short write, dial failure, or I/O error is a hard failure: the
// connection is torn down so the next Exchange re-dials.
//
//   - OpReadFrame:  write request, read response, read FrameSize bytes into buf.
//   - OpWriteFrame: write request, write FrameSize bytes from buf, read response.
//   - OpShutdown:   write request, read response, then close the socket.
//   - otherwise:    write request, read response; buf is unused.
func (t *TCP) Exchange(requestWord uint64, buf []byte) (responseWord uint64, err error) {
	conn, err := t.ensureConn()
	if err != nil {
		return 0, err
	}

	req := bus.Decode(requestWord)

	fail := func(op string, cause error) (uint64, error) {
		t.closeConn()
		return 0, errors.Op(op, errors.KindDeviceError, cause)
	}

	if err := writeWord(conn, requestWord); err != nil {
		return fail("transport.writeRequest", err)
	}

	switch req.Key1 {
	case bus.OpWriteFrame:
		if len(buf) != FrameSize {
			return fail("transport.writeFrame", errors.Errorf("write buffer must be %d bytes, got %d", FrameSize, len(buf)))
		}
		if err := writeFull(conn, buf); err != nil {
			return fail("transport.writeFrame", err)
		}
		responseWord, err = readWord(conn)
		if err != nil {
			return fail("transport.readResponse", err)
		}

	case bus.OpReadFrame:
		responseWord, err = readWord(conn)
		if err != nil {
			return fail("transport.readResponse", err)
		}
		if len(buf) != FrameSize {
			return fail("transport.readFrame", errors.Errorf("read buffer must be %d bytes, got %d", FrameSize, len(buf)))
		}
		if _, err := io.ReadFull(conn, buf); err != nil {
			return fail("transport.readFrame", err)
		}

	case bus.OpShutdown:
		responseWord, err = readWord(conn)
		if err != nil {
			return fail("transport.readResponse", err)
		}
		t.closeConn()

	default:
		responseWord, err = readWord(conn)
		if err != nil {
			return fail("transport.readResponse", err)
		}
	}

	if glog.V(2) {
		glog.Infof("bus exchange %s: req=%#016x resp=%#016x", req.Key1, requestWord, responseWord)
	}

	return responseWord, nil
}

func writeWord(w io.Writer, word uint64) error {
	var hdr [8]byte
	binary.BigEndian.PutUint64(hdr[:], word)
	return writeFull(w, hdr[:])
}

func readWord(r io.Reader) (uint64, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(hdr[:]), nil
}

func writeFull(w io.Writer, buf []byte) error {
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return errors.Errorf("short write: %d/%d bytes", n, len(buf))
	}
	return nil
}

// SetDeadline applies a read/write deadline to the underlying
// connection, if one is currently established. It is a no-op before
// the first Exchange call dials.
func (t *TCP) SetDeadline(d time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.SetDeadline(d)
}

// Close tears down the underlying connection without issuing a
// shutdown opcode; used on abnormal termination.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
