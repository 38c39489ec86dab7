// Package errors re-exports github.com/pkg/errors with rich (stacktrace
// capable) error values, and adds OpError to pair a driver-level error
// kind with its underlying cause.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	New    = errors.New
	Errorf = errors.Errorf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
)

// github.com/pkg/errors can be formatted with rich information, including stacktrace, see:
// 	https://godoc.org/github.com/pkg/errors#hdr-Formatted_printing_of_errors
type richError interface {
	error
	fmt.Formatter
}

// RichError wraps as necessary an object with rich (stacktrace esp.) information.
func RichError(err interface{}) error {
	if err == nil {
		return nil
	}
	switch err := err.(type) {
	case richError:
		return err
	case error:
		return errors.Wrap(err, err.Error()).(richError)
	default:
		return errors.New(fmt.Sprintf("%s", err)).(richError)
	}
}

// Kind enumerates the driver-level error kinds from the filesystem API
// error model. It never substitutes for the underlying cause; it
// classifies it so callers can switch on it without string matching.
type Kind int

const (
	// KindNone is the zero value, never used on a real error.
	KindNone Kind = iota
	KindInvalidHandle
	KindHandleNotOpen
	KindAlreadyOpen
	KindSeekOutOfRange
	KindAllocatorExhausted
	KindDeviceError
	KindCacheNotInitialized
	KindOutOfMemory
)

func (k Kind) String() string {
	switch k {
	case KindInvalidHandle:
		return "InvalidHandle"
	case KindHandleNotOpen:
		return "HandleNotOpen"
	case KindAlreadyOpen:
		return "AlreadyOpen"
	case KindSeekOutOfRange:
		return "SeekOutOfRange"
	case KindAllocatorExhausted:
		return "AllocatorExhausted"
	case KindDeviceError:
		return "DeviceError"
	case KindCacheNotInitialized:
		return "CacheNotInitialized"
	case KindOutOfMemory:
		return "OutOfMemory"
	default:
		return "None"
	}
}

// OpError pairs a Kind with the op that raised it and the underlying cause.
type OpError struct {
	Op    string
	Kind  Kind
	Cause error
}

func (e *OpError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Cause)
}

func (e *OpError) Unwrap() error { return e.Cause }

// Op builds an *OpError, wrapping cause with stack info via RichError
// when non-nil.
func Op(op string, kind Kind, cause error) *OpError {
	if cause != nil {
		cause = RichError(cause)
	}
	return &OpError{Op: op, Kind: kind, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *OpError, else KindNone.
func KindOf(err error) Kind {
	for err != nil {
		if oe, ok := err.(*OpError); ok {
			return oe.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindNone
}
