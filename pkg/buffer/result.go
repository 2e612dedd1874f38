package buffer

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrInvalidSize is returned by constructors given a non-positive size.
	ErrInvalidSize = errors.New("buffer: invalid size")

	// ErrTimeout is returned by the io adapters when a lock could not be taken
	// before the deadline. It matches os.ErrDeadlineExceeded.
	ErrTimeout = fmt.Errorf("buffer: lock timeout: %w", os.ErrDeadlineExceeded)
)

// Status describes how a read or write ended.
type Status int

const (
	// OK means the operation stopped for a reason other than a lock timeout:
	// the request was satisfied or there was nothing more to read.
	OK Status = iota
	// TimedOut means a section lock could not be taken within the remaining
	// time budget. N bytes were transferred before that.
	TimedOut
	// Overrun means the writer replaced the chunk the cursor was positioned
	// in. Only a Hooky reports it.
	Overrun
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case TimedOut:
		return "timed out"
	case Overrun:
		return "overrun"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a read or write: the number of bytes transferred
// and the reason the operation stopped. A short count is not an error.
type Result struct {
	N      int
	Status Status
}

// TimedOut reports whether the operation stopped on a lock timeout.
func (r Result) TimedOut() bool {
	return r.Status == TimedOut
}

func (r Result) String() string {
	return fmt.Sprintf("%d bytes, %v", r.N, r.Status)
}
