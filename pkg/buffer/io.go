package buffer

import (
	"fmt"
	"io"
	"time"
)

var _ io.Writer = (*Writer)(nil)

// Writer adapts Circular.Write to io.Writer. Every Write call gets the full
// timeout.
type Writer struct {
	c       *Circular
	timeout time.Duration
}

// Writer returns an io.Writer that writes into c with the given per-call
// timeout.
func (c *Circular) Writer(timeout time.Duration) *Writer {
	return &Writer{c: c, timeout: timeout}
}

// Write writes p into the buffer. A write cut short by a lock timeout
// returns the bytes written and an error matching ErrTimeout.
func (w *Writer) Write(p []byte) (int, error) {
	r := w.c.Write(p, w.timeout)
	if r.TimedOut() {
		return r.N, fmt.Errorf("%w: wrote %d of %d bytes", ErrTimeout, r.N, len(p))
	}
	return r.N, nil
}
