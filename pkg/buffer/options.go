package buffer

import (
	"log/slog"
	"time"

	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

// Infinite is the timeout that waits for locks without a deadline.
const Infinite = sectionlock.Infinite

// Recorder receives the outcome of every buffer operation. Implementations
// must be safe for concurrent use; the writer and all readers call it.
type Recorder interface {
	RecordWrite(r Result, requested int)
	RecordRead(r Result, requested int)
	RecordAppend(size int, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordWrite(Result, int) {}
func (nopRecorder) RecordRead(Result, int)  {}
func (nopRecorder) RecordAppend(int, bool)  {}

type options struct {
	logger   *slog.Logger
	recorder Recorder
	observer sectionlock.Observer
}

// Option configures a Circular or a Hooky.
type Option func(*options)

// WithLogger sets the logger used for debug events. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the recorder notified of reads, writes and appends.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithLockObserver installs an observer on the buffer's section locks.
func WithLockObserver(obs sectionlock.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// deadline is the wall-clock budget of one read or write, shared by every
// lock acquisition the call makes.
type deadline struct {
	infinite bool
	at       time.Time
}

func newDeadline(timeout time.Duration) deadline {
	if timeout < 0 {
		return deadline{infinite: true}
	}
	return deadline{at: time.Now().Add(timeout)}
}

// remaining returns the timeout for the next acquisition. Once the budget is
// spent it is zero, which makes the lock table fail fast.
func (d deadline) remaining() time.Duration {
	if d.infinite {
		return sectionlock.Infinite
	}
	if r := time.Until(d.at); r > 0 {
		return r
	}
	return 0
}

func clamp01(f float64) float64 {
	switch {
	case f < 0 || f != f:
		return 0
	case f > 1:
		return 1
	}
	return f
}
