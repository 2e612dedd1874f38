package sectionlock

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

// None is the section index of a reader that holds no section.
const None = -1

// Infinite is the timeout that waits without a deadline.
const Infinite time.Duration = -1

// maxReaders is the weight of a section's semaphore. A reader acquires one
// unit and a writer acquires all of them.
const maxReaders = 1 << 30

// Mode is the kind of hold taken on a section.
type Mode int

const (
	// Read is a shared hold; any number of readers may hold a section.
	Read Mode = iota
	// Write is an exclusive hold.
	Write
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

type section struct {
	sem     *semaphore.Weighted
	readers atomic.Int32
	writer  atomic.Bool
}

// Table is a fixed set of reader-writer locks, one per section.
//
// A Table is safe for concurrent use. It does not track which goroutine
// holds a lock; callers are responsible for releasing exactly the holds they
// acquired.
type Table struct {
	sections []section
	observer Observer
}

// Option configures a Table.
type Option func(*Table)

// WithObserver installs an observer that is notified of every acquisition,
// timeout and release.
func WithObserver(o Observer) Option {
	return func(t *Table) {
		if o != nil {
			t.observer = o
		}
	}
}

// New creates a table of n sections. It panics if n is not positive.
func New(n int, opts ...Option) *Table {
	if n <= 0 {
		panic(fmt.Sprintf("sectionlock: invalid section count %d", n))
	}
	t := &Table{
		sections: make([]section, n),
		observer: nopObserver{},
	}
	for i := range t.sections {
		t.sections[i].sem = semaphore.NewWeighted(maxReaders)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len returns the number of sections.
func (t *Table) Len() int {
	return len(t.sections)
}

// TryWriterLock attempts to lock the section exclusively within timeout.
// It returns false, with no side effects, if the lock could not be taken in
// time.
func (t *Table) TryWriterLock(k int, timeout time.Duration) bool {
	return t.acquire(k, Write, timeout)
}

// ReleaseWriterLock releases an exclusive lock. It panics if the section is
// not write-locked.
func (t *Table) ReleaseWriterLock(k int) {
	s := t.section(k)
	if !s.writer.Load() {
		panic(fmt.Sprintf("sectionlock: release of unheld writer lock on section %d", k))
	}
	t.observer.LockReleased(k, Write)
	s.writer.Store(false)
	s.sem.Release(maxReaders)
}

// TryReaderLock attempts to take a shared lock on the section within
// timeout. It is equivalent to ContinuousRead(None, k, timeout).
func (t *Table) TryReaderLock(k int, timeout time.Duration) bool {
	return t.ContinuousRead(None, k, timeout)
}

// ContinuousRead moves a reader from section old to section next.
//
// If old equals next the call does nothing and returns true. Otherwise a
// shared lock on next is acquired within timeout and, only once it is held,
// the shared lock on old is released (unless old is None). If next cannot be
// locked in time the hold on old is left in place and false is returned.
func (t *Table) ContinuousRead(old, next int, timeout time.Duration) bool {
	t.section(next)
	if old == next {
		return true
	}
	if !t.acquire(next, Read, timeout) {
		return false
	}
	if old != None {
		t.ReleaseReaderLock(old)
	}
	return true
}

// ReleaseReaderLock releases a shared lock. It panics if the section has no
// readers.
func (t *Table) ReleaseReaderLock(k int) {
	s := t.section(k)
	if s.readers.Dec() < 0 {
		s.readers.Inc()
		panic(fmt.Sprintf("sectionlock: release of unheld reader lock on section %d", k))
	}
	t.observer.LockReleased(k, Read)
	s.sem.Release(1)
}

func (t *Table) section(k int) *section {
	if k < 0 || k >= len(t.sections) {
		panic(fmt.Sprintf("sectionlock: section %d out of range [0, %d)", k, len(t.sections)))
	}
	return &t.sections[k]
}

func (t *Table) acquire(k int, mode Mode, timeout time.Duration) bool {
	s := t.section(k)
	weight := int64(1)
	if mode == Write {
		weight = maxReaders
	}

	start := time.Now()
	var ok bool
	switch {
	case timeout == 0:
		ok = s.sem.TryAcquire(weight)
	case timeout < 0:
		ok = s.sem.Acquire(context.Background(), weight) == nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		ok = s.sem.Acquire(ctx, weight) == nil
		cancel()
	}
	wait := time.Since(start)

	if !ok {
		t.observer.LockTimedOut(k, mode, wait)
		return false
	}
	if mode == Write {
		s.writer.Store(true)
	} else {
		s.readers.Inc()
	}
	t.observer.LockAcquired(k, mode, wait)
	return true
}
