package buffer

import (
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

// Hooky is an append-only sequence of variable-size chunks kept in a bounded
// ring of slots. Chunk number s (counting appends from 0) lives in slot
// s % HookCount, so once the ring is full each append replaces the oldest
// chunk.
//
// Every slot has its own reader-writer lock. Append holds the slot
// exclusively while installing the chunk; readers move from chunk to chunk
// with the same continuous-read handoff as Circular, so a reader crossing a
// chunk boundary always holds one of the two slots.
//
// Only one goroutine may call Append. Each HookCursor must be used by one
// goroutine at a time.
//
// A reader that falls a full ring behind the writer finds its chunk
// replaced. Read detects this from the sequence stored with each slot and
// reports Overrun; sizing HookCount so that readers keep up is the caller's
// job.
type Hooky struct {
	slots []slot
	locks *sectionlock.Table

	// appended is the number of chunks appended so far, which is also the
	// sequence number of the next chunk.
	appended atomic.Uint64

	rec Recorder
	log *slog.Logger
}

type slot struct {
	chunk []byte
	seq   uint64
}

// NewHooky creates a chunk ring with hookCount slots.
func NewHooky(hookCount int, opts ...Option) (*Hooky, error) {
	if hookCount <= 0 {
		return nil, fmt.Errorf("%w: hook count %d", ErrInvalidSize, hookCount)
	}
	o := newOptions(opts)
	return &Hooky{
		slots: make([]slot, hookCount),
		locks: sectionlock.New(hookCount, sectionlock.WithObserver(o.observer)),
		rec:   o.recorder,
		log:   o.logger,
	}, nil
}

// HookCount returns the number of slots.
func (h *Hooky) HookCount() int { return len(h.slots) }

// Appended returns the number of chunks appended so far.
func (h *Hooky) Appended() uint64 { return h.appended.Load() }

// Oldest returns the sequence number of the oldest chunk still in the ring.
func (h *Hooky) Oldest() uint64 {
	a, n := h.appended.Load(), uint64(len(h.slots))
	if a > n {
		return a - n
	}
	return 0
}

// Append installs chunk in the next slot. It returns false if the slot's
// lock could not be taken within timeout, in which case nothing changes.
//
// The chunk is stored by reference; the caller must not modify it
// afterwards.
func (h *Hooky) Append(chunk []byte, timeout time.Duration) bool {
	seq := h.appended.Load()
	k := int(seq % uint64(len(h.slots)))
	if !h.locks.TryWriterLock(k, timeout) {
		h.log.Debug("buffer: append timed out", "slot", k, "seq", seq, "size", len(chunk))
		h.rec.RecordAppend(len(chunk), false)
		return false
	}
	h.slots[k] = slot{chunk: chunk, seq: seq}
	h.locks.ReleaseWriterLock(k)
	h.appended.Store(seq + 1)
	h.rec.RecordAppend(len(chunk), true)
	return true
}

// Read copies up to len(p) bytes starting at the cursor's position and
// advances the cursor past them, moving on to the following chunks as each
// one is exhausted.
//
// Read stops with status OK when the cursor reaches the end of the last
// appended chunk; it never waits for new chunks. It stops with TimedOut when
// a slot lock cannot be taken in the time left of timeout, and with Overrun
// when the chunk under the cursor has been replaced by a newer one. After an
// overrun the cursor is left where it was; Seek it forward, usually to
// Oldest.
//
// preserve has the same meaning as for Circular.Read.
func (h *Hooky) Read(cur *HookCursor, p []byte, timeout time.Duration, preserve bool) Result {
	h.checkCursor(cur)
	var r Result
	if len(p) > 0 {
		r = h.read(cur, p, newDeadline(timeout))
	}
	if !preserve {
		cur.release()
	}
	h.rec.RecordRead(r, len(p))
	return r
}

func (h *Hooky) read(cur *HookCursor, p []byte, dl deadline) Result {
	var r Result
	for r.N < len(p) && cur.seq < h.appended.Load() {
		k := int(cur.seq % uint64(len(h.slots)))
		if !h.locks.ContinuousRead(cur.held, k, dl.remaining()) {
			h.log.Debug("buffer: read timed out", "slot", k, "seq", cur.seq, "read", r.N)
			r.Status = TimedOut
			return r
		}
		cur.held = k

		s := h.slots[k]
		if s.seq != cur.seq {
			h.log.Debug("buffer: reader overrun", "seq", cur.seq, "replaced_by", s.seq)
			r.Status = Overrun
			return r
		}
		n := copy(p[r.N:], s.chunk[cur.offset:])
		r.N += n
		cur.offset += n
		if cur.offset == len(s.chunk) {
			cur.seq++
			cur.offset = 0
		}
	}
	return r
}

// NewCursor returns a cursor positioned at the start of chunk seq. seq may
// lie ahead of Appended, in which case reads return nothing until the chunk
// is appended.
func (h *Hooky) NewCursor(seq uint64) *HookCursor {
	return &HookCursor{owner: h, seq: seq, held: sectionlock.None}
}

func (h *Hooky) checkCursor(cur *HookCursor) {
	if cur == nil || cur.owner != h {
		panic("buffer: cursor does not belong to this buffer")
	}
}

// HookCursor is a reader's position in a Hooky: a chunk sequence number and
// an offset inside that chunk.
type HookCursor struct {
	owner  *Hooky
	seq    uint64
	offset int
	held   int
}

// Seq returns the sequence number of the chunk the cursor is in.
func (c *HookCursor) Seq() uint64 { return c.seq }

// Offset returns the offset of the next byte to read within the chunk.
func (c *HookCursor) Offset() int { return c.offset }

// Held returns the slot whose read lock the cursor keeps, or
// sectionlock.None.
func (c *HookCursor) Held() int { return c.held }

// Seek moves the cursor to the start of chunk seq.
func (c *HookCursor) Seek(seq uint64) {
	c.seq = seq
	c.offset = 0
}

// Close releases the lock kept by a preserved read. It is idempotent.
func (c *HookCursor) Close() {
	c.release()
}

func (c *HookCursor) release() {
	if c.held == sectionlock.None {
		return
	}
	c.owner.locks.ReleaseReaderLock(c.held)
	c.held = sectionlock.None
}
