package buffer

import (
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

// Circular is a fixed-size circular byte buffer partitioned into equal
// blocks, each guarded by its own reader-writer lock.
//
// A single writer appends bytes with Write, moving forward through the
// blocks and holding each block exclusively only while copying into it. Any
// number of readers, each owning a Cursor, read with Read under shared block
// locks. Readers never consume data and never move the write pointer; two
// cursors may read the same block at the same time.
//
// Only one goroutine may call Write. Each Cursor must be used by one
// goroutine at a time.
//
// The buffer does not hold back the writer for slow readers. A reader that
// falls more than one full buffer behind the writer reads bytes that have
// already been overwritten; sizing the buffer for the readers' throughput is
// the caller's job.
type Circular struct {
	blockSize int
	data      []byte
	locks     *sectionlock.Table

	// written counts every byte ever written. The write pointer is written
	// modulo the buffer length; it only advances while the writer holds the
	// lock of the block it is writing into.
	written atomic.Uint64

	rec Recorder
	log *slog.Logger
}

// NewCircular creates a buffer of blockCount blocks of blockSize bytes.
func NewCircular(blockSize, blockCount int, opts ...Option) (*Circular, error) {
	if blockSize <= 0 || blockCount <= 0 {
		return nil, fmt.Errorf("%w: block size %d, block count %d", ErrInvalidSize, blockSize, blockCount)
	}
	o := newOptions(opts)
	return &Circular{
		blockSize: blockSize,
		data:      make([]byte, blockSize*blockCount),
		locks:     sectionlock.New(blockCount, sectionlock.WithObserver(o.observer)),
		rec:       o.recorder,
		log:       o.logger,
	}, nil
}

// BlockSize returns the size of one block in bytes.
func (c *Circular) BlockSize() int { return c.blockSize }

// BlockCount returns the number of blocks.
func (c *Circular) BlockCount() int { return c.locks.Len() }

// Len returns the buffer length in bytes.
func (c *Circular) Len() int { return len(c.data) }

// WritePointer returns the offset the next written byte will land at.
func (c *Circular) WritePointer() int {
	return int(c.written.Load() % uint64(len(c.data)))
}

// Written returns the total number of bytes written since the buffer was
// created.
func (c *Circular) Written() uint64 {
	return c.written.Load()
}

// Write copies data into the buffer at the write pointer, block by block,
// wrapping at the end of the buffer.
//
// Each block is locked exclusively while it is written, so no reader sees a
// half-written block. timeout is the wall-clock budget for the whole call;
// when a block cannot be locked in the time left, Write stops and returns
// the bytes written so far with status TimedOut. A negative timeout waits
// indefinitely.
func (c *Circular) Write(data []byte, timeout time.Duration) Result {
	dl := newDeadline(timeout)
	var r Result
	for r.N < len(data) {
		wr := c.WritePointer()
		k := wr / c.blockSize
		if !c.locks.TryWriterLock(k, dl.remaining()) {
			r.Status = TimedOut
			c.log.Debug("buffer: write timed out",
				"block", k,
				"written", r.N,
				"requested", len(data))
			break
		}
		n := copy(c.data[wr:(k+1)*c.blockSize], data[r.N:])
		c.written.Add(uint64(n))
		c.locks.ReleaseWriterLock(k)
		r.N += n
	}
	c.rec.RecordWrite(r, len(data))
	return r
}

// Read copies up to len(p) bytes starting at the cursor's offset and
// advances the cursor past them, wrapping at the end of the buffer.
//
// The block under the cursor is read-locked first; whenever the read crosses
// into the next block, that block's lock is acquired before the previous
// one is released. If a lock cannot be taken within the remaining share of
// timeout, Read stops and returns the bytes copied so far with status
// TimedOut.
//
// With preserve set, the lock of the last block read stays held by the
// cursor, so a reader that is about to read again does not have to take it
// afresh; Cursor.Close releases it. Without preserve every lock is released
// before Read returns.
//
// Read does not stop at the write pointer: use RecommendReadLength to size
// p to the data that is available.
func (c *Circular) Read(cur *Cursor, p []byte, timeout time.Duration, preserve bool) Result {
	c.checkCursor(cur)
	var r Result
	if len(p) > 0 {
		r = c.read(cur, p, newDeadline(timeout))
	}
	if !preserve {
		cur.release()
	}
	c.rec.RecordRead(r, len(p))
	return r
}

func (c *Circular) read(cur *Cursor, p []byte, dl deadline) Result {
	var r Result
	k := cur.rdPt / c.blockSize
	if !c.locks.ContinuousRead(cur.held, k, dl.remaining()) {
		c.log.Debug("buffer: read timed out", "block", k, "read", 0)
		r.Status = TimedOut
		return r
	}
	cur.held = k

	for {
		n := copy(p[r.N:], c.data[cur.rdPt:(k+1)*c.blockSize])
		r.N += n
		cur.rdPt += n
		if cur.rdPt == len(c.data) {
			cur.rdPt = 0
		}
		if r.N == len(p) {
			return r
		}

		next := cur.rdPt / c.blockSize
		if !c.locks.ContinuousRead(k, next, dl.remaining()) {
			c.log.Debug("buffer: read timed out", "block", next, "read", r.N)
			r.Status = TimedOut
			return r
		}
		k = next
		cur.held = k
	}
}

// TotalBytesToRead returns how many bytes lie between rdPt and the write
// pointer, that is, how much a reader at rdPt can read before it reaches
// data the writer has not produced yet.
func (c *Circular) TotalBytesToRead(rdPt int) int {
	c.checkOffset(rdPt)
	return c.distance(rdPt, c.WritePointer())
}

// RecommendReadPointer suggests where a new reader should start: aheadRate
// (clamped to [0, 1]) of the buffer ahead of the write pointer, wrapping.
// The reader then has that much of the buffer as a margin before the writer
// comes around to its position.
//
// With excludeWriterBlock, a result inside the block the writer occupies is
// moved out of it: to the start of the next block when it is at or after
// the write pointer, otherwise to the start of the previous block.
func (c *Circular) RecommendReadPointer(aheadRate float64, excludeWriterBlock bool) int {
	length := len(c.data)
	wr := c.WritePointer()
	ahead := int(clamp01(aheadRate) * float64(length))
	rd := (wr + ahead) % length

	wk := wr / c.blockSize
	if !excludeWriterBlock || c.BlockCount() == 1 || rd/c.blockSize != wk {
		return rd
	}
	if rd >= wr {
		return (wk + 1) % c.BlockCount() * c.blockSize
	}
	return (wk - 1 + c.BlockCount()) % c.BlockCount() * c.blockSize
}

// RecommendReadLength returns fullness (clamped to [0, 1]) of
// TotalBytesToRead(rdPt).
//
// With excludeWriterBlock the result never reaches into the block the
// writer occupies: it is clipped to the start of that block, and it is 0
// when rdPt is already inside it.
func (c *Circular) RecommendReadLength(rdPt int, fullness float64, excludeWriterBlock bool) int {
	c.checkOffset(rdPt)
	wr := c.WritePointer()
	n := int(clamp01(fullness) * float64(c.distance(rdPt, wr)))
	if !excludeWriterBlock {
		return n
	}

	wk := wr / c.blockSize
	if rdPt/c.blockSize == wk {
		return 0
	}
	return min(n, c.distance(rdPt, wk*c.blockSize))
}

// NewCursor returns a cursor positioned at rdPt. It panics if rdPt is not
// an offset in the buffer.
func (c *Circular) NewCursor(rdPt int) *Cursor {
	c.checkOffset(rdPt)
	return &Cursor{owner: c, rdPt: rdPt, held: sectionlock.None}
}

// distance is the number of bytes from offset a forward to offset b.
func (c *Circular) distance(a, b int) int {
	return (b - a + len(c.data)) % len(c.data)
}

func (c *Circular) checkOffset(off int) {
	if off < 0 || off >= len(c.data) {
		panic(fmt.Sprintf("buffer: offset %d out of range [0, %d)", off, len(c.data)))
	}
}

func (c *Circular) checkCursor(cur *Cursor) {
	if cur == nil || cur.owner != c {
		panic("buffer: cursor does not belong to this buffer")
	}
}
