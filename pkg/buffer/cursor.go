package buffer

import "github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"

// Cursor is a reader's position in a Circular. It is created by
// Circular.NewCursor and can only be used with that buffer.
type Cursor struct {
	owner *Circular
	rdPt  int
	held  int
}

// Offset returns the offset of the next byte the cursor will read.
func (c *Cursor) Offset() int { return c.rdPt }

// Held returns the block whose read lock the cursor keeps from a preserved
// read, or sectionlock.None.
func (c *Cursor) Held() int { return c.held }

// Seek moves the cursor to rdPt. A preserved lock stays held until the next
// Read hands it off or Close releases it.
func (c *Cursor) Seek(rdPt int) {
	c.owner.checkOffset(rdPt)
	c.rdPt = rdPt
}

// Close releases the lock kept by a preserved read. It is safe to call more
// than once and the cursor remains usable.
func (c *Cursor) Close() {
	c.release()
}

func (c *Cursor) release() {
	if c.held == sectionlock.None {
		return
	}
	c.owner.locks.ReleaseReaderLock(c.held)
	c.held = sectionlock.None
}
