// Package buffer provides byte buffers shared by one writer and many readers
// without a buffer-wide lock.
//
// Both buffer types divide their storage into sections, each guarded by its
// own lock from package sectionlock:
//
//   - Circular: a fixed ring of BlockSize*BlockCount bytes. The writer holds
//     one block exclusively at a time while copying into it; readers read
//     through their own Cursor under shared block locks.
//
//   - Hooky: a bounded ring of variable-size chunks. Each append replaces
//     the oldest chunk once the ring is full; readers walk the chunks in
//     append order through a HookCursor.
//
// A reader crossing from one section to the next takes the next section's
// lock before releasing the current one, so it is never left holding
// neither.
//
// Reads and writes take a timeout that bounds the whole call. A lock that
// cannot be taken in time ends the call early; the returned Result carries
// the byte count and the reason, and a short count is never an error.
// Releasing a lock that is not held, or using a cursor with the wrong
// buffer or at an offset outside it, panics.
//
// Neither buffer slows the writer down for readers. A reader that falls a
// whole ring behind reads overwritten data from a Circular and gets an
// Overrun status from a Hooky.
//
// Example usage:
//
//	buf, _ := buffer.NewCircular(4096, 8)
//	buf.Write(frame, 10*time.Millisecond)
//
//	cur := buf.NewCursor(buf.RecommendReadPointer(0.5, true))
//	defer cur.Close()
//	p := make([]byte, buf.RecommendReadLength(cur.Offset(), 1, true))
//	r := buf.Read(cur, p, 10*time.Millisecond, false)
//	consume(p[:r.N])
package buffer
