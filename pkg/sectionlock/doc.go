// Package sectionlock provides a table of independent reader-writer locks
// addressed by section index.
//
// Each section is guarded by its own lock, so a writer moving through the
// sections of a buffer only ever contends with readers of the one section it
// is writing. All acquisitions are bounded by a timeout:
//
//   - a negative timeout (Infinite) waits until the lock is available
//   - a zero timeout attempts the lock without waiting
//   - a positive timeout waits at most that long
//
// Failed acquisitions return false; they are never reported as errors.
// Releasing a lock that is not held is a programming error and panics.
//
// ContinuousRead is the operation readers use to move from one section to
// the next. It acquires the new section before it releases the old one, so a
// moving reader always holds at least one of the sections it needs:
//
//	tbl := sectionlock.New(8)
//
//	held := sectionlock.None
//	for k := range 8 {
//	    if !tbl.ContinuousRead(held, k, 10*time.Millisecond) {
//	        break
//	    }
//	    held = k
//	    // copy data out of section k
//	}
//	if held != sectionlock.None {
//	    tbl.ReleaseReaderLock(held)
//	}
package sectionlock
