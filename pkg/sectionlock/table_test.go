package sectionlock_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// holdRecorder tracks the hold intervals reported by a Table and records
// any overlap that breaks reader-writer exclusion.
type holdRecorder struct {
	mu         sync.Mutex
	readers    map[int]int
	writers    map[int]int
	violations []string
	reads      []readEvent
	timeouts   int
}

type readEvent struct {
	section  int
	acquired bool
}

func newHoldRecorder() *holdRecorder {
	return &holdRecorder{
		readers: make(map[int]int),
		writers: make(map[int]int),
	}
}

func (r *holdRecorder) LockAcquired(k int, mode sectionlock.Mode, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch mode {
	case sectionlock.Write:
		if r.writers[k] > 0 || r.readers[k] > 0 {
			r.violations = append(r.violations, fmt.Sprintf("write on %d with writers=%d readers=%d", k, r.writers[k], r.readers[k]))
		}
		r.writers[k]++
	case sectionlock.Read:
		if r.writers[k] > 0 {
			r.violations = append(r.violations, fmt.Sprintf("read on %d while write-held", k))
		}
		r.readers[k]++
		r.reads = append(r.reads, readEvent{section: k, acquired: true})
	}
}

func (r *holdRecorder) LockTimedOut(int, sectionlock.Mode, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts++
}

func (r *holdRecorder) LockReleased(k int, mode sectionlock.Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch mode {
	case sectionlock.Write:
		r.writers[k]--
	case sectionlock.Read:
		r.readers[k]--
		r.reads = append(r.reads, readEvent{section: k})
	}
}

func TestTable(t *testing.T) {
	t.Run("writer excludes readers", func(t *testing.T) {
		tbl := sectionlock.New(4)
		require.True(t, tbl.TryWriterLock(1, 0))
		assert.False(t, tbl.TryReaderLock(1, 10*time.Millisecond))
		assert.False(t, tbl.TryWriterLock(1, 0))
		assert.True(t, tbl.TryReaderLock(2, 0), "other sections stay free")
		tbl.ReleaseReaderLock(2)
		tbl.ReleaseWriterLock(1)
		assert.True(t, tbl.TryReaderLock(1, 0))
		tbl.ReleaseReaderLock(1)
	})

	t.Run("readers share", func(t *testing.T) {
		tbl := sectionlock.New(1)
		for range 5 {
			require.True(t, tbl.TryReaderLock(0, 0))
		}
		assert.False(t, tbl.TryWriterLock(0, 5*time.Millisecond))
		for range 5 {
			tbl.ReleaseReaderLock(0)
		}
		assert.True(t, tbl.TryWriterLock(0, 0))
		tbl.ReleaseWriterLock(0)
	})

	t.Run("infinite waits for release", func(t *testing.T) {
		tbl := sectionlock.New(2)
		require.True(t, tbl.TryWriterLock(0, 0))
		done := make(chan struct{})
		go func() {
			defer close(done)
			time.Sleep(20 * time.Millisecond)
			tbl.ReleaseWriterLock(0)
		}()
		assert.True(t, tbl.TryReaderLock(0, sectionlock.Infinite))
		<-done
		tbl.ReleaseReaderLock(0)
	})

	t.Run("len", func(t *testing.T) {
		assert.Equal(t, 7, sectionlock.New(7).Len())
	})
}

func TestContinuousRead(t *testing.T) {
	t.Run("same section is a no-op", func(t *testing.T) {
		rec := newHoldRecorder()
		tbl := sectionlock.New(3, sectionlock.WithObserver(rec))
		require.True(t, tbl.TryReaderLock(1, 0))
		assert.True(t, tbl.ContinuousRead(1, 1, 0))
		assert.Len(t, rec.reads, 1)
		tbl.ReleaseReaderLock(1)
	})

	t.Run("acquires new before releasing old", func(t *testing.T) {
		rec := newHoldRecorder()
		tbl := sectionlock.New(3, sectionlock.WithObserver(rec))
		require.True(t, tbl.ContinuousRead(sectionlock.None, 0, 0))
		require.True(t, tbl.ContinuousRead(0, 1, 0))
		tbl.ReleaseReaderLock(1)

		assert.Equal(t, []readEvent{
			{section: 0, acquired: true},
			{section: 1, acquired: true},
			{section: 0},
			{section: 1},
		}, rec.reads)
	})

	t.Run("timeout keeps old section", func(t *testing.T) {
		tbl := sectionlock.New(2)
		require.True(t, tbl.TryWriterLock(1, 0))
		require.True(t, tbl.TryReaderLock(0, 0))

		assert.False(t, tbl.ContinuousRead(0, 1, 10*time.Millisecond))
		assert.False(t, tbl.TryWriterLock(0, 0), "section 0 must still be read-held")

		tbl.ReleaseWriterLock(1)
		assert.True(t, tbl.ContinuousRead(0, 1, 0))
		assert.True(t, tbl.TryWriterLock(0, 0), "section 0 released after handoff")
		tbl.ReleaseWriterLock(0)
		tbl.ReleaseReaderLock(1)
	})
}

func TestMisusePanics(t *testing.T) {
	tbl := sectionlock.New(2)
	assert.Panics(t, func() { tbl.ReleaseWriterLock(0) })
	assert.Panics(t, func() { tbl.ReleaseReaderLock(1) })
	assert.Panics(t, func() { tbl.TryReaderLock(2, 0) })
	assert.Panics(t, func() { tbl.TryWriterLock(-1, 0) })
	assert.Panics(t, func() { tbl.ContinuousRead(sectionlock.None, sectionlock.None, 0) })
	assert.Panics(t, func() { sectionlock.New(0) })

	// A failed release must not corrupt the hold count.
	require.True(t, tbl.TryWriterLock(1, 0))
	tbl.ReleaseWriterLock(1)
}

func TestTimeoutRespected(t *testing.T) {
	const timeout = 30 * time.Millisecond
	tbl := sectionlock.New(4)
	for k := range tbl.Len() {
		require.True(t, tbl.TryWriterLock(k, 0))
	}
	defer func() {
		for k := range tbl.Len() {
			tbl.ReleaseWriterLock(k)
		}
	}()

	for k := range tbl.Len() {
		start := time.Now()
		ok := tbl.TryReaderLock(k, timeout)
		elapsed := time.Since(start)
		assert.False(t, ok)
		assert.Less(t, elapsed, timeout+500*time.Millisecond)
	}

	start := time.Now()
	assert.False(t, tbl.TryWriterLock(0, 0))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "zero timeout must not wait")
}

func TestMutualExclusion(t *testing.T) {
	const (
		sections = 4
		workers  = 8
		rounds   = 500
	)
	rec := newHoldRecorder()
	tbl := sectionlock.New(sections, sectionlock.WithObserver(rec))

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(w), 7))
			for range rounds {
				k := rng.IntN(sections)
				if w%3 == 0 {
					if tbl.TryWriterLock(k, time.Millisecond) {
						tbl.ReleaseWriterLock(k)
					}
					continue
				}
				if tbl.TryReaderLock(k, time.Millisecond) {
					tbl.ReleaseReaderLock(k)
				}
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, rec.violations)
	for k := range sections {
		assert.Zero(t, rec.readers[k], "section %d readers", k)
		assert.Zero(t, rec.writers[k], "section %d writers", k)
	}
}

func TestContinuousReadGapFreedom(t *testing.T) {
	const sections = 6
	rec := newHoldRecorder()
	tbl := sectionlock.New(sections, sectionlock.WithObserver(rec))

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for k := 0; ; k = (k + 1) % sections {
			select {
			case <-stop:
				return
			default:
			}
			if tbl.TryWriterLock(k, time.Millisecond) {
				tbl.ReleaseWriterLock(k)
			}
		}
	}()

	held := sectionlock.None
	for i := range 5 * sections {
		next := i % sections
		for !tbl.ContinuousRead(held, next, time.Millisecond) {
		}
		held = next
	}
	tbl.ReleaseReaderLock(held)
	close(stop)
	<-writerDone

	assert.Empty(t, rec.violations)

	// The only reader's hold count must not drop to zero until its final
	// release, and every release of an old section directly follows the
	// acquisition of the new one.
	holds := 0
	for i, ev := range rec.reads {
		if ev.acquired {
			holds++
			continue
		}
		holds--
		if i == len(rec.reads)-1 {
			continue
		}
		require.Positive(t, holds, "gap in read coverage at event %d", i)
		prev := rec.reads[i-1]
		require.True(t, prev.acquired, "release at %d not preceded by an acquisition", i)
		require.NotEqual(t, ev.section, prev.section)
	}
	assert.Zero(t, holds)
}
