package stress

import (
	"context"
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

func TestPattern(t *testing.T) {
	p := make([]byte, 600)
	fill(p, 100)
	var chk checker
	assert.Zero(t, chk.check(p[:300]))
	assert.Zero(t, chk.check(p[300:]), "continuity carries across calls")
	assert.Equal(t, byte(100), p[0])
	assert.Equal(t, byte(0), p[151])

	assert.Equal(t, uint64(1), chk.check([]byte{7}))
	chk.reset()
	assert.Zero(t, chk.check([]byte{42}))
}

func TestAbsAt(t *testing.T) {
	const length = 64
	tests := []struct {
		written uint64
		off     int
		want    uint64
	}{
		{64, 0, 0},
		{64, 63, 63},
		{100, 35, 99},
		{100, 36, 36},
		{100, 0, 64},
		{128, 0, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, absAt(tt.written, tt.off, length), "written=%d off=%d", tt.written, tt.off)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, DefaultScenario().Validate())

	hooky := DefaultScenario()
	hooky.Mode = Hooky
	hooky.RTP = true
	require.NoError(t, hooky.Validate())

	for name, mutate := range map[string]func(*Scenario){
		"mode":          func(s *Scenario) { s.Mode = "ring" },
		"block size":    func(s *Scenario) { s.BlockSize = 0 },
		"period length": func(s *Scenario) { s.BlockSize, s.BlockCount = 251, 2 },
		"ahead rate":    func(s *Scenario) { s.AheadRate = 1.5 },
		"fullness":      func(s *Scenario) { s.Fullness = 0 },
		"readers":       func(s *Scenario) { s.Readers = 0 },
		"duration":      func(s *Scenario) { s.Duration = 0 },
		"write chunk":   func(s *Scenario) { s.WriteChunk = 0 },
		"write rate":    func(s *Scenario) { s.WriteRate = -1 },
		"rtp":           func(s *Scenario) { s.RTP = true },
		"hook count":    func(s *Scenario) { s.Mode, s.HookCount = Hooky, 0 },
	} {
		t.Run(name, func(t *testing.T) {
			sc := DefaultScenario()
			mutate(&sc)
			assert.ErrorIs(t, sc.Validate(), ErrInvalidScenario)
		})
	}
}

// exclusionObserver fails the run if a section is ever held by a writer
// together with anyone else.
type exclusionObserver struct {
	mu         sync.Mutex
	readers    map[int]int
	writers    map[int]int
	violations int
}

func (o *exclusionObserver) LockAcquired(k int, mode sectionlock.Mode, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.writers[k] > 0 || (mode == sectionlock.Write && o.readers[k] > 0) {
		o.violations++
	}
	if mode == sectionlock.Write {
		o.writers[k]++
	} else {
		o.readers[k]++
	}
}

func (o *exclusionObserver) LockTimedOut(int, sectionlock.Mode, time.Duration) {}

func (o *exclusionObserver) LockReleased(k int, mode sectionlock.Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if mode == sectionlock.Write {
		o.writers[k]--
	} else {
		o.readers[k]--
	}
}

func testScenario(mode Mode) Scenario {
	return Scenario{
		Mode:       mode,
		BlockSize:  64,
		BlockCount: 8,
		HookCount:  64,
		Readers:    3,
		Duration:   300 * time.Millisecond,
		WriteChunk: 50,
		ReadChunk:  100,
		WriteRate:  256 << 10,
		Timeout:    10 * time.Millisecond,
		AheadRate:  0.5,
		Fullness:   1,
		Preserve:   true,
	}
}

func TestRunCircular(t *testing.T) {
	obs := &exclusionObserver{readers: map[int]int{}, writers: map[int]int{}}
	var (
		mu        sync.Mutex
		snapshots int
	)
	report, err := Run(context.Background(), testScenario(Circular),
		WithLockObserver(obs),
		WithProgress(50*time.Millisecond, func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			snapshots++
			assert.Len(t, s.Readers, 3)
		}),
	)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Len(t, report.Readers, 3)
	assert.Positive(t, report.Writer.Bytes)
	assert.Greater(t, report.Writer.Bytes, uint64(8*64))
	for _, rd := range report.Readers {
		assert.Positive(t, rd.Bytes, "reader %d", rd.Reader)
		assert.Positive(t, rd.Latency.Count, "reader %d", rd.Reader)
	}
	assert.NoError(t, report.Check())
	assert.Zero(t, obs.violations)

	mu.Lock()
	assert.Positive(t, snapshots)
	mu.Unlock()
}

func TestRunCircularUnpaced(t *testing.T) {
	sc := testScenario(Circular)
	sc.WriteRate = 0
	sc.AheadRate = 0
	sc.Preserve = false
	report, err := Run(context.Background(), sc)
	require.NoError(t, err)

	for _, rd := range report.Readers {
		assert.Zero(t, rd.Discontinuities, "reader %d", rd.Reader)
	}
}

func TestRunHooky(t *testing.T) {
	for _, rtp := range []bool{false, true} {
		sc := testScenario(Hooky)
		sc.RTP = rtp
		report, err := Run(context.Background(), sc)
		require.NoError(t, err)
		assert.NoError(t, report.Check(), "rtp=%v", rtp)

		if rtp {
			require.NotNil(t, report.Writer.RTP)
			assert.Equal(t, report.Writer.Writes, report.Writer.RTP.Packets)
			assert.Zero(t, report.Writer.RTP.Gaps)
		} else {
			assert.Nil(t, report.Writer.RTP)
		}
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := testScenario(Hooky)
	sc.Duration = time.Hour
	report, err := Run(ctx, sc)
	require.NoError(t, err)
	assert.Zero(t, report.Writer.Bytes)

	_, err = Run(context.Background(), Scenario{})
	assert.ErrorIs(t, err, ErrInvalidScenario)
}

func TestReportCheck(t *testing.T) {
	r := &Report{Readers: []ReaderReport{
		{Reader: 0, Wraps: 2},
		{Reader: 1, Wraps: 0},
		{Reader: 2, Wraps: 1, Discontinuities: 3},
	}}
	err := r.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reader 1: never wrapped")
	assert.Contains(t, err.Error(), "reader 2: 3 discontinuities")

	r.Readers = r.Readers[:1]
	assert.NoError(t, r.Check())
	assert.Zero(t, r.WriteRate())
}
