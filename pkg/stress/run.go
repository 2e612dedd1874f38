// Package stress runs one writer against several readers of a section-locked
// buffer and checks that every reader sees an uncorrupted byte stream.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-hdrhistogram"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lincolnyu/qsharp-sub003/pkg/buffer"
	"github.com/lincolnyu/qsharp-sub003/pkg/rtpfeed"
	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

// idleWait is how long a reader that has caught up with the writer sleeps
// before polling again.
const idleWait = 20 * time.Microsecond

// rtpPayloadType is the dynamic payload type used for RTP scenarios.
const rtpPayloadType = 111

// Snapshot is the progress of a running scenario.
type Snapshot struct {
	Elapsed time.Duration
	Writer  WriterReport
	Readers []ReaderReport
}

// Option configures Run.
type Option func(*runOptions)

type runOptions struct {
	logger   *slog.Logger
	recorder buffer.Recorder
	observer sectionlock.Observer
	every    time.Duration
	progress func(Snapshot)
}

// WithLogger sets the logger for the run and its buffer.
func WithLogger(l *slog.Logger) Option {
	return func(o *runOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder installs a buffer.Recorder on the buffer under test.
func WithRecorder(r buffer.Recorder) Option {
	return func(o *runOptions) { o.recorder = r }
}

// WithLockObserver installs a lock observer on the buffer under test.
func WithLockObserver(obs sectionlock.Observer) Option {
	return func(o *runOptions) { o.observer = obs }
}

// WithProgress calls fn with a snapshot every interval while the scenario
// runs. fn is called from its own goroutine.
func WithProgress(every time.Duration, fn func(Snapshot)) Option {
	return func(o *runOptions) {
		o.every = every
		o.progress = fn
	}
}

type writerStats struct {
	bytes    atomic.Uint64
	writes   atomic.Uint64
	timeouts atomic.Uint64
	feeder   *rtpfeed.Feeder
}

type readerStats struct {
	bytes           atomic.Uint64
	reads           atomic.Uint64
	timeouts        atomic.Uint64
	discontinuities atomic.Uint64
	wraps           atomic.Uint64
	laps            atomic.Uint64
	overruns        atomic.Uint64

	// latency is only touched by the reader goroutine until the run ends.
	latency *hdrhistogram.Histogram
}

type run struct {
	sc      Scenario
	opts    runOptions
	log     *slog.Logger
	limiter *rate.Limiter
	started time.Time

	writer  writerStats
	readers []*readerStats
}

// Run executes the scenario until its Duration has passed or ctx is
// canceled, and returns what the writer and readers saw. Cancellation is
// not an error: the report covers the part that ran.
func Run(ctx context.Context, sc Scenario, opts ...Option) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	o := runOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &run{
		sc:      sc,
		opts:    o,
		log:     o.logger,
		readers: make([]*readerStats, sc.Readers),
	}
	for i := range r.readers {
		r.readers[i] = &readerStats{latency: newLatencyHistogram()}
	}
	if sc.WriteRate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(sc.WriteRate), sc.WriteChunk)
	}

	report := &Report{ID: uuid.NewString(), Scenario: sc}
	r.log.Info("stress: start", "id", report.ID, "mode", sc.Mode, "readers", sc.Readers, "duration", sc.Duration)

	ctx, cancel := context.WithTimeout(ctx, sc.Duration)
	defer cancel()

	bopts := []buffer.Option{buffer.WithLogger(o.logger)}
	if o.recorder != nil {
		bopts = append(bopts, buffer.WithRecorder(o.recorder))
	}
	if o.observer != nil {
		bopts = append(bopts, buffer.WithLockObserver(o.observer))
	}

	r.started = time.Now()
	report.Started = r.started
	var err error
	switch sc.Mode {
	case Circular:
		err = r.runCircular(ctx, bopts)
	case Hooky:
		err = r.runHooky(ctx, bopts)
	}
	if err != nil {
		return nil, err
	}

	report.Elapsed = time.Since(r.started)
	report.Writer = r.writerReport()
	report.Readers = r.readerReports()
	for i, rs := range r.readers {
		report.Readers[i].Latency = percentiles(rs.latency)
	}
	r.log.Info("stress: done", "id", report.ID, "elapsed", report.Elapsed, "written", report.Writer.Bytes)
	return report, nil
}

func (r *run) runCircular(ctx context.Context, bopts []buffer.Option) error {
	c, err := buffer.NewCircular(r.sc.BlockSize, r.sc.BlockCount, bopts...)
	if err != nil {
		return fmt.Errorf("stress: %w", err)
	}

	// Readers compute positions from the bytes written, which needs a full
	// lap behind the writer.
	chunk := make([]byte, r.sc.WriteChunk)
	for c.Written() < uint64(c.Len()) {
		if ctx.Err() != nil {
			return nil
		}
		r.writeCircular(c, chunk)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for gctx.Err() == nil {
			if !r.wait(gctx, len(chunk)) {
				return nil
			}
			r.writeCircular(c, chunk)
		}
		return nil
	})
	for i, st := range r.readers {
		g.Go(func() error {
			r.readCircular(gctx, c, i, st)
			return nil
		})
	}
	r.startProgress(gctx, g)
	return g.Wait()
}

func (r *run) writeCircular(c *buffer.Circular, chunk []byte) {
	fill(chunk, c.Written())
	res := c.Write(chunk, r.sc.Timeout)
	r.writer.bytes.Add(uint64(res.N))
	r.writer.writes.Inc()
	if res.TimedOut() {
		r.writer.timeouts.Inc()
	}
}

func (r *run) readCircular(ctx context.Context, c *buffer.Circular, id int, st *readerStats) {
	length := uint64(c.Len())
	p := make([]byte, r.sc.ReadChunk)
	cur := c.NewCursor(0)
	defer cur.Close()

	var (
		abs uint64
		chk checker
	)
	resync := func() {
		cur.Seek(c.RecommendReadPointer(r.sc.AheadRate, true))
		abs = absAt(c.Written(), cur.Offset(), length)
		chk.reset()
	}
	resync()

	for ctx.Err() == nil {
		n := min(len(p), c.RecommendReadLength(cur.Offset(), r.sc.Fullness, true))
		if n == 0 {
			cur.Close()
			time.Sleep(idleWait)
			continue
		}

		before := cur.Offset()
		start := time.Now()
		res := c.Read(cur, p[:n], r.sc.Timeout, r.sc.Preserve)
		st.reads.Inc()
		if res.TimedOut() {
			st.timeouts.Inc()
		}
		if res.N == 0 {
			continue
		}
		recordLatency(st.latency, time.Since(start))

		if c.Written() > abs+length {
			st.laps.Inc()
			r.log.Debug("stress: reader lapped", "reader", id, "at", abs, "written", c.Written())
			resync()
			continue
		}
		st.discontinuities.Add(chk.check(p[:res.N]))
		st.bytes.Add(uint64(res.N))
		abs += uint64(res.N)
		if cur.Offset() <= before {
			st.wraps.Inc()
		}
	}
}

func (r *run) runHooky(ctx context.Context, bopts []buffer.Option) error {
	h, err := buffer.NewHooky(r.sc.HookCount, bopts...)
	if err != nil {
		return fmt.Errorf("stress: %w", err)
	}
	var src *rtpfeed.Source
	if r.sc.RTP {
		src = rtpfeed.NewSource(uuid.New().ID(), rtpPayloadType)
		r.writer.feeder = rtpfeed.New(h, r.sc.Timeout).WithLogger(r.log)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.appendHooky(gctx, h, src)
	})
	for i, st := range r.readers {
		g.Go(func() error {
			r.readHooky(gctx, h, i, st)
			return nil
		})
	}
	r.startProgress(gctx, g)
	return g.Wait()
}

func (r *run) appendHooky(ctx context.Context, h *buffer.Hooky, src *rtpfeed.Source) error {
	var abs uint64
	for seq := uint64(0); ctx.Err() == nil; seq++ {
		size := 1 + int(seq*7919%uint64(r.sc.WriteChunk))
		if !r.wait(ctx, size) {
			return nil
		}
		chunk := make([]byte, size)
		fill(chunk, abs)

		ok, err := r.appendChunk(ctx, h, src, chunk)
		if err != nil || !ok {
			return err
		}
		abs += uint64(size)
		r.writer.bytes.Add(uint64(size))
		r.writer.writes.Inc()
	}
	return nil
}

// appendChunk appends chunk, retrying on timeouts until it succeeds or ctx
// is done.
func (r *run) appendChunk(ctx context.Context, h *buffer.Hooky, src *rtpfeed.Source, chunk []byte) (bool, error) {
	if src == nil {
		for !h.Append(chunk, r.sc.Timeout) {
			r.writer.timeouts.Inc()
			if ctx.Err() != nil {
				return false, nil
			}
		}
		return true, nil
	}

	raw, err := src.Next(chunk, uint32(len(chunk)))
	if err != nil {
		return false, fmt.Errorf("stress: %w", err)
	}
	for {
		err := r.writer.feeder.Feed(raw)
		switch {
		case err == nil:
			return true, nil
		case !errors.Is(err, rtpfeed.ErrTimeout):
			return false, fmt.Errorf("stress: %w", err)
		}
		r.writer.timeouts.Inc()
		if ctx.Err() != nil {
			return false, nil
		}
	}
}

func (r *run) readHooky(ctx context.Context, h *buffer.Hooky, id int, st *readerStats) {
	hooks := uint64(h.HookCount())
	p := make([]byte, r.sc.ReadChunk)
	cur := h.NewCursor(h.Appended())
	defer cur.Close()

	var chk checker
	lap := cur.Seq() / hooks
	for ctx.Err() == nil {
		start := time.Now()
		res := h.Read(cur, p, r.sc.Timeout, r.sc.Preserve)
		st.reads.Inc()
		if res.N > 0 {
			recordLatency(st.latency, time.Since(start))
			st.discontinuities.Add(chk.check(p[:res.N]))
			st.bytes.Add(uint64(res.N))
		}

		switch res.Status {
		case buffer.TimedOut:
			st.timeouts.Inc()
		case buffer.Overrun:
			st.overruns.Inc()
			r.log.Debug("stress: reader overrun", "reader", id, "seq", cur.Seq(), "oldest", h.Oldest())
			cur.Seek(h.Appended())
			chk.reset()
			lap = cur.Seq() / hooks
			continue
		}

		if l := cur.Seq() / hooks; l > lap {
			st.wraps.Add(l - lap)
			lap = l
		}
		if res.N == 0 {
			cur.Close()
			time.Sleep(idleWait)
		}
	}
}

// wait blocks until the limiter admits n bytes. It returns false when the
// run is over.
func (r *run) wait(ctx context.Context, n int) bool {
	if r.limiter == nil {
		return ctx.Err() == nil
	}
	return r.limiter.WaitN(ctx, n) == nil
}

func (r *run) startProgress(ctx context.Context, g *errgroup.Group) {
	if r.opts.progress == nil || r.opts.every <= 0 {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(r.opts.every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				r.opts.progress(Snapshot{
					Elapsed: time.Since(r.started),
					Writer:  r.writerReport(),
					Readers: r.readerReports(),
				})
			}
		}
	})
}

func (r *run) writerReport() WriterReport {
	w := WriterReport{
		Bytes:    r.writer.bytes.Load(),
		Writes:   r.writer.writes.Load(),
		Timeouts: r.writer.timeouts.Load(),
	}
	if r.writer.feeder != nil {
		s := r.writer.feeder.Stats()
		w.RTP = &s
	}
	return w
}

func (r *run) readerReports() []ReaderReport {
	out := make([]ReaderReport, len(r.readers))
	for i, st := range r.readers {
		out[i] = ReaderReport{
			Reader:          i,
			Bytes:           st.bytes.Load(),
			Reads:           st.reads.Load(),
			Timeouts:        st.timeouts.Load(),
			Discontinuities: st.discontinuities.Load(),
			Wraps:           st.wraps.Load(),
			Laps:            st.laps.Load(),
			Overruns:        st.overruns.Load(),
		}
	}
	return out
}
