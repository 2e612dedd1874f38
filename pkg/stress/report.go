package stress

import (
	"fmt"
	"time"

	"github.com/elastic/go-hdrhistogram"
	"github.com/hashicorp/go-multierror"

	"github.com/lincolnyu/qsharp-sub003/pkg/rtpfeed"
)

// Report is the outcome of a stress run.
type Report struct {
	ID       string        `yaml:"id" json:"id" msgpack:"id"`
	Scenario Scenario      `yaml:"scenario" json:"scenario" msgpack:"scenario"`
	Started  time.Time     `yaml:"started" json:"started" msgpack:"started"`
	Elapsed  time.Duration `yaml:"elapsed" json:"elapsed" msgpack:"elapsed"`

	Writer  WriterReport   `yaml:"writer" json:"writer" msgpack:"writer"`
	Readers []ReaderReport `yaml:"readers" json:"readers" msgpack:"readers"`
}

// WriterReport counts the writer's activity.
type WriterReport struct {
	Bytes    uint64 `yaml:"bytes" json:"bytes" msgpack:"bytes"`
	Writes   uint64 `yaml:"writes" json:"writes" msgpack:"writes"`
	Timeouts uint64 `yaml:"timeouts" json:"timeouts" msgpack:"timeouts"`

	RTP *rtpfeed.Stats `yaml:"rtp,omitempty" json:"rtp,omitempty" msgpack:"rtp,omitempty"`
}

// ReaderReport counts one reader's activity.
type ReaderReport struct {
	Reader   int    `yaml:"reader" json:"reader" msgpack:"reader"`
	Bytes    uint64 `yaml:"bytes" json:"bytes" msgpack:"bytes"`
	Reads    uint64 `yaml:"reads" json:"reads" msgpack:"reads"`
	Timeouts uint64 `yaml:"timeouts" json:"timeouts" msgpack:"timeouts"`

	// Discontinuities counts bytes that broke the pattern. Any non-zero
	// value means a reader saw torn or misplaced data.
	Discontinuities uint64 `yaml:"discontinuities" json:"discontinuities" msgpack:"discontinuities"`
	// Wraps counts passes over the end of the buffer, or over every
	// HookCount chunks.
	Wraps uint64 `yaml:"wraps" json:"wraps" msgpack:"wraps"`
	// Laps counts resyncs of a circular reader the writer overtook.
	Laps uint64 `yaml:"laps" json:"laps" msgpack:"laps"`
	// Overruns counts hooky reads that found their chunk replaced.
	Overruns uint64 `yaml:"overruns" json:"overruns" msgpack:"overruns"`

	Latency Percentiles `yaml:"latency" json:"latency" msgpack:"latency"`
}

// Percentiles summarizes the latency of reads that returned data.
type Percentiles struct {
	Count int64         `yaml:"count" json:"count" msgpack:"count"`
	Mean  time.Duration `yaml:"mean" json:"mean" msgpack:"mean"`
	P50   time.Duration `yaml:"p50" json:"p50" msgpack:"p50"`
	P90   time.Duration `yaml:"p90" json:"p90" msgpack:"p90"`
	P99   time.Duration `yaml:"p99" json:"p99" msgpack:"p99"`
	Max   time.Duration `yaml:"max" json:"max" msgpack:"max"`
}

// Check returns an error describing every reader that saw a discontinuity
// or never wrapped around the buffer.
func (r *Report) Check() error {
	var result *multierror.Error
	for _, rd := range r.Readers {
		if rd.Discontinuities > 0 {
			result = multierror.Append(result, fmt.Errorf("reader %d: %d discontinuities", rd.Reader, rd.Discontinuities))
		}
		if rd.Wraps == 0 {
			result = multierror.Append(result, fmt.Errorf("reader %d: never wrapped", rd.Reader))
		}
	}
	return result.ErrorOrNil()
}

// WriteRate returns the bytes written per second.
func (r *Report) WriteRate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Writer.Bytes) / r.Elapsed.Seconds()
}

const (
	minLatency = 1                // µs
	maxLatency = 60 * 1000 * 1000 // µs
)

func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency, maxLatency, 3)
}

func recordLatency(h *hdrhistogram.Histogram, d time.Duration) {
	us := min(max(d.Microseconds(), minLatency), maxLatency)
	_ = h.RecordValue(us)
}

func percentiles(h *hdrhistogram.Histogram) Percentiles {
	if h.TotalCount() == 0 {
		return Percentiles{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Percentiles{
		Count: h.TotalCount(),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   us(h.ValueAtQuantile(50)),
		P90:   us(h.ValueAtQuantile(90)),
		P99:   us(h.ValueAtQuantile(99)),
		Max:   us(h.Max()),
	}
}
