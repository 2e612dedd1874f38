// Package metrics exports section lock and buffer events as Prometheus
// metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lincolnyu/qsharp-sub003/pkg/buffer"
	"github.com/lincolnyu/qsharp-sub003/pkg/sectionlock"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "ringbench"

var (
	_ sectionlock.Observer = (*Prometheus)(nil)
	_ buffer.Recorder      = (*Prometheus)(nil)
)

// Prometheus collects lock and buffer events into its own registry. Install
// it with buffer.WithLockObserver and buffer.WithRecorder.
type Prometheus struct {
	registry *prometheus.Registry

	lockAcquired *prometheus.CounterVec   // acquisitions by mode
	lockTimeouts *prometheus.CounterVec   // timed out acquisitions by mode
	lockReleased *prometheus.CounterVec   // releases by mode
	lockHeld     *prometheus.GaugeVec     // holds currently in place by mode
	lockWait     *prometheus.HistogramVec // time spent waiting, by mode and outcome

	writtenBytes prometheus.Counter
	readBytes    prometheus.Counter
	shortWrites  prometheus.Counter
	shortReads   prometheus.Counter
	overruns     prometheus.Counter
	appends      *prometheus.CounterVec // appends by result
	appendBytes  prometheus.Counter
}

// NewPrometheus creates a collector with a fresh registry. An empty
// namespace selects DefaultNamespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	p := &Prometheus{registry: prometheus.NewRegistry()}
	return p.register(namespace)
}

func (p *Prometheus) register(namespace string) *Prometheus {
	p.lockAcquired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "acquired_total",
		Help:      "Number of section locks acquired.",
	}, []string{"mode"})
	p.lockTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "timeouts_total",
		Help:      "Number of section lock attempts that timed out.",
	}, []string{"mode"})
	p.lockReleased = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "released_total",
		Help:      "Number of section locks released.",
	}, []string{"mode"})
	p.lockHeld = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "held",
		Help:      "Number of section locks currently held.",
	}, []string{"mode"})
	p.lockWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for a section lock.",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	}, []string{"mode", "result"})

	p.writtenBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "written_bytes_total",
		Help:      "Number of bytes written.",
	})
	p.readBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "read_bytes_total",
		Help:      "Number of bytes read.",
	})
	p.shortWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "short_writes_total",
		Help:      "Number of writes cut short by a lock timeout.",
	})
	p.shortReads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "short_reads_total",
		Help:      "Number of reads cut short by a lock timeout.",
	})
	p.overruns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "overruns_total",
		Help:      "Number of reads that found their chunk replaced.",
	})
	p.appends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "appends_total",
		Help:      "Number of chunk appends.",
	}, []string{"result"})
	p.appendBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "appended_bytes_total",
		Help:      "Number of bytes appended as chunks.",
	})

	p.registry.MustRegister(
		p.lockAcquired, p.lockTimeouts, p.lockReleased, p.lockHeld, p.lockWait,
		p.writtenBytes, p.readBytes, p.shortWrites, p.shortReads, p.overruns,
		p.appends, p.appendBytes,
	)
	return p
}

// Registry returns the registry holding the collector's metrics.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler returns an HTTP handler serving the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *Prometheus) LockAcquired(_ int, mode sectionlock.Mode, wait time.Duration) {
	m := mode.String()
	p.lockAcquired.WithLabelValues(m).Inc()
	p.lockHeld.WithLabelValues(m).Inc()
	p.lockWait.WithLabelValues(m, "acquired").Observe(wait.Seconds())
}

func (p *Prometheus) LockTimedOut(_ int, mode sectionlock.Mode, wait time.Duration) {
	m := mode.String()
	p.lockTimeouts.WithLabelValues(m).Inc()
	p.lockWait.WithLabelValues(m, "timeout").Observe(wait.Seconds())
}

func (p *Prometheus) LockReleased(_ int, mode sectionlock.Mode) {
	m := mode.String()
	p.lockReleased.WithLabelValues(m).Inc()
	p.lockHeld.WithLabelValues(m).Dec()
}

func (p *Prometheus) RecordWrite(r buffer.Result, _ int) {
	p.writtenBytes.Add(float64(r.N))
	if r.TimedOut() {
		p.shortWrites.Inc()
	}
}

func (p *Prometheus) RecordRead(r buffer.Result, _ int) {
	p.readBytes.Add(float64(r.N))
	switch r.Status {
	case buffer.TimedOut:
		p.shortReads.Inc()
	case buffer.Overrun:
		p.overruns.Inc()
	}
}

func (p *Prometheus) RecordAppend(size int, ok bool) {
	if !ok {
		p.appends.WithLabelValues("timeout").Inc()
		return
	}
	p.appends.WithLabelValues("ok").Inc()
	p.appendBytes.Add(float64(size))
}
