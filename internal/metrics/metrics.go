// Package metrics exposes ensemble run statistics as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orchard"

// Chain outcome label values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Recorder records run statistics. A nil *Recorder discards everything.
type Recorder struct {
	runs          *prometheus.CounterVec
	chainsStarted prometheus.Counter
	chains        *prometheus.CounterVec
	explored      prometheus.Counter
	cut           prometheus.Counter
	progress      prometheus.Counter
	running       prometheus.Gauge
	duration      prometheus.Histogram
}

// NewRecorder registers the run collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of ensemble runs by outcome",
		}, []string{"status"}), // status: completed/failed/cancelled
		chainsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chains_started_total",
			Help:      "Total number of chains picked up by a worker",
		}),
		chains: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chains_finished_total",
			Help:      "Total number of chains finished by outcome",
		}, []string{"status"}),
		explored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explored_total",
			Help:      "Partial solutions considered by completed chains",
		}),
		cut: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cut_total",
			Help:      "Partial solutions discarded by completed chains",
		}),
		progress: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_units_total",
			Help:      "Progress units received from chains",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chains_running",
			Help:      "Chains currently running",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_duration_seconds",
			Help:      "Wall time of completed chains in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// ChainStarted records a chain entering a worker slot.
func (r *Recorder) ChainStarted() {
	if r == nil {
		return
	}
	r.chainsStarted.Inc()
	r.running.Inc()
}

// ChainCompleted records a merged chain result.
func (r *Recorder) ChainCompleted(explored, cut int, d time.Duration) {
	if r == nil {
		return
	}
	r.running.Dec()
	r.chains.WithLabelValues(StatusCompleted).Inc()
	r.explored.Add(float64(explored))
	r.cut.Add(float64(cut))
	r.duration.Observe(d.Seconds())
}

// ChainFailed records a chain that returned an error.
func (r *Recorder) ChainFailed() {
	if r == nil {
		return
	}
	r.running.Dec()
	r.chains.WithLabelValues(StatusFailed).Inc()
}

// ChainsCancelled records chains that were pending or running when a run
// aborted. running is how many of them had been started.
func (r *Recorder) ChainsCancelled(n, running int) {
	if r == nil || n <= 0 {
		return
	}
	r.running.Sub(float64(running))
	r.chains.WithLabelValues(StatusCancelled).Add(float64(n))
}

// Progress records n progress units.
func (r *Recorder) Progress(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.progress.Add(float64(n))
}

// RunFinished records a run outcome.
func (r *Recorder) RunFinished(status string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
}

// Explored returns the explored-total counter.
func (r *Recorder) Explored() prometheus.Counter { return r.explored }

// Runs returns the run counter for status.
func (r *Recorder) Runs(status string) prometheus.Counter {
	return r.runs.WithLabelValues(status)
}
