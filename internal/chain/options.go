package chain

import (
	"time"

	"github.com/Iron-Ham/orchard/internal/event"
	"github.com/Iron-Ham/orchard/internal/logging"
	"github.com/Iron-Ham/orchard/internal/metrics"
	"github.com/Iron-Ham/orchard/internal/progress"
	"github.com/Iron-Ham/orchard/internal/search"
)

// DefaultShutdownGrace bounds how long an aborted run waits for in-flight
// chains to stop.
const DefaultShutdownGrace = 5 * time.Second

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModelFactory replaces the search model factory. Tests use it to
// inject stub searches.
func WithModelFactory(f search.Factory) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithLogger sets the logger. Run adds the run id to it.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBus publishes run and chain lifecycle events on b.
func WithBus(b *event.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = b
	}
}

// WithMetrics records run statistics on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = r
	}
}

// WithIndicator drives ind with the run's progress.
func WithIndicator(ind progress.Indicator) Option {
	return func(o *Orchestrator) {
		if ind != nil {
			o.indicator = ind
		}
	}
}

// WithChannelCapacity sets the progress channel buffer size.
func WithChannelCapacity(n int) Option {
	return func(o *Orchestrator) {
		o.capacity = n
	}
}

// WithPushTimeout sets how long a chain may wait to push one progress unit
// before it is parked in the overflow count.
func WithPushTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pushTimeout = d
	}
}

// WithShutdownGrace sets how long an aborted run waits for in-flight chains.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.grace = d
		}
	}
}
