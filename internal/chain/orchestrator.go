package chain

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/event"
	"github.com/Iron-Ham/orchard/internal/logging"
	"github.com/Iron-Ham/orchard/internal/metrics"
	"github.com/Iron-Ham/orchard/internal/progress"
	"github.com/Iron-Ham/orchard/internal/search"
)

// RunConfig is the ensemble shape of one run. It is shared read-only by
// every chain.
type RunConfig struct {
	Chains         int
	PoolSize       int // 0 selects min(Chains, NumCPU)
	Seed           uint64
	RandomizeNodes bool
}

// Validate checks the run configuration.
func (c RunConfig) Validate() error {
	if c.Chains < 1 {
		return errors.NewValidationError("run.chains", c.Chains, "must be at least 1")
	}
	if uint64(c.Chains) > MaxSeed {
		return errors.NewValidationError("run.chains", c.Chains, fmt.Sprintf("must not exceed %d", MaxSeed))
	}
	if c.PoolSize < 0 {
		return errors.NewValidationError("run.pool_size", c.PoolSize, "must be non-negative")
	}
	return nil
}

// Workers returns the effective pool size.
func (c RunConfig) Workers() int {
	if c.PoolSize > 0 {
		return c.PoolSize
	}
	return max(1, min(c.Chains, runtime.NumCPU()))
}

// ExpectedProgress returns the number of progress units a successful run
// emits.
func (c RunConfig) ExpectedProgress(beamWidth int) int {
	return beamWidth * c.Chains
}

// Orchestrator runs chain ensembles. It holds no per-run state and may run
// several ensembles concurrently if its indicator allows it.
type Orchestrator struct {
	factory     search.Factory
	logger      *logging.Logger
	bus         *event.Bus
	metrics     *metrics.Recorder
	indicator   progress.Indicator
	capacity    int
	pushTimeout time.Duration
	grace       time.Duration
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:   search.New,
		logger:    logging.NopLogger(),
		indicator: progress.Nop{},
		grace:     DefaultShutdownGrace,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunParallel runs an ensemble with a one-off Orchestrator.
func RunParallel(ctx context.Context, kind search.Kind, params search.Params, data *dataset.ReadCounts, run RunConfig, opts ...Option) (*Aggregate, error) {
	return New(opts...).Run(ctx, kind, params, data, run)
}

type outcome struct {
	chain  int
	result Result
	err    error
}

// execution is the state of one Run.
type execution struct {
	o        *Orchestrator
	id       string
	logger   *logging.Logger
	start    time.Time
	n        int
	expected int

	cancel  context.CancelFunc
	stopped chan struct{} // closed once every dispatched chain has returned
	started atomic.Int64

	agg      *aggregator
	observed int
}

// Run seeds run.Chains chains, searches them on a bounded pool, and merges
// their results. The first chain failure cancels the others and is
// returned as a *errors.ChainError; no aggregate is produced.
func (o *Orchestrator) Run(ctx context.Context, kind search.Kind, params search.Params, data *dataset.ReadCounts, run RunConfig) (*Aggregate, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.NewValidationError("dataset", nil, "is required")
	}

	x := &execution{
		o:        o,
		id:       uuid.NewString(),
		start:    time.Now(),
		n:        run.Chains,
		expected: run.ExpectedProgress(params.BeamWidth),
		stopped:  make(chan struct{}),
		agg:      newAggregator(run.Chains),
	}
	x.logger = o.logger.WithRun(x.id)
	pool := run.Workers()

	specs := NewSeeder(data, params.SamplerOptions(), run.RandomizeNodes).Seed(run.Seed, run.Chains)
	ch := progress.NewChannel(o.capacity, o.pushTimeout)

	o.indicator.Start(x.expected)
	x.logger.Info("run started",
		"chains", run.Chains,
		"pool_size", pool,
		"seed", run.Seed,
		"randomize_nodes", run.RandomizeNodes,
		"model", string(kind),
		"beam_width", params.BeamWidth,
		"expected_progress", x.expected)
	o.publish(event.NewRunStartedEvent(x.id, run.Chains, pool, run.Seed, x.expected))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	x.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(pool)

	outcomes := make(chan outcome, len(specs))
	go func() {
		defer close(x.stopped)
		for _, spec := range specs {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				x.chainStarted(spec)
				res, err := runChain(gctx, task{
					spec:     spec,
					kind:     kind,
					params:   params,
					data:     data,
					factory:  o.factory,
					progress: ch,
				})
				outcomes <- outcome{chain: spec.Index, result: res, err: err}
				return err
			})
		}
		_ = g.Wait()
	}()

	for remaining := len(specs); remaining > 0; {
		select {
		case out := <-outcomes:
			remaining--
			if out.err != nil {
				if ctx.Err() != nil {
					return nil, x.abort(fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err()), -1)
				}
				x.chainFailed(out)
				return nil, x.abort(out.err, out.chain)
			}
			x.chainCompleted(out.result)
		case <-ch.C():
			x.advance(1 + ch.Drain())
		case <-ctx.Done():
			return nil, x.abort(fmt.Errorf("%w: %w", errors.ErrCanceled, ctx.Err()), -1)
		}
	}

	<-x.stopped
	x.advance(ch.Drain())
	return x.finish(), nil
}

func (o *Orchestrator) publish(e event.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func (x *execution) advance(n int) {
	if n <= 0 {
		return
	}
	x.observed += n
	x.o.indicator.Add(n)
	x.o.metrics.Progress(n)
}

// chainStarted runs on the worker goroutine.
func (x *execution) chainStarted(spec Spec) {
	x.started.Add(1)
	x.o.metrics.ChainStarted()
	x.logger.WithChain(spec.Index).WithPhase("dispatch").Debug("chain started", "seed", spec.Seed)
	x.o.publish(event.NewChainStartedEvent(x.id, spec.Index, spec.Seed))
}

func (x *execution) chainCompleted(r Result) {
	if !x.agg.fold(r) {
		x.logger.WithChain(r.Chain).Warn("duplicate chain result ignored")
		return
	}
	x.o.metrics.ChainCompleted(r.Explored, r.Cut, r.Duration)
	x.logger.WithChain(r.Chain).WithPhase("merge").Debug("chain completed",
		"explored", r.Explored,
		"cut", r.Cut,
		"trees", len(r.Solutions),
		"duration", r.Duration)
	x.o.publish(event.NewChainCompletedEvent(x.id, r.Chain, r.Explored, r.Cut, len(r.Solutions), r.Duration))
}

func (x *execution) chainFailed(out outcome) {
	x.o.metrics.ChainFailed()
	x.logger.WithChain(out.chain).Error("chain failed", "error", out.err)
	x.o.publish(event.NewChainFailedEvent(x.id, out.chain, out.err))
}

// abort cancels every pending and running chain, waits up to the grace
// period for them to return, and reports the abort. failed is the index of
// the chain that caused it, or -1 when the caller cancelled.
func (x *execution) abort(cause error, failed int) error {
	x.cancel()

	drained := true
	timer := time.NewTimer(x.o.grace)
	defer timer.Stop()
	select {
	case <-x.stopped:
	case <-timer.C:
		drained = false
	}

	completed := x.agg.folded
	failures := 0
	if failed >= 0 {
		failures = 1
	}
	cancelled := x.n - completed - failures
	running := int(x.started.Load()) - completed - failures

	status := metrics.StatusFailed
	if failed < 0 {
		status = metrics.StatusCancelled
	}
	x.o.metrics.ChainsCancelled(cancelled, running)
	x.o.metrics.RunFinished(status)

	if err := x.o.indicator.Finish(false); err != nil {
		x.logger.Warn("progress indicator failed", "error", err)
	}

	x.logger.WithPhase("abort").Warn("run aborted",
		"failed_chain", failed,
		"completed", completed,
		"cancelled", cancelled,
		"drained", drained,
		"grace", x.o.grace,
		"error", cause)
	x.o.publish(event.NewRunAbortedEvent(x.id, failed, completed, cancelled, drained, cause))
	return cause
}

func (x *execution) finish() *Aggregate {
	result := x.agg.finalize()
	result.RunID = x.id
	result.ProgressExpected = x.expected
	result.ProgressObserved = x.observed
	result.Duration = time.Since(x.start)

	if x.observed != x.expected {
		err := errors.NewChannelError("progress units lost", errors.ErrProgressMismatch).
			WithCounts(x.expected, x.observed)
		x.logger.Warn("progress count mismatch", "error", err)
	}
	if err := x.o.indicator.Finish(true); err != nil {
		x.logger.Warn("progress indicator failed", "error", err)
	}
	x.o.metrics.RunFinished(metrics.StatusCompleted)

	x.logger.Info("run completed",
		"solutions", len(result.Solutions),
		"explored", result.TotalExplored,
		"cut", result.TotalCut,
		"progress", x.observed,
		"duration", result.Duration)
	x.o.publish(event.NewRunCompletedEvent(x.id, len(result.Solutions), result.TotalExplored, result.TotalCut, x.observed, result.Duration))
	return result
}
