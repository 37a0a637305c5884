package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/event"
	"github.com/Iron-Ham/orchard/internal/progress"
	"github.com/Iron-Ham/orchard/internal/search"
	"github.com/Iron-Ham/orchard/internal/testutil"
)

func testData(t *testing.T) *dataset.ReadCounts {
	t.Helper()
	return testutil.Dataset(t, testutil.FourNodeSSM)
}

// stubModel reports fixed counters and one tree scored by its chain index.
type stubModel struct {
	in       search.Input
	explored int
	cut      int
	run      func(ctx context.Context, in search.Input) error
}

func (m *stubModel) Search(ctx context.Context) error {
	if m.run != nil {
		if err := m.run(ctx, m.in); err != nil {
			return err
		}
	}
	for range m.in.Params.BeamWidth {
		m.in.Progress.Advance()
	}
	return nil
}

func (m *stubModel) BestTrees() []search.Scored {
	return []search.Scored{{Score: float64(m.in.Chain), Branch: m.in.Initial[0]}}
}

func (m *stubModel) Explored() int { return m.explored }
func (m *stubModel) Cut() int      { return m.cut }

func stubFactory(run func(ctx context.Context, in search.Input) error) search.Factory {
	return func(in search.Input) (search.Model, error) {
		return &stubModel{in: in, explored: 2, cut: 1, run: run}, nil
	}
}

func scores(agg *Aggregate) []float64 {
	out := make([]float64, len(agg.Solutions))
	for i, s := range agg.Solutions {
		out[i] = s.Score
	}
	return out
}

// -----------------------------------------------------------------------------
// Seeding
// -----------------------------------------------------------------------------

func TestDeriveSeed(t *testing.T) {
	tests := []struct {
		base  uint64
		index int
		want  uint64
	}{
		{7, 0, 8},
		{7, 2, 10},
		{0, 0, 1},
		{MaxSeed - 1, 0, 0},
		{MaxSeed + 5, 0, 6},
	}
	for _, tt := range tests {
		if got := DeriveSeed(tt.base, tt.index); got != tt.want {
			t.Errorf("DeriveSeed(%d, %d) = %d, want %d", tt.base, tt.index, got, tt.want)
		}
	}
}

func TestDeriveSeed_Distinct(t *testing.T) {
	for _, base := range []uint64{0, 7, MaxSeed - 3, 1 << 40} {
		seen := make(map[uint64]int)
		for i := range 5000 {
			s := DeriveSeed(base, i)
			if s >= MaxSeed {
				t.Fatalf("DeriveSeed(%d, %d) = %d, out of range", base, i, s)
			}
			if prev, dup := seen[s]; dup {
				t.Fatalf("base %d: chains %d and %d share seed %d", base, prev, i, s)
			}
			seen[s] = i
		}
	}
}

func TestSeeder(t *testing.T) {
	data := testData(t)
	specs := NewSeeder(data, search.Params{BeamWidth: 1}.SamplerOptions(), false).Seed(7, 3)

	if len(specs) != 3 {
		t.Fatalf("len(specs) = %d, want 3", len(specs))
	}
	for i, spec := range specs {
		if spec.Index != i {
			t.Errorf("specs[%d].Index = %d", i, spec.Index)
		}
		if spec.Seed != DeriveSeed(7, i) {
			t.Errorf("specs[%d].Seed = %d, want %d", i, spec.Seed, DeriveSeed(7, i))
		}
		if len(spec.Initial) != 1 || spec.Initial[0].Depth() != 0 {
			t.Errorf("specs[%d] should start from one empty branch", i)
		}
		if spec.Rand == nil {
			t.Errorf("specs[%d].Rand is nil", i)
		}
	}

	// Without randomization every chain places nodes in the same order.
	want := specs[0].Initial[0].Sampler().Order()
	for i, spec := range specs[1:] {
		if diff := cmp.Diff(want, spec.Initial[0].Sampler().Order()); diff != "" {
			t.Errorf("specs[%d] order mismatch (-want +got):\n%s", i+1, diff)
		}
	}
	if specs[0].Initial[0].Sampler() == specs[1].Initial[0].Sampler() {
		t.Error("chains must not share a sampler")
	}
}

func TestSeeder_Reproducible(t *testing.T) {
	data := testData(t)
	s := NewSeeder(data, search.Params{BeamWidth: 1}.SamplerOptions(), true)

	a, b := s.Spec(42, 3), s.Spec(42, 3)
	if diff := cmp.Diff(a.Initial[0].Sampler().Order(), b.Initial[0].Sampler().Order()); diff != "" {
		t.Errorf("same (base, index) gave different orders (-a +b):\n%s", diff)
	}
	if a.Rand.Uint64() != b.Rand.Uint64() {
		t.Error("same (base, index) gave different generator streams")
	}
}

// -----------------------------------------------------------------------------
// Aggregation
// -----------------------------------------------------------------------------

func TestMerge_OrderIndependent(t *testing.T) {
	results := []Result{
		{Chain: 0, Explored: 3, Cut: 1, Solutions: []search.Scored{{Score: 2}, {Score: 5}}},
		{Chain: 1, Explored: 4, Cut: 2, Solutions: []search.Scored{{Score: 1}}},
		{Chain: 2, Explored: 5, Cut: 0, Solutions: []search.Scored{{Score: 2}, {Score: 0}}},
	}

	want := Merge(results...)
	if want.TotalExplored != 12 || want.TotalCut != 3 {
		t.Errorf("totals = (%d, %d), want (12, 3)", want.TotalExplored, want.TotalCut)
	}
	if diff := cmp.Diff([]float64{0, 1, 2, 2, 5}, scores(want)); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}

	perms := [][]int{{2, 1, 0}, {1, 2, 0}, {0, 2, 1}}
	for _, p := range perms {
		got := Merge(results[p[0]], results[p[1]], results[p[2]])
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Merge(%v) differs (-want +got):\n%s", p, diff)
		}
	}
}

func TestAggregator_FoldOnce(t *testing.T) {
	a := newAggregator(2)
	r := Result{Chain: 1, Explored: 4, Cut: 2}

	if !a.fold(r) {
		t.Fatal("first fold() = false")
	}
	if a.fold(r) {
		t.Error("second fold() of the same chain = true, want false")
	}
	if a.fold(Result{Chain: 5}) {
		t.Error("fold() of out-of-range chain = true, want false")
	}

	agg := a.finalize()
	if agg.TotalExplored != 4 || agg.TotalCut != 2 {
		t.Errorf("totals = (%d, %d), want (4, 2)", agg.TotalExplored, agg.TotalCut)
	}
}

func TestAggregate_Best(t *testing.T) {
	var empty *Aggregate
	if _, ok := empty.Best(); ok {
		t.Error("Best() on nil aggregate reported a solution")
	}
	agg := Merge(Result{Chain: 0, Solutions: []search.Scored{{Score: 3}, {Score: 1}}})
	if best, ok := agg.Best(); !ok || best.Score != 1 {
		t.Errorf("Best() = (%v, %v), want (1, true)", best.Score, ok)
	}
}

// -----------------------------------------------------------------------------
// Orchestrator
// -----------------------------------------------------------------------------

func TestRun_ThreeChainsTwoWorkers(t *testing.T) {
	counter := &progress.Counter{}
	params := search.Params{BeamWidth: 2}

	agg, err := RunParallel(context.Background(), search.KindBeam, params, testData(t),
		RunConfig{Chains: 3, PoolSize: 2, Seed: 7},
		WithModelFactory(stubFactory(nil)),
		WithIndicator(counter))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if agg.TotalExplored != 6 {
		t.Errorf("TotalExplored = %d, want 6", agg.TotalExplored)
	}
	if agg.TotalCut != 3 {
		t.Errorf("TotalCut = %d, want 3", agg.TotalCut)
	}
	if diff := cmp.Diff([]float64{0, 1, 2}, scores(agg)); diff != "" {
		t.Errorf("ranked scores mismatch (-want +got):\n%s", diff)
	}

	if agg.ProgressExpected != 6 || agg.ProgressObserved != 6 {
		t.Errorf("progress = %d/%d, want 6/6", agg.ProgressObserved, agg.ProgressExpected)
	}
	if counter.Total() != 6 || counter.Done() != 6 {
		t.Errorf("indicator = %d/%d, want 6/6", counter.Done(), counter.Total())
	}
	if finished, ok := counter.Finished(); !finished || !ok {
		t.Errorf("indicator Finished() = (%v, %v), want (true, true)", finished, ok)
	}

	wantChains := []ChainSummary{
		{Chain: 0, Seed: 8, Solutions: 1, Explored: 2, Cut: 1},
		{Chain: 1, Seed: 9, Solutions: 1, Explored: 2, Cut: 1},
		{Chain: 2, Seed: 10, Solutions: 1, Explored: 2, Cut: 1},
	}
	for i := range agg.Chains {
		agg.Chains[i].Duration = 0
	}
	if diff := cmp.Diff(wantChains, agg.Chains); diff != "" {
		t.Errorf("chain summaries mismatch (-want +got):\n%s", diff)
	}
	if agg.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestRun_ChainFailureAbortsRun(t *testing.T) {
	cause := errors.New("bad state")
	factory := stubFactory(func(_ context.Context, in search.Input) error {
		if in.Chain == 1 {
			return cause
		}
		return nil
	})

	bus := event.NewBus()
	var aborted []event.RunAbortedEvent
	var mu sync.Mutex
	bus.Subscribe(event.TypeRunAborted, func(e event.Event) {
		mu.Lock()
		aborted = append(aborted, e.(event.RunAbortedEvent))
		mu.Unlock()
	})
	counter := &progress.Counter{}

	agg, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 3, PoolSize: 2, Seed: 7},
		WithModelFactory(factory),
		WithBus(bus),
		WithIndicator(counter))

	if agg != nil {
		t.Errorf("Run() returned an aggregate on failure: %+v", agg)
	}
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false; err = %v", err)
	}
	if !errors.Is(err, errors.ErrSearchFailed) {
		t.Errorf("errors.Is(err, ErrSearchFailed) = false; err = %v", err)
	}
	if idx, ok := errors.ChainIndexOf(err); !ok || idx != 1 {
		t.Errorf("ChainIndexOf() = (%d, %v), want (1, true)", idx, ok)
	}
	if !strings.Contains(err.Error(), "chain=1") || !strings.Contains(err.Error(), "bad state") {
		t.Errorf("error %q should name the chain and the cause", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(aborted) != 1 {
		t.Fatalf("run.aborted published %d times, want 1", len(aborted))
	}
	if aborted[0].FailedChain != 1 || !aborted[0].Drained {
		t.Errorf("aborted event = %+v, want FailedChain 1 and Drained", aborted[0])
	}
	if finished, ok := counter.Finished(); !finished || ok {
		t.Errorf("indicator Finished() = (%v, %v), want (true, false)", finished, ok)
	}
}

func TestRun_FailureCancelsInFlightChains(t *testing.T) {
	var cancelled atomic.Int32
	ready := make(chan struct{}, 4)
	factory := stubFactory(func(ctx context.Context, in search.Input) error {
		if in.Chain == 1 {
			for range 3 {
				<-ready
			}
			return errors.New("bad state")
		}
		ready <- struct{}{}
		<-ctx.Done()
		cancelled.Add(1)
		return ctx.Err()
	})

	start := time.Now()
	_, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 4, PoolSize: 4},
		WithModelFactory(factory))
	if err == nil {
		t.Fatal("Run() error = nil, want failure")
	}
	if idx, _ := errors.ChainIndexOf(err); idx != 1 {
		t.Errorf("failed chain = %d, want 1", idx)
	}
	if elapsed := time.Since(start); elapsed > DefaultShutdownGrace {
		t.Errorf("Run() took %v, in-flight chains were not cancelled", elapsed)
	}
	if got := cancelled.Load(); got != 3 {
		t.Errorf("cancelled in-flight chains = %d, want 3", got)
	}
}

func TestRun_WorkerPanic(t *testing.T) {
	factory := stubFactory(func(_ context.Context, in search.Input) error {
		if in.Chain == 2 {
			panic("index out of range")
		}
		return nil
	})

	_, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 3, PoolSize: 1},
		WithModelFactory(factory))
	if !errors.Is(err, errors.ErrWorkerPanic) {
		t.Fatalf("errors.Is(err, ErrWorkerPanic) = false; err = %v", err)
	}
	if idx, ok := errors.ChainIndexOf(err); !ok || idx != 2 {
		t.Errorf("ChainIndexOf() = (%d, %v), want (2, true)", idx, ok)
	}
}

func TestRun_FactoryError(t *testing.T) {
	factory := func(in search.Input) (search.Model, error) {
		return nil, errors.New("unsupported")
	}
	_, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 2, PoolSize: 1},
		WithModelFactory(factory))

	var ce *errors.ChainError
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a ChainError", err)
	}
	if ce.Phase != "setup" {
		t.Errorf("Phase = %q, want setup", ce.Phase)
	}
}

func TestRun_PoolBound(t *testing.T) {
	var running, peak atomic.Int32
	factory := stubFactory(func(context.Context, search.Input) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	agg, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 10, PoolSize: 3},
		WithModelFactory(factory))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := peak.Load(); got > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", got)
	}
	if len(agg.Solutions) != 10 {
		t.Errorf("len(Solutions) = %d, want 10", len(agg.Solutions))
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 2)
	factory := stubFactory(func(ctx context.Context, _ search.Input) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	})

	go func() {
		<-started
		cancel()
	}()

	agg, err := RunParallel(ctx, search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 2, PoolSize: 2},
		WithModelFactory(factory))
	if agg != nil {
		t.Error("Run() returned an aggregate after cancellation")
	}
	if !errors.Is(err, errors.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrCanceled wrapping context.Canceled", err)
	}
}

func TestRun_SmallProgressChannel(t *testing.T) {
	agg, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 16}, testData(t),
		RunConfig{Chains: 8, PoolSize: 8},
		WithModelFactory(stubFactory(nil)),
		WithChannelCapacity(1),
		WithPushTimeout(time.Microsecond))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if agg.ProgressObserved != 128 {
		t.Errorf("ProgressObserved = %d, want 128", agg.ProgressObserved)
	}
}

func TestRun_Events(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	counts := make(map[string]int)
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		counts[e.EventType()]++
		mu.Unlock()
	})

	_, err := RunParallel(context.Background(), search.KindBeam, search.Params{BeamWidth: 1}, testData(t),
		RunConfig{Chains: 3, PoolSize: 2},
		WithModelFactory(stubFactory(nil)),
		WithBus(bus))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := map[string]int{
		event.TypeRunStarted:     1,
		event.TypeChainStarted:   3,
		event.TypeChainCompleted: 3,
		event.TypeRunCompleted:   1,
	}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("event counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	data := testData(t)
	tests := []struct {
		name   string
		params search.Params
		run    RunConfig
		data   *dataset.ReadCounts
	}{
		{"no chains", search.Params{BeamWidth: 1}, RunConfig{Chains: 0}, data},
		{"negative pool", search.Params{BeamWidth: 1}, RunConfig{Chains: 1, PoolSize: -1}, data},
		{"zero beam width", search.Params{BeamWidth: 0}, RunConfig{Chains: 1}, data},
		{"missing dataset", search.Params{BeamWidth: 1}, RunConfig{Chains: 1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunParallel(context.Background(), search.KindBeam, tt.params, tt.data, tt.run)
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// treeKeys renders solutions for comparison; branches hold unexported state.
func treeKeys(agg *Aggregate) []string {
	out := make([]string, len(agg.Solutions))
	for i, s := range agg.Solutions {
		out[i] = fmt.Sprintf("%.9f %s", s.Score, s.Branch)
	}
	return out
}

func TestRun_Deterministic(t *testing.T) {
	data := testData(t)
	kinds := []search.Kind{search.KindBeam, search.KindStochastic}

	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			params := search.Params{BeamWidth: 3, ForceMonoprimary: true}
			run := RunConfig{Chains: 6, PoolSize: 3, Seed: 1234, RandomizeNodes: true}

			first, err := RunParallel(context.Background(), kind, params, data, run)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if first.ProgressObserved != params.BeamWidth*run.Chains {
				t.Errorf("ProgressObserved = %d, want %d", first.ProgressObserved, params.BeamWidth*run.Chains)
			}

			for i := range 3 {
				again, err := RunParallel(context.Background(), kind, params, data, run)
				if err != nil {
					t.Fatalf("run %d error = %v", i, err)
				}
				if diff := cmp.Diff(treeKeys(first), treeKeys(again)); diff != "" {
					t.Errorf("run %d solutions differ (-first +again):\n%s", i, diff)
				}
				if again.TotalExplored != first.TotalExplored || again.TotalCut != first.TotalCut {
					t.Errorf("run %d totals = (%d, %d), want (%d, %d)", i,
						again.TotalExplored, again.TotalCut, first.TotalExplored, first.TotalCut)
				}
			}
		})
	}
}

func TestRunConfig_Workers(t *testing.T) {
	if got := (RunConfig{Chains: 4, PoolSize: 2}).Workers(); got != 2 {
		t.Errorf("Workers() = %d, want 2", got)
	}
	if got := (RunConfig{Chains: 1}).Workers(); got != 1 {
		t.Errorf("Workers() with one chain = %d, want 1", got)
	}
}
