package chain

import (
	"cmp"
	"slices"
	"time"

	"github.com/Iron-Ham/orchard/internal/search"
)

// Result is one chain's completed output.
type Result struct {
	Chain     int
	Seed      uint64
	Solutions []search.Scored
	Explored  int
	Cut       int
	Duration  time.Duration
}

// ChainSummary is the per-chain line of an Aggregate.
type ChainSummary struct {
	Chain     int
	Seed      uint64
	Solutions int
	Explored  int
	Cut       int
	Duration  time.Duration
}

// Aggregate is the merged output of a successful run.
type Aggregate struct {
	RunID string
	// Solutions is every chain's trees, ascending by score. Ties keep chain
	// order, then each chain's own order.
	Solutions     []search.Scored
	TotalExplored int
	TotalCut      int
	Chains        []ChainSummary

	ProgressExpected int
	ProgressObserved int
	Duration         time.Duration
}

// Best returns the lowest-scoring solution, if any.
func (a *Aggregate) Best() (search.Scored, bool) {
	if a == nil || len(a.Solutions) == 0 {
		return search.Scored{}, false
	}
	return a.Solutions[0], true
}

// aggregator folds chain results as they arrive. Results are slotted by
// chain index so that the finalized order does not depend on arrival order.
type aggregator struct {
	slots    []*Result
	folded   int
	explored int
	cut      int
}

func newAggregator(n int) *aggregator {
	return &aggregator{slots: make([]*Result, n)}
}

// fold records r. A chain is folded at most once; repeats are ignored so the
// counters can never double count.
func (a *aggregator) fold(r Result) bool {
	if r.Chain < 0 || r.Chain >= len(a.slots) || a.slots[r.Chain] != nil {
		return false
	}
	a.slots[r.Chain] = &r
	a.folded++
	a.explored += r.Explored
	a.cut += r.Cut
	return true
}

func (a *aggregator) finalize() *Aggregate {
	agg := &Aggregate{
		TotalExplored: a.explored,
		TotalCut:      a.cut,
		Chains:        make([]ChainSummary, 0, len(a.slots)),
	}
	for _, r := range a.slots {
		if r == nil {
			continue
		}
		agg.Solutions = append(agg.Solutions, r.Solutions...)
		agg.Chains = append(agg.Chains, ChainSummary{
			Chain:     r.Chain,
			Seed:      r.Seed,
			Solutions: len(r.Solutions),
			Explored:  r.Explored,
			Cut:       r.Cut,
			Duration:  r.Duration,
		})
	}
	slices.SortStableFunc(agg.Solutions, func(x, y search.Scored) int {
		return cmp.Compare(x.Score, y.Score)
	})
	return agg
}

// Merge folds results into an Aggregate. The outcome is the same for any
// permutation of results.
func Merge(results ...Result) *Aggregate {
	n := 0
	for _, r := range results {
		n = max(n, r.Chain+1)
	}
	a := newAggregator(n)
	for _, r := range results {
		a.fold(r)
	}
	return a.finalize()
}
