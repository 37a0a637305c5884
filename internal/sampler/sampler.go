// Package sampler prepares the per-chain placement order and the candidate
// parent ranking used by the tree search.
//
// A Sampler is configured once per chain on the dispatching side and is
// read-only afterwards, so it can be shared by every branch of that chain.
package sampler

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/Iron-Ham/orchard/internal/dataset"
)

// Root is the parent index of nodes attached directly to the root.
const Root = -1

// orderEpsilon keeps zero-prevalence nodes sampleable when randomizing.
const orderEpsilon = 1e-6

// Options controls which placements are offered to the search.
type Options struct {
	// IgnoreZeroProbs skips parents with no spare capacity in any sample,
	// unless that would leave no candidate.
	IgnoreZeroProbs bool
	// ForceMonoprimary allows only one child of the root.
	ForceMonoprimary bool
	// MaxPlacements caps candidate parents per node (0 = unlimited).
	MaxPlacements int
}

// Tree is the view of a partial solution the sampler needs to rank parents.
type Tree interface {
	// Placed returns the nodes already in the tree, in placement order.
	Placed() []int
	// Residual returns per-sample spare prevalence of parent (Root allowed).
	Residual(parent int) []float64
	// RootChildren returns how many nodes hang directly off the root.
	RootChildren() int
}

// Sampler holds the prepared ordering for one chain.
type Sampler struct {
	data  *dataset.ReadCounts
	opts  Options
	fSum  []float64
	order []int
}

// New creates a Sampler over data. Call ComputeFSum and SampleNodeOrder
// before handing it to a search.
func New(data *dataset.ReadCounts, opts Options) *Sampler {
	return &Sampler{data: data, opts: opts}
}

// Data returns the shared read counts.
func (s *Sampler) Data() *dataset.ReadCounts { return s.data }

// Options returns the placement options.
func (s *Sampler) Options() Options { return s.opts }

// NumNodes returns the number of nodes to place.
func (s *Sampler) NumNodes() int { return s.data.NumNodes() }

// ComputeFSum sums each node's prevalence over all samples.
func (s *Sampler) ComputeFSum() []float64 {
	s.fSum = make([]float64, s.data.NumNodes())
	for i, row := range s.data.F {
		for _, f := range row {
			s.fSum[i] += f
		}
	}
	return slices.Clone(s.fSum)
}

// SampleNodeOrder fixes the order in which nodes are added to a tree.
// Without randomization nodes are sorted by descending prevalence sum
// (ties by index). With randomization the order is a weighted sample
// without replacement, weights proportional to the prevalence sum.
func (s *Sampler) SampleNodeOrder(rng *rand.Rand, randomize bool) []int {
	if s.fSum == nil {
		s.ComputeFSum()
	}

	n := len(s.fSum)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	if !randomize {
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(s.fSum[b], s.fSum[a])
		})
		s.order = order
		return slices.Clone(order)
	}

	// Efraimidis-Spirakis: key = log(u) / w, keep the largest keys first.
	keys := make([]float64, n)
	for i := range keys {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		keys[i] = math.Log(u) / (s.fSum[i] + orderEpsilon)
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(keys[b], keys[a])
	})
	s.order = order
	return slices.Clone(order)
}

// Order returns the placement order. It is nil until SampleNodeOrder runs.
func (s *Sampler) Order() []int { return s.order }

// NodeAt returns the node placed at the given depth.
func (s *Sampler) NodeAt(depth int) int { return s.order[depth] }

// Placements ranks candidate parents for node in t by the sum-rule
// violation the placement would add, cheapest first. Ties keep the root
// first, then placement order.
func (s *Sampler) Placements(t Tree, node int) []int {
	candidates := make([]int, 0, len(t.Placed())+1)
	if !s.opts.ForceMonoprimary || t.RootChildren() == 0 {
		candidates = append(candidates, Root)
	}
	candidates = append(candidates, t.Placed()...)

	if s.opts.IgnoreZeroProbs {
		open := slices.DeleteFunc(slices.Clone(candidates), func(p int) bool {
			return !hasCapacity(t.Residual(p))
		})
		if len(open) > 0 {
			candidates = open
		}
	}

	f := s.data.F[node]
	cost := make(map[int]float64, len(candidates))
	for _, p := range candidates {
		cost[p] = AddedViolation(t.Residual(p), f)
	}
	slices.SortStableFunc(candidates, func(a, b int) int {
		return cmp.Compare(cost[a], cost[b])
	})

	if s.opts.MaxPlacements > 0 && len(candidates) > s.opts.MaxPlacements {
		candidates = candidates[:s.opts.MaxPlacements]
	}
	return candidates
}

// AddedViolation is the increase in sum-rule violation from subtracting
// child from a parent's residual.
func AddedViolation(residual, child []float64) float64 {
	var added float64
	for j, r := range residual {
		added += max(0, child[j]-r) - max(0, -r)
	}
	return added
}

func hasCapacity(residual []float64) bool {
	for _, r := range residual {
		if r > 0 {
			return true
		}
	}
	return false
}
