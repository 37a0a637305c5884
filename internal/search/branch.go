package search

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/orchard/internal/sampler"
)

// unplaced marks a node that is not yet in the tree.
const unplaced = -2

// Branch is an immutable partial tree. Nodes are added in the sampler's
// order; Extend returns a new Branch and leaves the receiver untouched.
type Branch struct {
	sampler  *sampler.Sampler
	parents  []int
	placed   []int
	residual [][]float64 // index NumNodes() is the root
	rootKids int
	score    float64
}

// NewBranch returns the empty starting branch for s. The root has full
// prevalence in every sample.
func NewBranch(s *sampler.Sampler) *Branch {
	n := s.NumNodes()
	samples := s.Data().NumSamples()

	parents := make([]int, n)
	for i := range parents {
		parents[i] = unplaced
	}

	residual := make([][]float64, n+1)
	root := make([]float64, samples)
	for j := range root {
		root[j] = 1
	}
	residual[n] = root

	return &Branch{
		sampler:  s,
		parents:  parents,
		residual: residual,
	}
}

// Sampler returns the sampler the branch was built from.
func (b *Branch) Sampler() *sampler.Sampler { return b.sampler }

// Score is the total sum-rule violation of the tree. Lower is better.
func (b *Branch) Score() float64 { return b.score }

// Depth returns the number of placed nodes.
func (b *Branch) Depth() int { return len(b.placed) }

// Complete reports whether every node has been placed.
func (b *Branch) Complete() bool { return len(b.placed) == len(b.parents) }

// Next returns the node that the next Extend will place.
func (b *Branch) Next() int { return b.sampler.NodeAt(len(b.placed)) }

// Placed implements sampler.Tree.
func (b *Branch) Placed() []int { return b.placed }

// RootChildren implements sampler.Tree.
func (b *Branch) RootChildren() int { return b.rootKids }

// Residual implements sampler.Tree.
func (b *Branch) Residual(parent int) []float64 {
	return b.residual[b.slot(parent)]
}

// Parents returns the parent of every node, sampler.Root for children of
// the root. Unplaced nodes report -2.
func (b *Branch) Parents() []int { return slices.Clone(b.parents) }

func (b *Branch) slot(parent int) int {
	if parent == sampler.Root {
		return len(b.parents)
	}
	return parent
}

// Extend places Next() under parent and returns the resulting branch.
func (b *Branch) Extend(parent int) *Branch {
	node := b.Next()
	f := b.sampler.Data().F[node]

	next := &Branch{
		sampler:  b.sampler,
		parents:  slices.Clone(b.parents),
		placed:   append(slices.Clip(b.placed), node),
		residual: slices.Clone(b.residual),
		rootKids: b.rootKids,
		score:    b.score + sampler.AddedViolation(b.Residual(parent), f),
	}
	next.parents[node] = parent

	ps := next.slot(parent)
	updated := slices.Clone(b.residual[ps])
	for j := range updated {
		updated[j] -= f[j]
	}
	next.residual[ps] = updated
	next.residual[node] = slices.Clone(f)

	if parent == sampler.Root {
		next.rootKids++
	}
	return next
}

// String renders the parent vector using node ids, e.g. "s0<-root s1<-s0".
func (b *Branch) String() string {
	ids := b.sampler.Data().IDs
	parts := make([]string, 0, len(b.placed))
	for _, node := range b.placed {
		parent := "root"
		if p := b.parents[node]; p != sampler.Root {
			parent = ids[p]
		}
		parts = append(parts, fmt.Sprintf("%s<-%s", ids[node], parent))
	}
	return strings.Join(parts, " ")
}
