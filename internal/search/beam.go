package search

import (
	"cmp"
	"context"
	"math"
	"math/rand/v2"
	"slices"
)

// beamSearch grows every frontier branch by one node per step and keeps
// at most width children.
type beamSearch struct {
	width    int
	frontier []*Branch
	selectFn func([]*Branch) []*Branch
	progress Reporter

	best     []Scored
	explored int
	cut      int
}

func (s *beamSearch) Search(ctx context.Context) error {
	frontier := slices.Clone(s.frontier)

	for !allComplete(frontier) {
		if err := ctx.Err(); err != nil {
			return err
		}

		var children []*Branch
		for _, b := range frontier {
			if b.Complete() {
				children = append(children, b)
				continue
			}
			node := b.Next()
			for _, parent := range b.Sampler().Placements(b, node) {
				children = append(children, b.Extend(parent))
				s.explored++
			}
		}

		kept := s.selectFn(children)
		s.cut += len(children) - len(kept)
		frontier = kept
	}

	sortByScore(frontier)
	s.best = make([]Scored, len(frontier))
	for i, b := range frontier {
		s.best[i] = Scored{Score: b.Score(), Branch: b}
	}

	// Every final beam slot counts once, filled or not.
	if s.progress != nil {
		for range s.width {
			s.progress.Advance()
		}
	}
	return nil
}

func (s *beamSearch) BestTrees() []Scored { return slices.Clone(s.best) }
func (s *beamSearch) Explored() int       { return s.explored }
func (s *beamSearch) Cut() int            { return s.cut }

// keepBest keeps the width lowest-scoring children, stable on ties.
func (s *beamSearch) keepBest(children []*Branch) []*Branch {
	sortByScore(children)
	if len(children) > s.width {
		children = children[:s.width]
	}
	return children
}

// sampleWeighted keeps width children sampled without replacement with
// weight exp(-(score - min)).
func (s *beamSearch) sampleWeighted(rng *rand.Rand) func([]*Branch) []*Branch {
	return func(children []*Branch) []*Branch {
		if len(children) <= s.width {
			sortByScore(children)
			return children
		}

		best := math.Inf(1)
		for _, c := range children {
			best = min(best, c.Score())
		}

		idx := make([]int, len(children))
		keys := make([]float64, len(children))
		for i, c := range children {
			idx[i] = i
			u := rng.Float64()
			for u == 0 {
				u = rng.Float64()
			}
			keys[i] = math.Log(u) / math.Exp(-(c.Score() - best))
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Compare(keys[b], keys[a])
		})

		picked := idx[:s.width]
		slices.Sort(picked)
		kept := make([]*Branch, len(picked))
		for i, j := range picked {
			kept[i] = children[j]
		}
		sortByScore(kept)
		return kept
	}
}

func allComplete(frontier []*Branch) bool {
	for _, b := range frontier {
		if !b.Complete() {
			return false
		}
	}
	return true
}

func sortByScore(branches []*Branch) {
	slices.SortStableFunc(branches, func(a, b *Branch) int {
		return cmp.Compare(a.Score(), b.Score())
	})
}
