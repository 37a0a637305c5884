// Package search defines the tree-search models run by each chain and the
// partial-solution type they explore.
//
// A chain builds one Model via a Factory, calls Search once, then reads
// BestTrees, Explored, and Cut. Models report one unit on the Reporter per
// settled slot of their final beam, so a successful search advances exactly
// Params.BeamWidth times.
package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/sampler"
)

// Kind selects the search variant.
type Kind string

const (
	// KindBeam keeps the best BeamWidth children at every step.
	KindBeam Kind = "beam"
	// KindStochastic samples BeamWidth children weighted by score.
	KindStochastic Kind = "stochastic"
)

// ValidKinds returns the supported search kinds.
func ValidKinds() []Kind { return []Kind{KindBeam, KindStochastic} }

// ParseKind converts a config value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBeam, KindStochastic:
		return k, nil
	default:
		return "", errors.NewValidationError("model.kind", s, "must be one of: beam, stochastic")
	}
}

// Params is the model configuration shared read-only by every chain.
type Params struct {
	BeamWidth        int
	IgnoreZeroProbs  bool
	ForceMonoprimary bool
	MaxPlacements    int
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.BeamWidth < 1 {
		return errors.NewValidationError("model.beam_width", p.BeamWidth, "must be at least 1")
	}
	if p.MaxPlacements < 0 {
		return errors.NewValidationError("model.max_placements", p.MaxPlacements, "must be non-negative")
	}
	return nil
}

// SamplerOptions returns the placement options derived from p.
func (p Params) SamplerOptions() sampler.Options {
	return sampler.Options{
		IgnoreZeroProbs:  p.IgnoreZeroProbs,
		ForceMonoprimary: p.ForceMonoprimary,
		MaxPlacements:    p.MaxPlacements,
	}
}

// Reporter receives one call per unit of search progress.
type Reporter interface {
	Advance()
}

// Scored pairs a tree with its score.
type Scored struct {
	Score  float64
	Branch *Branch
}

// Model is one chain's search instance.
type Model interface {
	// Search runs to completion or until ctx is done.
	Search(ctx context.Context) error
	// BestTrees returns the final trees in ascending score order.
	BestTrees() []Scored
	// Explored returns how many partial solutions were considered.
	Explored() int
	// Cut returns how many partial solutions were discarded.
	Cut() int
}

// Input is everything a Factory receives for one chain. The generator and
// initial branches belong to that chain alone; Data is shared read-only.
type Input struct {
	Chain    int
	Kind     Kind
	Params   Params
	Initial  []*Branch
	Data     *dataset.ReadCounts
	Rand     *rand.Rand
	Progress Reporter
}

// Factory builds a Model for one chain.
type Factory func(Input) (Model, error)

// New is the default Factory.
func New(in Input) (Model, error) {
	if err := in.Params.Validate(); err != nil {
		return nil, err
	}
	if len(in.Initial) == 0 {
		return nil, errors.NewValidationError("initial", 0, "at least one starting branch is required")
	}
	if in.Rand == nil {
		return nil, errors.NewValidationError("rand", nil, "a random generator is required")
	}

	bs := &beamSearch{
		width:    in.Params.BeamWidth,
		frontier: in.Initial,
		progress: in.Progress,
	}
	switch in.Kind {
	case KindBeam:
		bs.selectFn = bs.keepBest
	case KindStochastic:
		bs.selectFn = bs.sampleWeighted(in.Rand)
	default:
		return nil, fmt.Errorf("unknown search kind %q: %w", in.Kind, errors.ErrInvalidInput)
	}
	return bs, nil
}
