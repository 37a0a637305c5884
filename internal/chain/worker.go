package chain

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/search"
)

// Phases recorded on ChainError.
const (
	phaseSetup  = "setup"
	phaseSearch = "search"
)

// task is one chain's unit of work. Data and params are shared read-only.
type task struct {
	spec     Spec
	kind     search.Kind
	params   search.Params
	data     *dataset.ReadCounts
	factory  search.Factory
	progress search.Reporter
}

// runChain builds and runs one chain's model. Errors and panics from the
// model come back as a ChainError carrying the chain index and seed.
func runChain(ctx context.Context, t task) (Result, error) {
	start := time.Now()

	var (
		res   Result
		err   error
		phase = phaseSetup
	)
	recovered := panics.Try(func() {
		var model search.Model
		model, err = t.factory(search.Input{
			Chain:    t.spec.Index,
			Kind:     t.kind,
			Params:   t.params,
			Initial:  t.spec.Initial,
			Data:     t.data,
			Rand:     t.spec.Rand,
			Progress: t.progress,
		})
		if err != nil {
			return
		}

		phase = phaseSearch
		if err = model.Search(ctx); err != nil {
			return
		}
		res = Result{
			Chain:     t.spec.Index,
			Seed:      t.spec.Seed,
			Solutions: model.BestTrees(),
			Explored:  model.Explored(),
			Cut:       model.Cut(),
		}
	})
	if recovered != nil {
		err = errors.Join(errors.ErrWorkerPanic, recovered.AsError())
	}
	if err != nil {
		return Result{}, errors.NewChainError(phase+" failed", err).
			WithChain(t.spec.Index).
			WithSeed(t.spec.Seed).
			WithPhase(phase)
	}

	res.Duration = time.Since(start)
	return res, nil
}
