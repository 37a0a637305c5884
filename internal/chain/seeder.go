package chain

import (
	"math/rand/v2"

	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/sampler"
	"github.com/Iron-Ham/orchard/internal/search"
)

// MaxSeed bounds derived seeds to [0, MaxSeed).
const MaxSeed uint64 = 1<<32 - 1

// pcgStream is the fixed second word of every chain's PCG state.
const pcgStream uint64 = 0x9e3779b97f4a7c15

// DeriveSeed returns the seed of chain index under base. Seeds for indices
// 0..MaxSeed-1 are pairwise distinct.
func DeriveSeed(base uint64, index int) uint64 {
	return (base%MaxSeed + uint64(index) + 1) % MaxSeed
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgStream))
}

// Spec is everything one chain needs to start. It is owned by the worker
// it is handed to.
type Spec struct {
	Index   int
	Seed    uint64
	Rand    *rand.Rand
	Initial []*search.Branch
}

// Seeder builds chain specs over a shared dataset.
type Seeder struct {
	data      *dataset.ReadCounts
	opts      sampler.Options
	randomize bool
}

// NewSeeder creates a Seeder. When randomize is set, each chain samples its
// own node order from its generator; otherwise every chain uses the same
// deterministic order.
func NewSeeder(data *dataset.ReadCounts, opts sampler.Options, randomize bool) *Seeder {
	return &Seeder{data: data, opts: opts, randomize: randomize}
}

// Spec builds the spec for one chain.
func (s *Seeder) Spec(base uint64, index int) Spec {
	seed := DeriveSeed(base, index)
	rng := newRand(seed)

	smp := sampler.New(s.data, s.opts)
	smp.ComputeFSum()
	smp.SampleNodeOrder(rng, s.randomize)

	return Spec{
		Index:   index,
		Seed:    seed,
		Rand:    rng,
		Initial: []*search.Branch{search.NewBranch(smp)},
	}
}

// Seed builds n specs in ascending index order.
func (s *Seeder) Seed(base uint64, n int) []Spec {
	specs := make([]Spec, n)
	for i := range specs {
		specs[i] = s.Spec(base, i)
	}
	return specs
}
