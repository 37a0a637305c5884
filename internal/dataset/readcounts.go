// Package dataset holds the read-count data shared read-only by every
// search chain.
package dataset

import (
	"fmt"

	"github.com/Iron-Ham/orchard/internal/errors"
)

// ReadCounts is the per-node, per-sample read data for one run. Rows are
// nodes (supervariants), columns are samples. It must not be modified once
// handed to a run.
type ReadCounts struct {
	IDs     []string
	Names   []string
	Variant [][]int
	Total   [][]int
	Omega   [][]float64

	// F is the estimated cellular prevalence derived from the counts.
	F [][]float64
}

// New validates the counts and derives F.
func New(ids, names []string, variant, total [][]int, omega [][]float64) (*ReadCounts, error) {
	rc := &ReadCounts{
		IDs:     ids,
		Names:   names,
		Variant: variant,
		Total:   total,
		Omega:   omega,
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	rc.F = computeF(variant, total, omega)
	return rc, nil
}

// NumNodes returns the number of nodes.
func (rc *ReadCounts) NumNodes() int { return len(rc.IDs) }

// NumSamples returns the number of samples.
func (rc *ReadCounts) NumSamples() int {
	if len(rc.Variant) == 0 {
		return 0
	}
	return len(rc.Variant[0])
}

func (rc *ReadCounts) validate() error {
	n := len(rc.IDs)
	if n == 0 {
		return fmt.Errorf("%w: no nodes", errors.ErrInvalidDataset)
	}
	if len(rc.Names) != n || len(rc.Variant) != n || len(rc.Total) != n || len(rc.Omega) != n {
		return fmt.Errorf("%w: row count mismatch", errors.ErrInvalidDataset)
	}

	samples := len(rc.Variant[0])
	if samples == 0 {
		return fmt.Errorf("%w: no samples", errors.ErrInvalidDataset)
	}

	seen := make(map[string]bool, n)
	for i, id := range rc.IDs {
		if seen[id] {
			return fmt.Errorf("%w: duplicate id %q", errors.ErrInvalidDataset, id)
		}
		seen[id] = true

		if len(rc.Variant[i]) != samples || len(rc.Total[i]) != samples || len(rc.Omega[i]) != samples {
			return fmt.Errorf("%w: node %q has inconsistent sample count", errors.ErrInvalidDataset, id)
		}
		for j := 0; j < samples; j++ {
			v, t, o := rc.Variant[i][j], rc.Total[i][j], rc.Omega[i][j]
			if v < 0 || t < 0 || v > t {
				return fmt.Errorf("%w: node %q sample %d: need 0 <= var_reads <= total_reads, got %d/%d",
					errors.ErrInvalidDataset, id, j, v, t)
			}
			if o <= 0 || o > 1 {
				return fmt.Errorf("%w: node %q sample %d: var_read_prob must be in (0, 1], got %v",
					errors.ErrInvalidDataset, id, j, o)
			}
		}
	}
	return nil
}

// computeF estimates prevalence as V / (omega * T), clipped to [0, 1].
func computeF(variant, total [][]int, omega [][]float64) [][]float64 {
	f := make([][]float64, len(variant))
	for i := range variant {
		f[i] = make([]float64, len(variant[i]))
		for j := range variant[i] {
			if total[i][j] == 0 {
				continue
			}
			f[i][j] = min(1, float64(variant[i][j])/(omega[i][j]*float64(total[i][j])))
		}
	}
	return f
}
