package dataset

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	rc, err := Load(filepath.Join("testdata", "small.ssm"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if rc.NumNodes() != 4 {
		t.Errorf("NumNodes() = %d, want 4", rc.NumNodes())
	}
	if rc.NumSamples() != 2 {
		t.Errorf("NumSamples() = %d, want 2", rc.NumSamples())
	}
	if diff := cmp.Diff([]string{"s0", "s1", "s2", "s3"}, rc.IDs); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}

	wantF := [][]float64{
		{1, 0.8},
		{0.6, 0.2},
		{0.2, 0.4},
		{0.1, 0},
	}
	approx := cmp.Comparer(func(a, b float64) bool { return math.Abs(a-b) < 1e-9 })
	if diff := cmp.Diff(wantF, rc.F, approx); diff != "" {
		t.Errorf("F mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ClipsPrevalence(t *testing.T) {
	in := "id\tname\tvar_reads\ttotal_reads\tvar_read_prob\ns0\tA\t90\t100\t0.5\n"
	rc, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rc.F[0][0] != 1 {
		t.Errorf("F[0][0] = %v, want 1 (clipped)", rc.F[0][0])
	}
}

func TestParse_Errors(t *testing.T) {
	header := "id\tname\tvar_reads\ttotal_reads\tvar_read_prob\n"

	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty", "", "empty input"},
		{"missing column", "id\tname\tvar_reads\ttotal_reads\n", `missing column "var_read_prob"`},
		{"no rows", header, "no nodes"},
		{"bad int", header + "s0\tA\tx\t10\t0.5\n", "line 2: var_reads"},
		{"var above total", header + "s0\tA\t11\t10\t0.5\n", "var_reads <= total_reads"},
		{"bad omega", header + "s0\tA\t1\t10\t0\n", "var_read_prob must be in (0, 1]"},
		{"sample mismatch", header + "s0\tA\t1,2\t10\t0.5\n", "inconsistent sample count"},
		{"duplicate id", header + "s0\tA\t1\t10\t0.5\ns0\tB\t1\t10\t0.5\n", `duplicate id "s0"`},
		{"short row", header + "s0\tA\t1\n", "expected 5 fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !errors.Is(err, errors.ErrInvalidDataset) {
				t.Errorf("error %v does not wrap ErrInvalidDataset", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.ssm")); err == nil {
		t.Fatal("Load() on missing file should fail")
	}
}
