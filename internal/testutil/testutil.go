// Package testutil provides shared read-count fixtures for orchard tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Iron-Ham/orchard/internal/dataset"
)

// ssmHeader is the column header of every fixture.
const ssmHeader = "id\tname\tvar_reads\ttotal_reads\tvar_read_prob\n"

// ThreeNodeSSM has three supervariants over two samples.
const ThreeNodeSSM = ssmHeader +
	"s0\tA\t30,10\t100,100\t0.5,0.5\n" +
	"s1\tB\t50,40\t100,100\t0.5,0.5\n" +
	"s2\tC\t10,20\t100,100\t0.5,0.5\n"

// FourNodeSSM extends ThreeNodeSSM with a low-prevalence fourth node.
const FourNodeSSM = ThreeNodeSSM +
	"s3\tD\t5,12\t100,100\t0.5,0.5\n"

// Dataset parses content, failing the test on error.
func Dataset(t *testing.T, content string) *dataset.ReadCounts {
	t.Helper()

	data, err := dataset.Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	return data
}

// WriteDataset writes content to an .ssm file in a temporary directory and
// returns its path.
func WriteDataset(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.ssm")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}
