package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/orchard/internal/chain"
	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/sampler"
	"github.com/Iron-Ham/orchard/internal/search"
)

const twoNodes = "id\tname\tvar_reads\ttotal_reads\tvar_read_prob\n" +
	"s0\tA\t40\t100\t0.5\n" +
	"s1\tB\t20\t100\t0.5\n"

func testAggregate(t *testing.T) *chain.Aggregate {
	t.Helper()

	data, err := dataset.Parse(strings.NewReader(twoNodes))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	s := sampler.New(data, sampler.Options{})
	s.SampleNodeOrder(nil, false)
	root := search.NewBranch(s)
	chainTree := root.Extend(sampler.Root).Extend(0)
	flat := root.Extend(sampler.Root).Extend(sampler.Root)

	agg := chain.Merge(
		chain.Result{Chain: 0, Seed: 8, Explored: 3, Cut: 1, Duration: 1500 * time.Millisecond,
			Solutions: []search.Scored{{Score: chainTree.Score(), Branch: chainTree}}},
		chain.Result{Chain: 1, Seed: 9, Explored: 2, Cut: 0, Duration: time.Second,
			Solutions: []search.Scored{{Score: 1, Branch: flat}}},
	)
	agg.RunID = "run-1"
	agg.ProgressExpected = 2
	agg.ProgressObserved = 2
	return agg
}

func TestParseFormat(t *testing.T) {
	for _, f := range ValidFormats() {
		got, err := ParseFormat(" " + strings.ToUpper(string(f)))
		if err != nil || got != f {
			t.Errorf("ParseFormat(%q) = (%q, %v)", f, got, err)
		}
	}
	if _, err := ParseFormat("csv"); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("ParseFormat(csv) error = %v, want ErrInvalidInput", err)
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(testAggregate(t), 0)

	want := []Tree{
		{Rank: 1, Score: 0, Parents: map[string]string{"s0": "root", "s1": "s0"}, Tree: "s0<-root s1<-s0"},
		{Rank: 2, Score: 1, Parents: map[string]string{"s0": "root", "s1": "root"}, Tree: "s0<-root s1<-root"},
	}
	if diff := cmp.Diff(want, doc.Solutions); diff != "" {
		t.Errorf("solutions mismatch (-want +got):\n%s", diff)
	}
	if doc.TotalExplored != 5 || doc.TotalCut != 1 {
		t.Errorf("totals = (%d, %d), want (5, 1)", doc.TotalExplored, doc.TotalCut)
	}
	if len(doc.Chains) != 2 || doc.Chains[0].DurationMS != 1500 {
		t.Errorf("chains = %+v", doc.Chains)
	}
}

func TestNewDocument_Top(t *testing.T) {
	doc := NewDocument(testAggregate(t), 1)
	if len(doc.Solutions) != 1 || doc.TotalSolutions != 2 {
		t.Errorf("len(Solutions) = %d, TotalSolutions = %d; want 1, 2", len(doc.Solutions), doc.TotalSolutions)
	}
}

func TestRender(t *testing.T) {
	agg := testAggregate(t)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, agg, Options{Format: FormatTable}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		out := strings.ToLower(buf.String())
		for _, want := range []string{"run run-1", "ranked trees", "s0<-root s1<-s0", "chains", "total", "2/2"} {
			if !strings.Contains(out, want) {
				t.Errorf("table output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, agg, Options{Format: FormatMarkdown}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if !strings.Contains(strings.ToLower(buf.String()), "| rank |") {
			t.Errorf("markdown output missing header row:\n%s", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, agg, Options{Format: FormatJSON}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		var doc Document
		if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if doc.RunID != "run-1" || len(doc.Solutions) != 2 {
			t.Errorf("decoded = %+v", doc)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Render(&buf, agg, Options{Format: FormatYAML, Top: 1}); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		var doc Document
		if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
			t.Fatalf("output is not YAML: %v", err)
		}
		if len(doc.Solutions) != 1 || doc.Solutions[0].Tree != "s0<-root s1<-s0" {
			t.Errorf("decoded solutions = %+v", doc.Solutions)
		}
	})

	t.Run("nil aggregate", func(t *testing.T) {
		if err := Render(&bytes.Buffer{}, nil, Options{}); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Render(nil) error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if err := Render(&bytes.Buffer{}, agg, Options{Format: "csv"}); !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Render(csv) error = %v, want ErrInvalidInput", err)
		}
	})
}
