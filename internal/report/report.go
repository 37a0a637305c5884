// Package report renders the merged result of an ensemble run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/orchard/internal/chain"
	"github.com/Iron-Ham/orchard/internal/errors"
	"github.com/Iron-Ham/orchard/internal/sampler"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ValidFormats returns the supported formats.
func ValidFormats() []Format {
	return []Format{FormatTable, FormatMarkdown, FormatJSON, FormatYAML}
}

// ParseFormat converts a config value to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidFormats() {
		if f == valid {
			return f, nil
		}
	}
	return "", errors.NewValidationError("output.format", s, "must be one of: table, markdown, json, yaml")
}

// Options controls rendering.
type Options struct {
	Format Format
	Top    int // 0 renders every solution
}

// Document is the serialized form of an Aggregate.
type Document struct {
	RunID            string    `json:"run_id" yaml:"run_id"`
	Solutions        []Tree    `json:"solutions" yaml:"solutions"`
	TotalSolutions   int       `json:"total_solutions" yaml:"total_solutions"`
	TotalExplored    int       `json:"total_explored" yaml:"total_explored"`
	TotalCut         int       `json:"total_cut" yaml:"total_cut"`
	ProgressExpected int       `json:"progress_expected" yaml:"progress_expected"`
	ProgressObserved int       `json:"progress_observed" yaml:"progress_observed"`
	DurationMS       int64     `json:"duration_ms" yaml:"duration_ms"`
	Chains           []Summary `json:"chains" yaml:"chains"`
}

// Tree is one ranked solution.
type Tree struct {
	Rank  int     `json:"rank" yaml:"rank"`
	Score float64 `json:"score" yaml:"score"`
	// Parents maps each node id to its parent id; "root" for root children.
	Parents map[string]string `json:"parents,omitempty" yaml:"parents,omitempty"`
	Tree    string            `json:"tree,omitempty" yaml:"tree,omitempty"`
}

// Summary is one chain's line.
type Summary struct {
	Chain      int    `json:"chain" yaml:"chain"`
	Seed       uint64 `json:"seed" yaml:"seed"`
	Solutions  int    `json:"solutions" yaml:"solutions"`
	Explored   int    `json:"explored" yaml:"explored"`
	Cut        int    `json:"cut" yaml:"cut"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
}

// NewDocument converts agg, keeping at most top solutions (0 keeps all).
func NewDocument(agg *chain.Aggregate, top int) Document {
	doc := Document{
		RunID:            agg.RunID,
		TotalSolutions:   len(agg.Solutions),
		TotalExplored:    agg.TotalExplored,
		TotalCut:         agg.TotalCut,
		ProgressExpected: agg.ProgressExpected,
		ProgressObserved: agg.ProgressObserved,
		DurationMS:       agg.Duration.Milliseconds(),
		Solutions:        []Tree{},
		Chains:           make([]Summary, 0, len(agg.Chains)),
	}

	solutions := agg.Solutions
	if top > 0 && top < len(solutions) {
		solutions = solutions[:top]
	}
	for i, s := range solutions {
		t := Tree{Rank: i + 1, Score: s.Score}
		if s.Branch != nil {
			t.Tree = s.Branch.String()
			t.Parents = namedParents(s.Branch.Sampler().Data().IDs, s.Branch.Parents())
		}
		doc.Solutions = append(doc.Solutions, t)
	}

	for _, c := range agg.Chains {
		doc.Chains = append(doc.Chains, Summary{
			Chain:      c.Chain,
			Seed:       c.Seed,
			Solutions:  c.Solutions,
			Explored:   c.Explored,
			Cut:        c.Cut,
			DurationMS: c.Duration.Milliseconds(),
		})
	}
	return doc
}

func namedParents(ids []string, parents []int) map[string]string {
	out := make(map[string]string, len(parents))
	for node, p := range parents {
		switch {
		case p == sampler.Root:
			out[ids[node]] = "root"
		case p >= 0:
			out[ids[node]] = ids[p]
		}
	}
	return out
}

// Render writes agg to w.
func Render(w io.Writer, agg *chain.Aggregate, opts Options) error {
	if agg == nil {
		return errors.NewValidationError("aggregate", nil, "nothing to render")
	}
	doc := NewDocument(agg, opts.Top)

	switch opts.Format {
	case FormatTable, "":
		_, err := io.WriteString(w, renderTables(doc, false))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, renderTables(doc, true))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q: %w", opts.Format, errors.ErrInvalidInput)
	}
}

func newWriter(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)
	return tw
}

func render(tw table.Writer, markdown bool) string {
	if markdown {
		return tw.RenderMarkdown() + "\n"
	}
	return tw.Render() + "\n"
}

func renderTables(doc Document, markdown bool) string {
	var b strings.Builder

	summary := newWriter("Run " + doc.RunID)
	summary.AppendHeader(table.Row{"Chains", "Solutions", "Explored", "Cut", "Progress", "Duration"})
	summary.AppendRow(table.Row{
		len(doc.Chains),
		doc.TotalSolutions,
		doc.TotalExplored,
		doc.TotalCut,
		fmt.Sprintf("%d/%d", doc.ProgressObserved, doc.ProgressExpected),
		(time.Duration(doc.DurationMS) * time.Millisecond).String(),
	})
	b.WriteString(render(summary, markdown))
	b.WriteString("\n")

	trees := newWriter("Ranked trees")
	trees.AppendHeader(table.Row{"Rank", "Score", "Tree"})
	for _, t := range doc.Solutions {
		trees.AppendRow(table.Row{t.Rank, fmt.Sprintf("%.6f", t.Score), t.Tree})
	}
	trees.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 80},
	})
	b.WriteString(render(trees, markdown))
	b.WriteString("\n")

	chains := newWriter("Chains")
	chains.AppendHeader(table.Row{"Chain", "Seed", "Trees", "Explored", "Cut", "Duration"})
	for _, c := range doc.Chains {
		chains.AppendRow(table.Row{
			c.Chain, c.Seed, c.Solutions, c.Explored, c.Cut,
			(time.Duration(c.DurationMS) * time.Millisecond).String(),
		})
	}
	chains.AppendFooter(table.Row{"Total", "", doc.TotalSolutions, doc.TotalExplored, doc.TotalCut, ""})
	b.WriteString(render(chains, markdown))

	return b.String()
}
