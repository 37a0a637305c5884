package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Iron-Ham/orchard/internal/errors"
)

// ssmColumns are the required header columns of an .ssm file.
var ssmColumns = []string{"id", "name", "var_reads", "total_reads", "var_read_prob"}

// Load reads an .ssm file from disk.
func Load(path string) (*ReadCounts, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	rc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rc, nil
}

// Parse reads tab-separated .ssm data. The header names the columns; per-sample
// values inside a column are comma separated. Extra columns are ignored.
func Parse(r io.Reader) (*ReadCounts, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", errors.ErrInvalidDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidDataset, err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range ssmColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", errors.ErrInvalidDataset, name)
		}
	}

	var (
		ids, names     []string
		variant, total [][]int
		omega          [][]float64
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidDataset, err)
		}
		line, _ := reader.FieldPos(0)
		if len(record) < len(header) {
			return nil, fmt.Errorf("%w: line %d: expected %d fields, got %d",
				errors.ErrInvalidDataset, line, len(header), len(record))
		}

		v, err := parseInts(record[col["var_reads"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: var_reads: %v", errors.ErrInvalidDataset, line, err)
		}
		t, err := parseInts(record[col["total_reads"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: total_reads: %v", errors.ErrInvalidDataset, line, err)
		}
		o, err := parseFloats(record[col["var_read_prob"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: var_read_prob: %v", errors.ErrInvalidDataset, line, err)
		}

		ids = append(ids, strings.TrimSpace(record[col["id"]]))
		names = append(names, strings.TrimSpace(record[col["name"]]))
		variant = append(variant, v)
		total = append(total, t)
		omega = append(omega, o)
	}

	return New(ids, names, variant, total, omega)
}

func parseInts(field string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(field), ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(field string) ([]float64, error) {
	parts := strings.Split(strings.TrimSpace(field), ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}
