package core

import (
	"fmt"
	"math"
	"strings"
)

// Table is a named result table keyed by sample and column, the form in which
// results are handed to storage and reporting.
type Table struct {
	Name    string
	Columns []string
	Rows    []TableRow
}

// TableRow holds one sample's values, aligned with Table.Columns. Missing
// values are NaN.
type TableRow struct {
	SampleID   string
	SampleName string
	Comments   string
	Values     []float64
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// AddRow appends a row; values are copied.
func (t *Table) AddRow(id, name, comments string, values []float64) {
	v := make([]float64, len(values))
	copy(v, values)
	t.Rows = append(t.Rows, TableRow{SampleID: id, SampleName: name, Comments: comments, Values: v})
}

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(column string) (int, bool) {
	for i, c := range t.Columns {
		if c == column {
			return i, true
		}
	}
	return 0, false
}

// Column returns the values of one column across all rows.
func (t *Table) Column(column string) ([]float64, bool) {
	j, ok := t.ColumnIndex(column)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[j]
	}
	return out, true
}

// Validate checks that the table is rectangular and has unique column names.
// Infinite values are rejected; NaN marks a missing value and is allowed.
func (t *Table) Validate() error {
	var errs []string

	if t.Name == "" {
		errs = append(errs, "name is required")
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c] {
			errs = append(errs, fmt.Sprintf("duplicate column %q", c))
		}
		seen[c] = true
	}
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Columns) {
			errs = append(errs, fmt.Sprintf("row %d has %d values, want %d", i, len(r.Values), len(t.Columns)))
			continue
		}
		for j, v := range r.Values {
			if math.IsInf(v, 0) {
				errs = append(errs, fmt.Sprintf("row %d column %q is infinite", i, t.Columns[j]))
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{
			Field:   "Table " + t.Name,
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}
