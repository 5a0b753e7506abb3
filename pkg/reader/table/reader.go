// Package table provides a streaming reader for instrument data tables
// exported as CSV.
//
// The first header row holds the ion column identifiers. The meta columns
// ("Name", "Data File") are named either on that row or on a second header
// row, as produced by the instrument software.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/cluster"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader"
)

// Row is one data row.
type Row struct {
	Line     int
	Name     string
	DataFile string
	// Values are aligned with Reader.Columns. Missing cells are 0.
	Values []float64
}

// Data is a fully read table.
type Data struct {
	Columns []string
	Rows    []Row
}

// Names returns the sample names in row order.
func (d *Data) Names() []string {
	names := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		names[i] = r.Name
	}
	return names
}

// Reader provides streaming access to a data table
type Reader struct {
	csv     *csv.Reader
	columns []string
	ionIdx  []int
	nameCol int
	fileCol int
	lineNum int
	current *Row
	err     error
}

// NewReader reads the header rows and returns a reader positioned at the
// first data row.
func NewReader(r io.Reader, encoding string) (*Reader, error) {
	cr, err := reader.NewCSV(r, encoding)
	if err != nil {
		return nil, err
	}
	tr := &Reader{csv: cr, nameCol: -1, fileCol: -1}
	if err := tr.readHeader(); err != nil {
		return nil, err
	}
	return tr, nil
}

func (r *Reader) readHeader() error {
	first, err := r.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("data table is empty: %w", core.ErrFormat)
		}
		return err
	}
	first = reader.CleanHeader(first)

	for i, cell := range first {
		if cluster.IsIonColumn(cell) {
			r.ionIdx = append(r.ionIdx, i)
			r.columns = append(r.columns, cell)
		}
	}
	if len(r.ionIdx) == 0 {
		return fmt.Errorf("line %d: no ion column identifiers in header: %w", r.lineNum, core.ErrFormat)
	}

	meta := first
	if !r.findMeta(meta) {
		second, err := r.read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("data table has no Name column: %w", core.ErrFormat)
			}
			return err
		}
		meta = reader.CleanHeader(second)
		if !r.findMeta(meta) {
			return fmt.Errorf("line %d: data table has no Name column: %w", r.lineNum, core.ErrFormat)
		}
	}
	return nil
}

// findMeta locates the meta columns on a header row.
func (r *Reader) findMeta(header []string) bool {
	for i, cell := range header {
		switch strings.ToLower(cell) {
		case "name":
			if r.nameCol < 0 {
				r.nameCol = i
			}
		case "data file":
			if r.fileCol < 0 {
				r.fileCol = i
			}
		}
	}
	return r.nameCol >= 0
}

func (r *Reader) read() ([]string, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("line %d: %v: %w", r.lineNum+1, err, core.ErrFormat)
	}
	r.lineNum++
	return record, nil
}

// Columns returns the ion column identifiers in header order.
func (r *Reader) Columns() []string {
	return r.columns
}

// Next advances to the next data row. Returns false at the end of input or
// on error. Rows without a sample name are skipped.
func (r *Reader) Next() bool {
	r.current = nil
	for {
		record, err := r.read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return false
		}

		name := reader.Cell(record, r.nameCol)
		if name == "" {
			continue
		}

		row := &Row{
			Line:     r.lineNum,
			Name:     name,
			DataFile: reader.Cell(record, r.fileCol),
			Values:   make([]float64, len(r.ionIdx)),
		}
		for j, idx := range r.ionIdx {
			v, ok, err := reader.ParseFloat(reader.Cell(record, idx))
			if err != nil {
				r.err = fmt.Errorf("line %d: column %q: invalid number %q: %w",
					r.lineNum, r.columns[j], reader.Cell(record, idx), core.ErrFormat)
				return false
			}
			if ok {
				row.Values[j] = v
			}
		}
		r.current = row
		return true
	}
}

// Row returns the current row
func (r *Reader) Row() *Row {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// ReadAll reads a whole data table.
func ReadAll(in io.Reader, encoding string) (*Data, error) {
	r, err := NewReader(in, encoding)
	if err != nil {
		return nil, err
	}
	data := &Data{Columns: append([]string(nil), r.Columns()...)}
	for r.Next() {
		data.Rows = append(data.Rows, *r.Row())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("failed to read data table: %w", err)
	}
	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("data table has no rows: %w", core.ErrFormat)
	}
	return data, nil
}
