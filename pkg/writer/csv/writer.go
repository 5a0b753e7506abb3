// Package csv writes analysis results as a directory of CSV files, one per
// result table.
package csv

import (
	stdcsv "encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
)

// LogName is the file name stem of the parameter log.
const LogName = "Log"

// ModifiedSuffix marks results computed with curated masks.
const ModifiedSuffix = "_modified"

// Writer writes result tables into a directory
type Writer struct {
	dir string
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteResults writes every table and the parameter log, returning the
// files written.
func (w *Writer) WriteResults(res *experiment.Results) ([]string, error) {
	suffix := ""
	if res.Modified {
		suffix = ModifiedSuffix
	}

	var files []string
	for _, t := range res.Tables {
		path, err := w.WriteTable(t, t.Name+suffix)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	path, err := w.WriteLog(res.Log, LogName+suffix)
	if err != nil {
		return files, err
	}
	return append(files, path), nil
}

// WriteTable writes one table as <stem>.csv. Missing values are empty cells.
func (w *Writer) WriteTable(t *core.Table, stem string) (string, error) {
	records := make([][]string, 0, len(t.Rows)+1)
	header := append([]string{"SampleID", "SampleName", "Comments"}, t.Columns...)
	records = append(records, header)
	for _, row := range t.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.SampleID, row.SampleName, row.Comments)
		for _, v := range row.Values {
			record = append(record, formatValue(v))
		}
		records = append(records, record)
	}
	return w.write(stem, records)
}

// WriteLog writes the parameter log, one parameter per row.
func (w *Writer) WriteLog(params []experiment.Parameter, stem string) (string, error) {
	records := make([][]string, 0, len(params))
	for _, p := range params {
		records = append(records, append([]string{p.Name}, p.Values...))
	}
	return w.write(stem, records)
}

func (w *Writer) write(stem string, records [][]string) (string, error) {
	path := filepath.Join(w.dir, stem+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	cw := stdcsv.NewWriter(f)
	if err := cw.WriteAll(records); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
