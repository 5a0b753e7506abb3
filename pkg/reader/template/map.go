// Package template reads the experiment template: the sample map, the
// standards sheet and optional curated fit masks, each exported as CSV.
package template

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader"
)

// MapEntry is one declared sample of the template map.
type MapEntry struct {
	Line       int
	SampleID   string
	SampleName string
	// Weight defaults to 1 when the cell is empty.
	Weight   float64
	Comments string
	// Extra holds the other numeric columns (per-sample volumes). Empty cells
	// are absent from the map.
	Extra map[string]float64
}

var mapColumns = map[string]bool{
	"sampleid":     true,
	"samplename":   true,
	"sampleweight": true,
	"comments":     true,
}

// ReadMap reads the sample map. Rows without a SampleName are skipped.
func ReadMap(r io.Reader, encoding string) ([]MapEntry, error) {
	cr, err := reader.NewCSV(r, encoding)
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("template map is empty: %w", core.ErrFormat)
		}
		return nil, fmt.Errorf("failed to read template map header: %v: %w", err, core.ErrFormat)
	}
	header = reader.CleanHeader(header)
	idx := reader.HeaderIndex(header)

	for _, required := range []string{"sampleid", "samplename"} {
		if _, ok := idx[required]; !ok {
			return nil, &core.ValidationError{
				Field:   "MAP",
				Message: fmt.Sprintf("missing column %q", required),
			}
		}
	}
	weightCol := -1
	if i, ok := idx["sampleweight"]; ok {
		weightCol = i
	}
	commentsCol := -1
	if i, ok := idx["comments"]; ok {
		commentsCol = i
	}

	var entries []MapEntry
	lineNum := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		lineNum++
		if err != nil {
			return nil, fmt.Errorf("line %d: %v: %w", lineNum, err, core.ErrFormat)
		}

		name := reader.Cell(record, idx["samplename"])
		if name == "" {
			continue
		}
		entry := MapEntry{
			Line:       lineNum,
			SampleID:   reader.Cell(record, idx["sampleid"]),
			SampleName: name,
			Weight:     1,
			Comments:   reader.Cell(record, commentsCol),
			Extra:      make(map[string]float64),
		}
		if entry.SampleID == "" {
			return nil, &core.ValidationError{
				Field:   "MAP",
				Message: fmt.Sprintf("line %d: sample %q has no SampleID", lineNum, name),
			}
		}

		if weightCol >= 0 {
			w, ok, err := reader.ParseFloat(reader.Cell(record, weightCol))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid SampleWeight %q: %w", lineNum, reader.Cell(record, weightCol), core.ErrFormat)
			}
			if ok {
				entry.Weight = w
			}
		}

		for i, col := range header {
			if col == "" || mapColumns[strings.ToLower(col)] {
				continue
			}
			v, ok, err := reader.ParseFloat(reader.Cell(record, i))
			if err != nil || !ok {
				continue
			}
			entry.Extra[col] = v
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("template map declares no samples: %w", core.ErrFormat)
	}
	return entries, nil
}

// Suffix returns the part of the SampleID after the first underscore, which
// pairs the entry with its data table row.
func (e MapEntry) Suffix() string {
	_, after, found := strings.Cut(e.SampleID, "_")
	if !found {
		return e.SampleID
	}
	return after
}
