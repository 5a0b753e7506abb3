// Package reader holds the CSV plumbing shared by the table and template
// readers.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// NewCSV returns a CSV reader over r decoded from the named character set.
// An empty encoding means UTF-8. Rows may have varying lengths.
func NewCSV(r io.Reader, encoding string) (*csv.Reader, error) {
	if encoding == "" {
		encoding = "utf-8"
	}
	decoded, err := charset.NewReaderLabel(encoding, r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode input as %q: %w", encoding, err)
	}
	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr, nil
}

// CleanHeader trims whitespace and a leading byte order mark from header
// cells.
func CleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// HeaderIndex maps lower-cased header names to their column.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(h)
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// Cell returns the trimmed cell of a record, or "" past its end.
func Cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// ParseFloat parses a numeric cell. Empty cells and the usual spreadsheet
// placeholders are reported as missing (NaN, false) without error.
func ParseFloat(cell string) (float64, bool, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "n/a", "na", "#n/a", "-":
		return math.NaN(), false, nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return math.NaN(), false, err
	}
	return v, true, nil
}
