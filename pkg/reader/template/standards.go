package template

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader"
)

const (
	colChain  = "chain"
	colMW     = "mw"
	colStock  = "stock conc (ug/ul)"
	colWeight = "weight (%)"
	colExtra  = "extra"
)

// ReadStandards reads the standards sheet: Chain, MW, Stock conc (ug/ul),
// Weight (%) and an optional Extra column. Headers are matched without
// regard to case.
func ReadStandards(r io.Reader, encoding string) ([]calibration.StandardSpec, error) {
	cr, err := reader.NewCSV(r, encoding)
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("standards sheet is empty: %w", core.ErrFormat)
		}
		return nil, fmt.Errorf("failed to read standards header: %v: %w", err, core.ErrFormat)
	}
	idx := reader.HeaderIndex(reader.CleanHeader(header))

	var missing []string
	for _, col := range []string{colChain, colMW, colStock, colWeight} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &core.ValidationError{
			Field:   "STANDARD",
			Message: "missing columns: " + strings.Join(missing, ", "),
		}
	}
	extraCol := -1
	if i, ok := idx[colExtra]; ok {
		extraCol = i
	}

	var specs []calibration.StandardSpec
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

		chain := strings.TrimPrefix(reader.Cell(record, idx[colChain]), "C")
		if chain == "" {
			continue
		}

		spec := calibration.StandardSpec{Chain: chain}
		fields := []struct {
			name     string
			col      int
			dst      *float64
			required bool
		}{
			{"MW", idx[colMW], &spec.MW, true},
			{"Stock conc (ug/ul)", idx[colStock], &spec.StockConc, true},
			{"Weight (%)", idx[colWeight], &spec.WeightPercent, true},
			{"Extra", extraCol, &spec.Extra, false},
		}
		for _, f := range fields {
			v, ok, err := reader.ParseFloat(reader.Cell(record, f.col))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", lineNum, f.name, reader.Cell(record, f.col), core.ErrFormat)
			}
			if !ok {
				if f.required {
					return nil, &core.ValidationError{
						Field:   "STANDARD",
						Message: fmt.Sprintf("line %d: standard C%s has no %s", lineNum, chain, f.name),
					}
				}
				continue
			}
			*f.dst = v
		}
		if spec.MW <= 0 {
			return nil, &core.ValidationError{
				Field:   "STANDARD",
				Message: fmt.Sprintf("line %d: standard C%s has non-positive MW", lineNum, chain),
			}
		}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("standards sheet declares no standards: %w", core.ErrFormat)
	}
	return specs, nil
}
