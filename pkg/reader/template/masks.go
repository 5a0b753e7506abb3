package template

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader"
)

// Masks holds curated standard-curve masks: cluster name -> 1-based standard
// point -> included.
type Masks map[string]map[int]bool

// Mask returns the mask of a cluster over n standards. Points not listed are
// included.
func (m Masks) Mask(name string, n int) ([]bool, bool) {
	points, ok := m[name]
	if !ok {
		return nil, false
	}
	mask := make([]bool, n)
	for i := range mask {
		included, listed := points[i+1]
		mask[i] = !listed || included
	}
	return mask, true
}

// ReadMasks reads a cluster,point,included CSV.
func ReadMasks(r io.Reader, encoding string) (Masks, error) {
	cr, err := reader.NewCSV(r, encoding)
	if err != nil {
		return nil, err
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Masks{}, nil
		}
		return nil, fmt.Errorf("failed to read mask header: %v: %w", err, core.ErrFormat)
	}
	idx := reader.HeaderIndex(reader.CleanHeader(header))
	for _, col := range []string{"cluster", "point", "included"} {
		if _, ok := idx[col]; !ok {
			return nil, &core.ValidationError{
				Field:   "masks",
				Message: fmt.Sprintf("missing column %q", col),
			}
		}
	}

	masks := make(Masks)
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

		name := reader.Cell(record, idx["cluster"])
		if name == "" {
			continue
		}
		point, err := strconv.Atoi(reader.Cell(record, idx["point"]))
		if err != nil || point < 1 {
			return nil, fmt.Errorf("line %d: invalid point %q: %w", lineNum, reader.Cell(record, idx["point"]), core.ErrFormat)
		}
		included, err := parseBool(reader.Cell(record, idx["included"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if masks[name] == nil {
			masks[name] = make(map[int]bool)
		}
		masks[name][point] = included
	}
	return masks, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "x":
		return true, nil
	case "0", "false", "no", "n", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid included value %q: %w", s, core.ErrFormat)
}
