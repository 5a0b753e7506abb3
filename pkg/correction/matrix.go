// Package correction builds natural-abundance correction matrices and uses
// them to correct measured mass isotopologue distributions (MIDs).
package correction

import (
	"fmt"
	"math"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// purityTolerance bounds how far a purity vector may sum away from 1.
const purityTolerance = 1e-6

// Matrix is a correction matrix of shape (m, n+1): column i is the mass
// distribution expected from a molecule carrying i tracer atoms.
type Matrix struct {
	Dense *mat.Dense

	Tracer      string
	TracerAtoms int

	// Base is the natural mass distribution of the non-tracer moiety, before
	// padding or truncation to the matrix height.
	Base []float64

	// Truncated is set when Base was longer than the matrix height.
	Truncated bool
}

// Height returns the number of mass states the matrix covers (m).
func (m *Matrix) Height() int {
	r, _ := m.Dense.Dims()
	return r
}

// States returns the number of labeling states (n+1).
func (m *Matrix) States() int {
	return m.TracerAtoms + 1
}

// BuildMatrix computes the correction matrix of a molecule for a tracer
// element and a tracer purity vector.
func BuildMatrix(comp core.Composition, tracer string, purity []float64) (*Matrix, error) {
	if err := comp.Validate(); err != nil {
		return nil, fmt.Errorf("failed to build correction matrix: %w", err)
	}
	tracerDist, ok := core.NaturalAbundance(tracer)
	if !ok {
		return nil, fmt.Errorf("tracer %q: %w", tracer, core.ErrUnknownElement)
	}
	if err := ValidatePurity(purity); err != nil {
		return nil, err
	}

	n := comp.Count(tracer)
	if n == 0 {
		return nil, fmt.Errorf("tracer %s in %s: %w", tracer, comp, core.ErrTracerAbsent)
	}

	base := massDistribution(comp, tracer)
	height := 1 + n*(len(tracerDist)-1)

	column0 := make([]float64, height)
	copy(column0, base)

	dense := mat.NewDense(height, n+1, nil)
	for i := 0; i <= n; i++ {
		column := column0
		for range i {
			column = convolve(column, purity, height)
		}
		for range n - i {
			column = convolve(column, tracerDist, height)
		}
		dense.SetCol(i, column)
	}

	return &Matrix{
		Dense:       dense,
		Tracer:      tracer,
		TracerAtoms: n,
		Base:        base,
		Truncated:   len(base) > height,
	}, nil
}

// ValidatePurity checks that purity is a probability distribution over at
// least two states.
func ValidatePurity(purity []float64) error {
	if len(purity) < 2 {
		return fmt.Errorf("purity needs at least 2 states, got %d: %w", len(purity), core.ErrInvalidPurity)
	}
	for i, p := range purity {
		if p < 0 || math.IsNaN(p) {
			return fmt.Errorf("purity[%d] = %v: %w", i, p, core.ErrInvalidPurity)
		}
	}
	if sum := floats.Sum(purity); math.Abs(sum-1) > purityTolerance {
		return fmt.Errorf("purity sums to %v: %w", sum, core.ErrInvalidPurity)
	}
	return nil
}

// massDistribution convolves the natural distributions of every non-tracer
// atom of comp.
func massDistribution(comp core.Composition, tracer string) []float64 {
	result := []float64{1}
	for _, el := range core.Elements() {
		if el == tracer {
			continue
		}
		dist, _ := core.NaturalAbundance(el)
		for range comp.Count(el) {
			result = convolve(result, dist, 0)
		}
	}
	return result
}

// convolve returns the full discrete convolution of a and b. A positive
// limit truncates the result to its first limit entries, zero-padding when
// the full convolution is shorter.
func convolve(a, b []float64, limit int) []float64 {
	size := len(a) + len(b) - 1
	if limit > 0 {
		size = limit
	}
	out := make([]float64, size)
	for i, x := range a {
		if x == 0 {
			continue
		}
		for j, y := range b {
			if i+j >= size {
				break
			}
			out[i+j] += x * y
		}
	}
	return out
}
