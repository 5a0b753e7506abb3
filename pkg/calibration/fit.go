package calibration

import (
	"fmt"
	"math"
	"sync"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// MinPoints is the number of usable standards a curve needs.
const MinPoints = 3

// Fit is a fitted standard curve, signal = Slope * quantity + Intercept.
type Fit struct {
	Name      string
	Slope     float64
	Intercept float64
	R2        float64
	// Mask marks the standards used for the fit.
	Mask   []bool
	Source Source
}

// Points returns the number of standards used.
func (f *Fit) Points() int {
	n := 0
	for _, ok := range f.Mask {
		if ok {
			n++
		}
	}
	return n
}

// FitLine fits y = slope*x + intercept by ordinary least squares.
func FitLine(x, y []float64) (slope, intercept, r2 float64) {
	intercept, slope = stat.LinearRegression(x, y, nil, false)
	r2 = stat.RSquared(x, y, nil, intercept, slope)
	return slope, intercept, r2
}

// DefaultMask keeps the points with a known quantity and a non-zero signal.
func DefaultMask(x, y []float64) []bool {
	mask := make([]bool, len(x))
	for i := range x {
		mask[i] = !math.IsNaN(x[i]) && !math.IsNaN(y[i]) && y[i] != 0
	}
	return mask
}

// Fitter fits standard curves, optionally with curated masks.
type Fitter struct {
	// UseModified makes Fit use the curated mask of a cluster when one was
	// set, instead of the default mask.
	UseModified bool
	Logger      *zap.Logger

	mu    sync.RWMutex
	masks map[string][]bool
}

// NewFitter creates a fitter.
func NewFitter(logger *zap.Logger) *Fitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fitter{Logger: logger, masks: make(map[string][]bool)}
}

// SetMask stores a curated mask for a cluster.
func (f *Fitter) SetMask(name string, mask []bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.masks == nil {
		f.masks = make(map[string][]bool)
	}
	f.masks[name] = append([]bool(nil), mask...)
}

// Mask returns the curated mask of a cluster.
func (f *Fitter) Mask(name string) ([]bool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.masks[name]
	if !ok {
		return nil, false
	}
	return append([]bool(nil), m...), true
}

// Fit fits the standard curve of one cluster from standard quantities x and
// signals y. It returns core.ErrInsufficientData when fewer than MinPoints
// points remain after masking.
func (f *Fitter) Fit(name string, x, y []float64) (*Fit, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("standard curve %s: %d quantities for %d signals: %w",
			name, len(x), len(y), core.ErrSizeMismatch)
	}

	mask := DefaultMask(x, y)
	if f.UseModified {
		if curated, ok := f.Mask(name); ok {
			if len(curated) == len(mask) {
				for i := range mask {
					mask[i] = mask[i] && curated[i]
				}
			} else {
				f.logger().Warn("curated mask length does not match standards, using default mask",
					zap.String("cluster", name),
					zap.Int("mask", len(curated)),
					zap.Int("standards", len(mask)))
			}
		}
	}

	var xs, ys []float64
	for i, ok := range mask {
		if ok {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	if len(xs) < MinPoints {
		return nil, fmt.Errorf("standard curve %s has %d usable points, need %d: %w",
			name, len(xs), MinPoints, core.ErrInsufficientData)
	}

	slope, intercept, r2 := FitLine(xs, ys)
	return &Fit{
		Name:      name,
		Slope:     slope,
		Intercept: intercept,
		R2:        r2,
		Mask:      mask,
	}, nil
}

func (f *Fitter) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
