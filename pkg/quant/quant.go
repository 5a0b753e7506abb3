// Package quant converts standard-curve signal into quantities and computes
// labeling statistics from corrected isotopologue distributions.
package quant

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"gonum.org/v1/gonum/floats"
)

// Normalization selects how quantities are scaled per sample.
type Normalization string

const (
	// ByVolumeAndWeight scales by soup * weight / (dilution + weight).
	ByVolumeAndWeight Normalization = "volume-and-weight"
	// ByWeight scales by the sample weight only.
	ByWeight Normalization = "weight"
)

// ParseNormalization parses a normalization mode.
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(strings.ToLower(strings.TrimSpace(s))) {
	case ByVolumeAndWeight:
		return ByVolumeAndWeight, nil
	case ByWeight:
		return ByWeight, nil
	}
	return "", fmt.Errorf("unknown normalization %q: %w", s, core.ErrFormat)
}

// Quantify inverts a standard curve. A nil fit, or one with a zero slope,
// yields NaN.
func Quantify(signal float64, fit *calibration.Fit) float64 {
	if fit == nil || fit.Slope == 0 {
		return math.NaN()
	}
	return (signal - fit.Intercept) / fit.Slope
}

// QuantifyAll applies Quantify to every signal.
func QuantifyAll(signals []float64, fit *calibration.Fit) []float64 {
	out := make([]float64, len(signals))
	for i, s := range signals {
		out[i] = Quantify(s, fit)
	}
	return out
}

// NormalizationFactor returns the per-sample divisor that turns a quantity
// into a quantity per mg.
func NormalizationFactor(mode Normalization, weight, dilution, soup float64) float64 {
	if mode == ByWeight {
		return weight
	}
	return soup * weight / (dilution + weight)
}

// LabeledProportion returns 1 - M.0/sum of a corrected distribution, NaN when
// the distribution is empty or sums to zero.
func LabeledProportion(corrected []float64) float64 {
	if len(corrected) == 0 {
		return math.NaN()
	}
	total := floats.Sum(corrected)
	if total == 0 {
		return math.NaN()
	}
	return (total - corrected[0]) / total
}

// Synthesized returns the newly synthesized part of a quantity.
func Synthesized(total, proportion float64) float64 {
	return total * proportion
}

// Ratio divides a by b, NaN when b is zero or either is NaN.
func Ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}
