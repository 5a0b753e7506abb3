package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/google/go-cmp/cmp"
)

func TestFitLine(t *testing.T) {
	tests := []struct {
		name          string
		x, y          []float64
		wantSlope     float64
		wantIntercept float64
		wantR2        float64
	}{
		{
			name:          "exact line",
			x:             []float64{1, 2, 3, 4},
			y:             []float64{5, 7, 9, 11},
			wantSlope:     2,
			wantIntercept: 3,
			wantR2:        1,
		},
		{
			name:          "through origin",
			x:             []float64{0, 10, 20},
			y:             []float64{0, 5, 10},
			wantSlope:     0.5,
			wantIntercept: 0,
			wantR2:        1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slope, intercept, r2 := FitLine(tt.x, tt.y)
			if math.Abs(slope-tt.wantSlope) > 1e-9 {
				t.Errorf("slope = %v, want %v", slope, tt.wantSlope)
			}
			if math.Abs(intercept-tt.wantIntercept) > 1e-9 {
				t.Errorf("intercept = %v, want %v", intercept, tt.wantIntercept)
			}
			if math.Abs(r2-tt.wantR2) > 1e-9 {
				t.Errorf("r2 = %v, want %v", r2, tt.wantR2)
			}
		})
	}
}

func TestFitLineNoisy(t *testing.T) {
	_, _, r2 := FitLine([]float64{1, 2, 3, 4}, []float64{2.1, 3.9, 6.2, 7.8})
	if r2 <= 0.9 || r2 >= 1 {
		t.Errorf("r2 = %v, want in (0.9, 1)", r2)
	}
}

func TestDefaultMask(t *testing.T) {
	nan := math.NaN()
	x := []float64{1, nan, 3, 4, 5}
	y := []float64{2, 4, 0, nan, 10}
	want := []bool{true, false, false, false, true}
	if diff := cmp.Diff(want, DefaultMask(x, y)); diff != "" {
		t.Errorf("DefaultMask() mismatch (-want +got):\n%s", diff)
	}
}

func TestFitterFit(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name       string
		x, y       []float64
		wantPoints int
		wantErr    error
	}{
		{
			name:       "all points usable",
			x:          []float64{1, 5, 10, 20, 40, 80},
			y:          []float64{5, 13, 23, 43, 83, 163},
			wantPoints: 6,
		},
		{
			name:       "zero and missing signals masked",
			x:          []float64{1, 5, 10, 20, 40, 80},
			y:          []float64{0, 13, nan, 43, 83, 163},
			wantPoints: 4,
		},
		{
			name:    "two points are not enough",
			x:       []float64{1, 5, 10},
			y:       []float64{0, 13, 23},
			wantErr: core.ErrInsufficientData,
		},
		{
			name:    "length mismatch",
			x:       []float64{1, 5, 10},
			y:       []float64{5, 13},
			wantErr: core.ErrSizeMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit, err := NewFitter(nil).Fit("C16:0 (270)", tt.x, tt.y)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fit() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fit() unexpected error: %v", err)
			}
			if fit.Points() != tt.wantPoints {
				t.Errorf("Points() = %d, want %d", fit.Points(), tt.wantPoints)
			}
			if math.Abs(fit.Slope-2) > 1e-9 || math.Abs(fit.Intercept-3) > 1e-9 {
				t.Errorf("fit = %vx + %v, want 2x + 3", fit.Slope, fit.Intercept)
			}
		})
	}
}

func TestFitterCuratedMask(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	// The last point is an outlier that the curated mask drops.
	y := []float64{5, 7, 9, 11, 100}

	f := NewFitter(nil)
	f.SetMask("C16:0 (270)", []bool{true, true, true, true, false})

	original, err := f.Fit("C16:0 (270)", x, y)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if original.Points() != 5 {
		t.Errorf("original Points() = %d, want 5", original.Points())
	}

	f.UseModified = true
	modified, err := f.Fit("C16:0 (270)", x, y)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if modified.Points() != 4 {
		t.Errorf("modified Points() = %d, want 4", modified.Points())
	}
	if math.Abs(modified.Slope-2) > 1e-9 || math.Abs(modified.Intercept-3) > 1e-9 {
		t.Errorf("modified fit = %vx + %v, want 2x + 3", modified.Slope, modified.Intercept)
	}

	// Clusters without a curated mask fall back to the default one.
	other, err := f.Fit("C18:0 (298)", x, y)
	if err != nil {
		t.Fatalf("Fit() unexpected error: %v", err)
	}
	if other.Points() != 5 {
		t.Errorf("fallback Points() = %d, want 5", other.Points())
	}

	f.SetMask("C16:0 (270)", []bool{true, false, false, false, false})
	if _, err := f.Fit("C16:0 (270)", x, y); !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Fit() error = %v, want ErrInsufficientData", err)
	}
}
