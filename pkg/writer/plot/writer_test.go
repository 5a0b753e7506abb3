package plot

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	gonumplot "gonum.org/v1/plot"
)

func testCurve(name string) experiment.Curve {
	return experiment.Curve{
		Fit: &calibration.Fit{
			Name:      name,
			Slope:     2,
			Intercept: 0.1,
			R2:        0.999,
			Mask:      []bool{true, true, false, true},
		},
		X:       []float64{1, 2, 4, 8},
		Y:       []float64{2.1, 4.1, 9, 16.1},
		SampleX: []float64{3, math.NaN()},
		SampleY: []float64{6.1, 0.5},
	}
}

func TestCurvePlot(t *testing.T) {
	tests := []struct {
		name        string
		withSamples bool
		wantXMax    float64
	}{
		{"standards", false, 8},
		{"with samples", true, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CurvePlot(testCurve("C16:0 (270)"), tt.withSamples)
			if err != nil {
				t.Fatalf("CurvePlot() error = %v", err)
			}
			if p.Title.Text != "C16:0 (270)" {
				t.Errorf("Title = %q", p.Title.Text)
			}
			if p.X.Min != 1 || p.X.Max != tt.wantXMax {
				t.Errorf("X range = [%g, %g], want [1, %g]", p.X.Min, p.X.Max, tt.wantXMax)
			}
		})
	}
}

func TestCurvePlotAllMissing(t *testing.T) {
	c := experiment.Curve{
		Fit: &calibration.Fit{Name: "C18:0 (298)", Mask: []bool{true}},
		X:   []float64{math.NaN()},
		Y:   []float64{1},
	}
	if _, err := CurvePlot(c, true); err != nil {
		t.Fatalf("CurvePlot() error = %v", err)
	}
}

func TestWriteResults(t *testing.T) {
	for _, format := range []string{"png", "svg", "pdf"} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			w, err := NewWriter(dir, format)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}

			res := &experiment.Results{Modified: true}
			for _, name := range []string{"C14:0 (242)", "C16:0 (270)", "C18:0 (298)", "C18:1 (296)", "C20:0 (326)"} {
				res.Curves = append(res.Curves, testCurve(name))
			}
			files, err := w.WriteResults(res)
			if err != nil {
				t.Fatalf("WriteResults() error = %v", err)
			}

			want := []string{
				filepath.Join(dir, "standard-fit_modified."+format),
				filepath.Join(dir, "standard-fit-with-data_modified."+format),
			}
			if len(files) != len(want) {
				t.Fatalf("files = %v, want %v", files, want)
			}
			for i, f := range files {
				if f != want[i] {
					t.Errorf("files[%d] = %s, want %s", i, f, want[i])
				}
				info, err := os.Stat(f)
				if err != nil {
					t.Fatalf("Stat(%s) error = %v", f, err)
				}
				if info.Size() == 0 {
					t.Errorf("%s is empty", f)
				}
			}
		})
	}
}

func TestWriteResultsNoCurves(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	files, err := w.WriteResults(&experiment.Results{})
	if err != nil || len(files) != 0 {
		t.Errorf("WriteResults() = %v, %v, want no files", files, err)
	}
}

func TestSaveGridErrors(t *testing.T) {
	if err := SaveGrid(nil, filepath.Join(t.TempDir(), "empty.png")); err == nil {
		t.Error("SaveGrid() with no plots should fail")
	}
	p := gonumplot.New()
	if err := SaveGrid([]*gonumplot.Plot{p}, filepath.Join(t.TempDir(), "grid.docx")); err == nil {
		t.Error("SaveGrid() with an unknown format should fail")
	}
}
