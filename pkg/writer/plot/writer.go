// Package plot renders standard curves with gonum/plot. The output format
// follows the file extension (pdf, png, svg, ...).
package plot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/experiment"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"
)

const (
	// gridColumns is the number of curves per row of a figure.
	gridColumns = 4
	tileWidth   = 5 * vg.Inch
	tileHeight  = 4 * vg.Inch

	// File name stems of the two figures.
	StandardsStem = "standard-fit"
	WithDataStem  = "standard-fit-with-data"
)

var (
	usedColor   = color.RGBA{R: 0x00, G: 0xbf, B: 0xff, A: 0xff}
	maskedColor = color.Black
	fitColor    = color.RGBA{R: 0xfb, G: 0x4c, B: 0x52, A: 0xff}
	sampleColor = color.RGBA{R: 0xff, G: 0x8b, B: 0x22, A: 0x80}
)

// Writer renders the standard-curve figures of a run.
type Writer struct {
	dir    string
	format string
}

// NewWriter creates the output directory if needed. Format is a file
// extension such as "pdf" or "png".
func NewWriter(dir, format string) (*Writer, error) {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = "pdf"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}
	return &Writer{dir: dir, format: format}, nil
}

// WriteResults writes two figures: the standard curves alone and the curves
// with the quantified samples. Runs without fits write nothing.
func (w *Writer) WriteResults(res *experiment.Results) ([]string, error) {
	if len(res.Curves) == 0 {
		return nil, nil
	}
	suffix := ""
	if res.Modified {
		suffix = "_modified"
	}

	var files []string
	for _, fig := range []struct {
		stem        string
		withSamples bool
	}{
		{StandardsStem, false},
		{WithDataStem, true},
	} {
		plots := make([]*gonumplot.Plot, 0, len(res.Curves))
		for _, c := range res.Curves {
			p, err := CurvePlot(c, fig.withSamples)
			if err != nil {
				return files, err
			}
			plots = append(plots, p)
		}
		path := filepath.Join(w.dir, fmt.Sprintf("%s%s.%s", fig.stem, suffix, w.format))
		if err := SaveGrid(plots, path); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// CurvePlot draws one standard curve: the fitted line, the standards used
// for the fit as filled circles and the masked standards as rings.
func CurvePlot(c experiment.Curve, withSamples bool) (*gonumplot.Plot, error) {
	fit := c.Fit
	p := gonumplot.New()
	p.Title.Text = fit.Name
	p.X.Label.Text = "Quantity (nMoles)"
	p.Y.Label.Text = "Absorbance"

	var used, masked plotter.XYs
	xmin, xmax := math.Inf(1), math.Inf(-1)
	for i := range c.X {
		if i >= len(c.Y) || !finite(c.X[i], c.Y[i]) {
			continue
		}
		pt := plotter.XY{X: c.X[i], Y: c.Y[i]}
		if i < len(fit.Mask) && fit.Mask[i] {
			used = append(used, pt)
		} else {
			masked = append(masked, pt)
		}
		xmin, xmax = math.Min(xmin, pt.X), math.Max(xmax, pt.X)
	}

	if xmin <= xmax {
		line, err := plotter.NewLine(plotter.XYs{
			{X: xmin, Y: fit.Slope*xmin + fit.Intercept},
			{X: xmax, Y: fit.Slope*xmax + fit.Intercept},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to draw fit of %s: %w", fit.Name, err)
		}
		line.Color = fitColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("y=%.4fx+%.4f R2=%.4f", fit.Slope, fit.Intercept, fit.R2), line)
	}

	if err := addScatter(p, used, draw.CircleGlyph{}, usedColor); err != nil {
		return nil, err
	}
	if err := addScatter(p, masked, draw.RingGlyph{}, maskedColor); err != nil {
		return nil, err
	}

	if withSamples {
		var samples plotter.XYs
		for i := range c.SampleX {
			if i < len(c.SampleY) && finite(c.SampleX[i], c.SampleY[i]) {
				samples = append(samples, plotter.XY{X: c.SampleX[i], Y: c.SampleY[i]})
			}
		}
		if err := addScatter(p, samples, draw.CircleGlyph{}, sampleColor); err != nil {
			return nil, err
		}
	}
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func addScatter(p *gonumplot.Plot, xys plotter.XYs, shape draw.GlyphDrawer, c color.Color) error {
	if len(xys) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to draw points: %w", err)
	}
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(3)
	p.Add(s)
	return nil
}

// SaveGrid draws plots on a grid of gridColumns columns into one file.
func SaveGrid(plots []*gonumplot.Plot, path string) error {
	if len(plots) == 0 {
		return fmt.Errorf("no plots to save")
	}
	cols := min(gridColumns, len(plots))
	rows := (len(plots) + gridColumns - 1) / gridColumns

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	canvas, err := draw.NewFormattedCanvas(vg.Length(cols)*tileWidth, vg.Length(rows)*tileHeight, format)
	if err != nil {
		return fmt.Errorf("failed to create %s canvas: %w", format, err)
	}

	grid := make([][]*gonumplot.Plot, rows)
	for j := range grid {
		grid[j] = make([]*gonumplot.Plot, cols)
	}
	for i, p := range plots {
		grid[i/gridColumns][i%gridColumns] = p
	}

	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      vg.Millimeter * 5,
		PadY:      vg.Millimeter * 5,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := gonumplot.Align(grid, tiles, draw.New(canvas))
	for j := range grid {
		for i, p := range grid[j] {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := canvas.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
