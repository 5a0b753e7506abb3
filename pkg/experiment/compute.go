package experiment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/cluster"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/filter"
	"github.com/ChrisMcGann/msanalyzer/pkg/quant"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// views are the derived values of one computation, indexed by cluster then
// row.
type views struct {
	normalized  [][]float64
	corrected   [][][]float64
	proportions [][]float64
	fits        []*calibration.Fit
	quantities  [][]float64
	factors     []float64
	standards   *calibration.StandardSet
	stdRows     []int
	dilution    []float64
	soup        []float64
}

func (e *Experiment) compute(ctx context.Context, p Params) (*Results, error) {
	ref, ok := e.referenceIndex(p.InternalReference)
	if !ok {
		return nil, fmt.Errorf("internal reference %q (known: %v): %w",
			p.InternalReference, e.clusters.Names(), core.ErrReferenceNotFound)
	}

	v := &views{stdRows: filter.Standards(e.sampleNames())}
	if len(v.stdRows) != len(p.StandardVolumes) {
		return nil, fmt.Errorf("data has %d standards, %d standard volumes configured: %w",
			len(v.stdRows), len(p.StandardVolumes), core.ErrSizeMismatch)
	}

	var err error
	if v.dilution, err = e.sampleVolumes(p.DilutionColumn, p.DilutionVolume); err != nil {
		return nil, err
	}
	if v.soup, err = e.sampleVolumes(p.SoupColumn, p.SoupVolume); err != nil {
		return nil, err
	}

	v.standards = calibration.StandardQuantities(e.specs, p.MixForPrep, p.MixTotal, p.StandardVolumes)
	v.normalized = e.normalize(ref)

	if e.clusters.Labeled {
		if v.corrected, err = e.correct(ctx, p); err != nil {
			return nil, err
		}
		v.proportions = make([][]float64, len(v.corrected))
		for ci, rows := range v.corrected {
			v.proportions[ci] = make([]float64, len(rows))
			for r, mid := range rows {
				v.proportions[ci][r] = quant.LabeledProportion(mid)
			}
		}
	}

	if err := e.fit(v, e.newFitter(p)); err != nil {
		return nil, err
	}

	v.quantities = make([][]float64, len(e.clusters.Clusters))
	for ci, fit := range v.fits {
		if fit != nil {
			v.quantities[ci] = quant.QuantifyAll(v.normalized[ci], fit)
		}
	}
	v.factors = e.normalizationFactors(p.Normalization, v.dilution, v.soup)

	return e.buildResults(p, v)
}

// referenceIndex resolves the internal reference to a cluster.
func (e *Experiment) referenceIndex(name string) (int, bool) {
	c, ok := e.clusters.Lookup(name)
	if !ok {
		return 0, false
	}
	for i, other := range e.clusters.Clusters {
		if other == c {
			return i, true
		}
	}
	return 0, false
}

// sampleVolumes returns one volume per experimental sample, from a template
// column when one is named and the broadcast value otherwise.
func (e *Experiment) sampleVolumes(column string, value float64) ([]float64, error) {
	var out []float64
	for _, s := range e.samples {
		if s.Kind != filter.Sample {
			continue
		}
		if column == "" {
			out = append(out, value)
			continue
		}
		v, ok := s.Extra[column]
		if !ok {
			return nil, fmt.Errorf("sample %s has no %q value in the template: %w",
				s.Name, column, core.ErrSizeMismatch)
		}
		out = append(out, v)
	}
	return out, nil
}

// signal sums the given ions of one row.
func (e *Experiment) signal(row int, ions []cluster.Ion) float64 {
	sum := 0.0
	for _, ion := range ions {
		sum += e.raw[row][ion.Index]
	}
	return sum
}

// normalize divides every cluster signal by the reference signal. Labeled
// clusters contribute the sum of all their isotopologues, trimmed ones
// included.
func (e *Experiment) normalize(ref int) [][]float64 {
	refCluster := e.clusters.Clusters[ref]
	out := make([][]float64, len(e.clusters.Clusters))
	for ci, c := range e.clusters.Clusters {
		out[ci] = make([]float64, len(e.samples))
		for r := range e.samples {
			out[ci][r] = quant.Ratio(e.signal(r, c.Ions), e.signal(r, refCluster.Ions))
		}
	}
	return out
}

// matrix returns the memoized correction matrix of a cluster.
func (e *Experiment) matrix(c *cluster.Cluster, p Params) (*correction.Matrix, error) {
	if m, ok := e.matrices[c.Name]; ok {
		return m, nil
	}
	comp, err := e.profile.Composition(c.Name)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", c.Name, err)
	}
	m, err := correction.BuildMatrix(comp, p.Tracer, p.Purity)
	if err != nil {
		return nil, fmt.Errorf("cluster %s (%s): %w", c.Name, comp, err)
	}
	e.matrices[c.Name] = m
	return m, nil
}

// correct corrects the working isotopologues of every cluster. The result
// keeps the working width of each cluster; clusters with a single working
// isotopologue pass through unchanged.
func (e *Experiment) correct(ctx context.Context, p Params) ([][][]float64, error) {
	corrector := &correction.Corrector{
		Method:   p.Method,
		Policy:   p.SizePolicy,
		Workers:  p.Workers,
		Settings: p.Settings,
		Logger:   e.logger.With(zap.String("component", "correction")),
	}

	rows := len(e.samples)
	out := make([][][]float64, len(e.clusters.Clusters))
	for ci, c := range e.clusters.Clusters {
		working := c.Working()
		width := len(working)
		out[ci] = make([][]float64, rows)

		observed := mat.NewDense(rows, width, nil)
		for r := range rows {
			for k, ion := range working {
				observed.Set(r, k, e.raw[r][ion.Index])
			}
		}

		if width <= 1 {
			e.logger.Debug("cluster has no mass variants, not corrected", zap.String("cluster", c.Name))
			for r := range rows {
				out[ci][r] = mat.Row(nil, r, observed)
			}
			continue
		}

		m, err := e.matrix(c, p)
		if err != nil {
			return nil, err
		}
		corrected, err := corrector.Correct(ctx, observed, m)
		if err != nil {
			return nil, fmt.Errorf("failed to correct cluster %s: %w", c.Name, err)
		}
		_, states := corrected.Dims()
		for r := range rows {
			mid := make([]float64, width)
			for k := 0; k < width && k < states; k++ {
				mid[k] = corrected.At(r, k)
			}
			out[ci][r] = mid
		}
	}
	return out, nil
}

// fit fits the standard curve of every cluster that has standard
// quantities. Clusters without quantities or with too few usable points are
// skipped with a warning.
func (e *Experiment) fit(v *views, fitter *calibration.Fitter) error {
	v.fits = make([]*calibration.Fit, len(e.clusters.Clusters))
	for ci, c := range e.clusters.Clusters {
		x, src, ok := v.standards.Lookup(c.Name)
		if !ok {
			e.logger.Warn("no standard data for cluster, no quantification possible",
				zap.String("cluster", c.Name))
			continue
		}
		if src.Borrowed {
			e.logger.Info("standard data borrowed from parental ion",
				zap.String("cluster", c.Name),
				zap.String("parental", src.Key))
		}

		y := make([]float64, len(v.stdRows))
		for i, r := range v.stdRows {
			y[i] = v.normalized[ci][r]
		}
		fit, err := fitter.Fit(c.Name, x, y)
		if errors.Is(err, core.ErrInsufficientData) {
			e.logger.Warn("standard fit skipped", zap.String("cluster", c.Name), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		fit.Source = src
		v.fits[ci] = fit
	}
	return nil
}

// newFitter loads the template masks, sized to the committed standards, and
// then the masks curated through SetFitMask, which take precedence.
func (e *Experiment) newFitter(p Params) *calibration.Fitter {
	fitter := calibration.NewFitter(e.logger)
	fitter.UseModified = p.UseMask
	for name := range e.masks {
		if mask, ok := e.masks.Mask(name, len(p.StandardVolumes)); ok {
			fitter.SetMask(name, mask)
		}
	}
	for name, mask := range p.FitMasks {
		fitter.SetMask(name, mask)
	}
	return fitter
}

// normalizationFactors returns the per-row divisor of the per-mg tables.
// In volume-and-weight mode only experimental samples are scaled.
func (e *Experiment) normalizationFactors(mode quant.Normalization, dilution, soup []float64) []float64 {
	factors := make([]float64, len(e.samples))
	si := 0
	for r, s := range e.samples {
		switch {
		case mode == quant.ByWeight:
			factors[r] = s.Weight
		case s.Kind == filter.Sample:
			factors[r] = quant.NormalizationFactor(mode, s.Weight, dilution[si], soup[si])
		default:
			factors[r] = 1
		}
		if s.Kind == filter.Sample {
			si++
		}
	}
	return factors
}

// curve collects the plotted points of one fit.
func (e *Experiment) curve(ci int, v *views) Curve {
	fit := v.fits[ci]
	x, _, _ := v.standards.Lookup(e.clusters.Clusters[ci].Name)
	c := Curve{Fit: fit, X: append([]float64(nil), x...)}
	for _, r := range v.stdRows {
		c.Y = append(c.Y, v.normalized[ci][r])
	}
	for _, r := range filter.Samples(e.sampleNames()) {
		c.SampleX = append(c.SampleX, v.quantities[ci][r])
		c.SampleY = append(c.SampleY, v.normalized[ci][r])
	}
	return c
}

func (e *Experiment) sampleNames() []string {
	names := make([]string, len(e.samples))
	for i, s := range e.samples {
		names[i] = s.Name
	}
	return names
}
