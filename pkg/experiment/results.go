package experiment

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/filter"
	"github.com/ChrisMcGann/msanalyzer/pkg/quant"
)

// Result table names.
const (
	TableOriginal        = "OriginalData"
	TableNormalized      = "OriginalData_normToInternalRef"
	TableCorrected       = "CorrectedMID"
	TableQuantTotal      = "QuantTotal_nMoles"
	TableQuantTotalPerMg = "QuantTotal_nMoles_mg"
	TableQuantSynth      = "QuantSynthetized_nMoles"
	TableQuantSynthPerMg = "QuantSynthetized_nMoles_mg"
	TablePercentageSynth = "PercentageSynthetized"
	TableStandards       = "Standards"
)

const (
	standardsFixedColumns = 4
	experimentLabeled     = "Labeled"
	experimentNotLabeled  = "Not Labeled"
)

// Parameter is one entry of the analysis log.
type Parameter struct {
	Name   string
	Values []string
}

// Curve is a fitted standard curve with the points it was fitted on and the
// quantified samples.
type Curve struct {
	Fit *calibration.Fit
	// X and Y are the standard quantities (nMol) and normalized signals.
	X, Y []float64
	// SampleX and SampleY place the experimental samples on the curve.
	SampleX, SampleY []float64
}

// Results are the derived views of one computation.
type Results struct {
	Labeled bool
	Assay   string
	// Modified is set when curated masks were used for the fits.
	Modified bool
	Tables   []*core.Table
	Curves   []Curve
	Log      []Parameter
}

// Table returns a result table by name.
func (r *Results) Table(name string) (*core.Table, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Fit returns the standard fit of a cluster.
func (r *Results) Fit(name string) (*calibration.Fit, bool) {
	for _, c := range r.Curves {
		if c.Fit.Name == name {
			return c.Fit, true
		}
	}
	return nil, false
}

// ExperimentType is "Labeled" or "Not Labeled".
func (r *Results) ExperimentType() string {
	if r.Labeled {
		return experimentLabeled
	}
	return experimentNotLabeled
}

func (e *Experiment) buildResults(p Params, v *views) (*Results, error) {
	res := &Results{
		Labeled:  e.clusters.Labeled,
		Assay:    e.profile.Name(),
		Modified: p.UseMask,
	}
	clusters := e.clusters.Clusters
	names := e.clusters.Names()

	original := core.NewTable(TableOriginal, e.clusters.FullColumns())
	normalized := core.NewTable(TableNormalized, names)
	for r, s := range e.samples {
		var values []float64
		for _, c := range clusters {
			for _, ion := range c.Ions {
				values = append(values, e.raw[r][ion.Index])
			}
		}
		original.AddRow(s.ID, s.Name, s.Comments, values)
		normalized.AddRow(s.ID, s.Name, s.Comments, column(v.normalized, r))
	}
	res.Tables = append(res.Tables, original, normalized)

	if res.Labeled {
		corrected := core.NewTable(TableCorrected, e.clusters.Columns())
		for r, s := range e.samples {
			var values []float64
			for ci := range clusters {
				values = append(values, v.corrected[ci][r]...)
			}
			corrected.AddRow(s.ID, s.Name, s.Comments, values)
		}
		res.Tables = append(res.Tables, corrected)
	}

	var fitted []int
	var fittedNames []string
	for ci, fit := range v.fits {
		if fit != nil {
			fitted = append(fitted, ci)
			fittedNames = append(fittedNames, clusters[ci].Name)
			res.Curves = append(res.Curves, e.curve(ci, v))
		}
	}

	total := core.NewTable(TableQuantTotal, fittedNames)
	totalMg := core.NewTable(TableQuantTotalPerMg, fittedNames)
	synth := core.NewTable(TableQuantSynth, fittedNames)
	synthMg := core.NewTable(TableQuantSynthPerMg, fittedNames)
	percentage := core.NewTable(TablePercentageSynth, names)
	for r, s := range e.samples {
		if s.Kind != filter.Sample {
			continue
		}
		q := make([]float64, len(fitted))
		qMg := make([]float64, len(fitted))
		sy := make([]float64, len(fitted))
		syMg := make([]float64, len(fitted))
		for j, ci := range fitted {
			q[j] = v.quantities[ci][r]
			qMg[j] = quant.Ratio(q[j], v.factors[r])
			if res.Labeled {
				sy[j] = quant.Synthesized(q[j], v.proportions[ci][r])
				syMg[j] = quant.Ratio(sy[j], v.factors[r])
			}
		}
		total.AddRow(s.ID, s.Name, s.Comments, q)
		totalMg.AddRow(s.ID, s.Name, s.Comments, qMg)
		if res.Labeled {
			synth.AddRow(s.ID, s.Name, s.Comments, sy)
			synthMg.AddRow(s.ID, s.Name, s.Comments, syMg)
			percentage.AddRow(s.ID, s.Name, s.Comments, column(v.proportions, r))
		}
	}
	res.Tables = append(res.Tables, total, totalMg)
	if res.Labeled {
		res.Tables = append(res.Tables, synth, synthMg, percentage)
	}
	res.Tables = append(res.Tables, e.standardsTable(p, v))

	for _, t := range res.Tables {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("failed to build results: %w", err)
		}
	}
	res.Log = e.log(p, res)
	return res, nil
}

// standardsTable has one row per fitted cluster: the fit summary followed by
// the standard quantities at every volume.
func (e *Experiment) standardsTable(p Params, v *views) *core.Table {
	columns := []string{"slope", "intercept", "R2", "points"}
	for i, vol := range p.StandardVolumes {
		columns = append(columns, fmt.Sprintf("Std-nMol-%d (%s ul)", i+1, formatFloat(vol)))
	}
	t := core.NewTable(TableStandards, columns)
	for ci, fit := range v.fits {
		if fit == nil {
			continue
		}
		x, _, _ := v.standards.Lookup(e.clusters.Clusters[ci].Name)
		values := make([]float64, 0, standardsFixedColumns+len(x))
		values = append(values, fit.Slope, fit.Intercept, fit.R2, float64(fit.Points()))
		values = append(values, x...)
		comments := ""
		if fit.Source.Borrowed {
			comments = "borrowed from " + fit.Source.Key
		}
		t.AddRow(fit.Name, fit.Source.Key, comments, values)
	}
	return t
}

func (e *Experiment) log(p Params, res *Results) []Parameter {
	return []Parameter{
		{"Experiment type", []string{res.ExperimentType()}},
		{"Assay", []string{res.Assay}},
		{"Volume Mix Total", []string{formatFloat(p.MixTotal)}},
		{"Volume Mix Used", []string{formatFloat(p.MixForPrep)}},
		{"Internal Reference", []string{p.InternalReference}},
		{"Volume standards", formatFloats(p.StandardVolumes)},
		{"Volume of Dilution", volumeLog(p.DilutionColumn, p.DilutionVolume)},
		{"Volume of Sample Measured", volumeLog(p.SoupColumn, p.SoupVolume)},
		{"Normalization", []string{string(p.Normalization)}},
		{"Isotope tracer", []string{p.Tracer}},
		{"Isotope tracer purity", formatFloats(p.Purity)},
		{"Correction method", []string{string(p.Method)}},
		{"Size policy", []string{string(p.SizePolicy)}},
		{"Curated masks", []string{strconv.FormatBool(p.UseMask)}},
	}
}

func volumeLog(column string, value float64) []string {
	if column != "" {
		return []string{"template column " + column}
	}
	return []string{formatFloat(value)}
}

// column gathers row r across clusters.
func column(byCluster [][]float64, r int) []float64 {
	out := make([]float64, len(byCluster))
	for ci := range byCluster {
		out[ci] = byCluster[ci][r]
	}
	return out
}

// formatFloat renders a parameter value, rounded to hide binary noise
// such as 0.30000000000000004.
func formatFloat(v float64) string {
	return strconv.FormatFloat(core.RoundFloat(v, 9), 'g', -1, 64)
}

func formatFloats(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatFloat(v)
	}
	return out
}

// String renders a parameter as "name: v1, v2".
func (p Parameter) String() string {
	return p.Name + ": " + strings.Join(p.Values, ", ")
}
