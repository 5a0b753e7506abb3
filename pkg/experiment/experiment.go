// Package experiment holds one ingested experiment (data table and
// template) and the views derived from it: normalized signal, corrected
// MIDs, standard fits and quantities.
//
// Mutators only record a pending parameter set. Recompute commits it and
// rebuilds every derived view once, so bursts of parameter changes cost a
// single computation.
package experiment

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChrisMcGann/msanalyzer/pkg/calibration"
	"github.com/ChrisMcGann/msanalyzer/pkg/cluster"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/filter"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader/table"
	"github.com/ChrisMcGann/msanalyzer/pkg/reader/template"
	"go.uber.org/zap"
)

// Sample is one declared template sample paired with its data row.
type Sample struct {
	// Row is the position of the sample in the intensity matrix.
	Row      int
	ID       string
	Name     string
	DataName string
	DataFile string
	Weight   float64
	Comments string
	Kind     filter.Kind
	Extra    map[string]float64
}

// Input is everything needed to build an experiment.
type Input struct {
	Data      *table.Data
	Map       []template.MapEntry
	Standards []calibration.StandardSpec
	// Derivatization is added to fatty-acid chain formulas.
	Derivatization core.Composition
	Params         Params
	// Masks are curated standard-curve masks, used when Params.UseMask is set.
	Masks  template.Masks
	Logger *zap.Logger
}

// State tells whether parameter changes are waiting for Recompute.
type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

// Experiment is one ingested experiment.
type Experiment struct {
	logger   *zap.Logger
	profile  core.AssayProfile
	clusters *cluster.Set
	samples  []Sample
	// raw[row][column] are the intensities in template order, columns as in
	// the data table header.
	raw    [][]float64
	specs  []calibration.StandardSpec
	masks  template.Masks

	mu         sync.Mutex
	params     Params
	pending    *Params
	matrices   map[string]*correction.Matrix
	matrixKey  string
	results    *Results
	generation int
}

// New ingests an experiment and computes its derived views.
func New(ctx context.Context, in Input) (*Experiment, error) {
	e, err := Ingest(in)
	if err != nil {
		return nil, err
	}
	if err := e.Recompute(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Ingest pairs the data rows with the template and resolves the ion
// clusters. Nothing is computed until the first Recompute, so Results is nil.
func Ingest(in Input) (*Experiment, error) {
	if in.Data == nil || len(in.Data.Rows) == 0 {
		return nil, fmt.Errorf("data table has no rows: %w", core.ErrFormat)
	}
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	profile := core.ProfileForSampleName(in.Data.Rows[0].Name, in.Derivatization)
	set, err := cluster.Resolve(in.Data.Columns, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ion clusters: %w", err)
	}
	samples, raw, err := pairRows(in.Data, in.Map)
	if err != nil {
		return nil, err
	}

	e := &Experiment{
		logger:   logger,
		profile:  profile,
		clusters: set,
		samples:  samples,
		raw:      raw,
		specs:    append([]calibration.StandardSpec(nil), in.Standards...),
		masks:    in.Masks,
		params:   in.Params.clone(),
	}

	logger.Info("experiment ingested",
		zap.String("assay", profile.Name()),
		zap.Bool("labeled", set.Labeled),
		zap.Int("samples", len(samples)),
		zap.Int("clusters", len(set.Clusters)))
	return e, nil
}

// pairRows orders the data rows by the template map. A template SampleID
// "<prefix>_<n>" pairs with the data row named "<letter><n>", the letter
// being the first character of the first data row name.
func pairRows(data *table.Data, entries []template.MapEntry) ([]Sample, [][]float64, error) {
	if len(entries) != len(data.Rows) {
		return nil, nil, fmt.Errorf("template declares %d samples, data table has %d: %w",
			len(entries), len(data.Rows), core.ErrSizeMismatch)
	}

	byName := make(map[string]int, len(data.Rows))
	for i, r := range data.Rows {
		if _, dup := byName[r.Name]; dup {
			return nil, nil, fmt.Errorf("line %d: duplicate data row %q: %w", r.Line, r.Name, core.ErrFormat)
		}
		byName[r.Name] = i
	}

	letter := data.Rows[0].Name[:1]
	samples := make([]Sample, len(entries))
	raw := make([][]float64, len(entries))
	for i, entry := range entries {
		dataName := letter + entry.Suffix()
		j, ok := byName[dataName]
		if !ok {
			return nil, nil, fmt.Errorf("template sample %s (%s) has no data row %q: %w",
				entry.SampleID, entry.SampleName, dataName, core.ErrSizeMismatch)
		}
		row := data.Rows[j]
		samples[i] = Sample{
			Row:      i,
			ID:       entry.SampleID,
			Name:     entry.SampleName,
			DataName: row.Name,
			DataFile: row.DataFile,
			Weight:   entry.Weight,
			Comments: entry.Comments,
			Kind:     filter.Classify(entry.SampleName),
			Extra:    entry.Extra,
		}
		raw[i] = append([]float64(nil), row.Values...)
	}
	return samples, raw, nil
}

// Profile returns the assay profile chosen at ingestion.
func (e *Experiment) Profile() core.AssayProfile {
	return e.profile
}

// Clusters returns the resolved ion clusters.
func (e *Experiment) Clusters() *cluster.Set {
	return e.clusters
}

// Samples returns the samples in template order.
func (e *Experiment) Samples() []Sample {
	return append([]Sample(nil), e.samples...)
}

// Params returns the committed parameters.
func (e *Experiment) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.clone()
}

// State reports whether parameter changes are pending.
func (e *Experiment) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return Dirty
	}
	return Clean
}

// Generation counts the successful recomputations.
func (e *Experiment) Generation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Results returns the views of the last successful Recompute.
func (e *Experiment) Results() *Results {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results
}

// Recompute commits the pending parameters and rebuilds every derived view.
// On error the previous parameters and results are kept and the experiment
// stays dirty.
func (e *Experiment) Recompute(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil && e.results != nil {
		return nil
	}
	next := e.params
	if e.pending != nil {
		next = *e.pending
	}
	if err := next.validate(); err != nil {
		return err
	}

	if key := next.matrixKey(); e.matrices == nil || key != e.matrixKey {
		e.matrices = make(map[string]*correction.Matrix)
		e.matrixKey = key
	}

	res, err := e.compute(ctx, next)
	if err != nil {
		return err
	}
	e.params = next.clone()
	e.pending = nil
	e.results = res
	e.generation++
	e.logger.Debug("derived views recomputed", zap.Int("generation", e.generation))
	return nil
}
