package experiment

import (
	"fmt"
	"slices"

	"github.com/ChrisMcGann/msanalyzer/pkg/config"
	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/quant"
)

// Params are the user-adjustable analysis parameters. Every derived view is
// a function of the ingested data and one committed Params value.
type Params struct {
	InternalReference string
	Tracer            string
	Purity            []float64
	Method            correction.Method
	SizePolicy        correction.SizePolicy
	Workers           int
	Settings          correction.Settings
	Normalization     quant.Normalization

	// Standards preparation, in ul.
	MixForPrep      float64
	MixTotal        float64
	StandardVolumes []float64

	// Sample volumes, in ul. A non-empty column name takes per-sample values
	// from that template map column instead of the broadcast value.
	DilutionVolume float64
	SoupVolume     float64
	DilutionColumn string
	SoupColumn     string

	// UseMask refits standard curves with the curated masks.
	UseMask bool
	// FitMasks are curated per-cluster masks over the standards.
	FitMasks map[string][]bool
}

// ParamsFromConfig maps a validated configuration onto analysis parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		InternalReference: cfg.InternalReference,
		Tracer:            cfg.Tracer.Element,
		Purity:            slices.Clone(cfg.Tracer.Purity),
		Method:            cfg.Method(),
		SizePolicy:        cfg.SizePolicy(),
		Workers:           cfg.Correction.Workers,
		Settings:          cfg.CorrectionSettings(),
		Normalization:     cfg.NormalizationMode(),
		MixForPrep:        cfg.Standards.MixForPrep,
		MixTotal:          cfg.Standards.MixTotal,
		StandardVolumes:   slices.Clone(cfg.Standards.Volumes),
		DilutionVolume:    cfg.Samples.DilutionVolume,
		SoupVolume:        cfg.Samples.SoupVolume,
		DilutionColumn:    cfg.Samples.DilutionColumn,
		SoupColumn:        cfg.Samples.SoupColumn,
	}
}

func (p Params) clone() Params {
	p.Purity = slices.Clone(p.Purity)
	p.StandardVolumes = slices.Clone(p.StandardVolumes)
	if p.FitMasks != nil {
		masks := make(map[string][]bool, len(p.FitMasks))
		for name, mask := range p.FitMasks {
			masks[name] = slices.Clone(mask)
		}
		p.FitMasks = masks
	}
	return p
}

// matrixKey identifies the parameters a correction matrix depends on.
func (p Params) matrixKey() string {
	return fmt.Sprintf("%s%v", p.Tracer, p.Purity)
}

func (p Params) validate() error {
	if !core.IsModeled(p.Tracer) {
		return fmt.Errorf("tracer %q: %w", p.Tracer, core.ErrUnknownElement)
	}
	if err := correction.ValidatePurity(p.Purity); err != nil {
		return err
	}
	if _, err := correction.ParseMethod(string(p.Method)); err != nil {
		return err
	}
	if _, err := correction.ParseSizePolicy(string(p.SizePolicy)); err != nil {
		return err
	}
	if _, err := quant.ParseNormalization(string(p.Normalization)); err != nil {
		return err
	}
	if p.MixTotal <= 0 || p.MixForPrep <= 0 {
		return &core.ValidationError{Field: "standards", Message: "mix volumes must be positive"}
	}
	if len(p.StandardVolumes) == 0 {
		return &core.ValidationError{Field: "standards.volumes", Message: "at least one standard volume is required"}
	}
	return nil
}

// edit records a change in the pending parameter set.
func (e *Experiment) edit(fn func(p *Params)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		p := e.params.clone()
		e.pending = &p
	}
	fn(e.pending)
}

// SetInternalRef selects the cluster every signal is normalized to.
func (e *Experiment) SetInternalRef(name string) {
	e.edit(func(p *Params) { p.InternalReference = name })
}

// SetTracer selects the labeled element.
func (e *Experiment) SetTracer(element string) error {
	if !core.IsModeled(element) {
		return fmt.Errorf("tracer %q: %w", element, core.ErrUnknownElement)
	}
	e.edit(func(p *Params) { p.Tracer = element })
	return nil
}

// SetTracerPurity sets the isotopic distribution of the tracer.
func (e *Experiment) SetTracerPurity(purity []float64) error {
	if err := correction.ValidatePurity(purity); err != nil {
		return err
	}
	e.edit(func(p *Params) { p.Purity = slices.Clone(purity) })
	return nil
}

// SetMethod selects the correction method.
func (e *Experiment) SetMethod(m correction.Method) {
	e.edit(func(p *Params) { p.Method = m })
}

func (e *Experiment) SetSizePolicy(policy correction.SizePolicy) {
	e.edit(func(p *Params) { p.SizePolicy = policy })
}

func (e *Experiment) SetWorkers(n int) {
	e.edit(func(p *Params) { p.Workers = n })
}

// SetCorrectionSettings sets the LSC solver settings.
func (e *Experiment) SetCorrectionSettings(s correction.Settings) {
	e.edit(func(p *Params) { p.Settings = s })
}

// SetNormalization selects how quantities are scaled per mg.
func (e *Experiment) SetNormalization(mode quant.Normalization) {
	e.edit(func(p *Params) { p.Normalization = mode })
}

// SetStandards sets the master mix volumes and the standard volumes.
func (e *Experiment) SetStandards(mixForPrep, mixTotal float64, volumes []float64) {
	e.edit(func(p *Params) {
		p.MixForPrep = mixForPrep
		p.MixTotal = mixTotal
		p.StandardVolumes = slices.Clone(volumes)
	})
}

// SetSampleVolumes sets the dilution and sample volumes. A non-empty column
// overrides the broadcast value with the template map column of that name.
func (e *Experiment) SetSampleVolumes(dilution, soup float64, dilutionColumn, soupColumn string) {
	e.edit(func(p *Params) {
		p.DilutionVolume = dilution
		p.SoupVolume = soup
		p.DilutionColumn = dilutionColumn
		p.SoupColumn = soupColumn
	})
}

// SetFitMask stores a curated mask over the standards of one cluster.
func (e *Experiment) SetFitMask(name string, mask []bool) {
	e.edit(func(p *Params) {
		if p.FitMasks == nil {
			p.FitMasks = make(map[string][]bool)
		}
		p.FitMasks[name] = slices.Clone(mask)
	})
}

// SetUseMask switches standard fits to the curated masks.
func (e *Experiment) SetUseMask(use bool) {
	e.edit(func(p *Params) { p.UseMask = use })
}
