// Package config loads and validates the analysis configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/ChrisMcGann/msanalyzer/pkg/correction"
	"github.com/ChrisMcGann/msanalyzer/pkg/quant"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full analysis configuration. Every field is optional in the
// file; missing fields keep the values of Default.
type Config struct {
	Assay             AssayConfig      `yaml:"assay"`
	Tracer            TracerConfig     `yaml:"tracer"`
	Correction        CorrectionConfig `yaml:"correction"`
	InternalReference string           `yaml:"internal_reference" validate:"required"`
	Normalization     string           `yaml:"normalization" validate:"oneof=volume-and-weight weight"`
	Standards         StandardsConfig  `yaml:"standards"`
	Samples           SamplesConfig    `yaml:"samples"`
	Input             InputConfig      `yaml:"input"`
}

// AssayConfig selects the derivatization applied before measurement.
type AssayConfig struct {
	Derivatization string `yaml:"derivatization" validate:"required"`
	// DerivatizationsFile is an optional name,formula CSV extending the
	// built-in derivatizations.
	DerivatizationsFile string `yaml:"derivatizations_file"`
}

type TracerConfig struct {
	Element string    `yaml:"element" validate:"required"`
	Purity  []float64 `yaml:"purity" validate:"min=2,dive,gte=0,lte=1"`
}

type CorrectionConfig struct {
	Method        string `yaml:"method" validate:"oneof=SMC LSC"`
	SizePolicy    string `yaml:"size_policy" validate:"oneof=lenient strict"`
	Workers       int    `yaml:"workers" validate:"gte=0"`
	MaxIterations int    `yaml:"max_iterations" validate:"gte=1"`
}

// StandardsConfig holds the volumes (ul) used to prepare the standards.
type StandardsConfig struct {
	MixTotal   float64   `yaml:"mix_total" validate:"gt=0"`
	MixForPrep float64   `yaml:"mix_for_prep" validate:"gt=0"`
	Volumes    []float64 `yaml:"volumes" validate:"min=1,dive,gt=0"`
}

// SamplesConfig holds the per-sample volumes (ul). A column name takes the
// values from that template column instead of the broadcast value.
type SamplesConfig struct {
	DilutionVolume float64 `yaml:"dilution_volume" validate:"gte=0"`
	SoupVolume     float64 `yaml:"soup_volume" validate:"gt=0"`
	DilutionColumn string  `yaml:"dilution_column"`
	SoupColumn     string  `yaml:"soup_column"`
}

type InputConfig struct {
	// Encoding is the character set of the input CSV files.
	Encoding string `yaml:"encoding" validate:"required"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Assay: AssayConfig{
			Derivatization: core.DerivatizationMethylEster,
		},
		Tracer: TracerConfig{
			Element: "H",
			Purity:  []float64{0, 1},
		},
		Correction: CorrectionConfig{
			Method:        string(correction.MethodLSC),
			SizePolicy:    string(correction.PolicyLenient),
			Workers:       1,
			MaxIterations: correction.DefaultSettings().MaxIterations,
		},
		InternalReference: "C19:0",
		Normalization:     string(quant.ByVolumeAndWeight),
		Standards: StandardsConfig{
			MixTotal:   500,
			MixForPrep: 100,
			Volumes:    []float64{1, 5, 10, 20, 40, 80},
		},
		Samples: SamplesConfig{
			DilutionVolume: 750,
			SoupVolume:     5,
		},
		Input: InputConfig{
			Encoding: "utf-8",
		},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w: %w", err, core.ErrFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report fields by their YAML key
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and the cross-field rules: the tracer
// must be a modeled element and the purity a probability distribution.
func (c *Config) Validate() error {
	var errs []string

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, e := range verrs {
			errs = append(errs, fmt.Sprintf("%s: failed %s%s", e.Namespace(), e.Tag(), paramSuffix(e.Param())))
		}
	}

	if c.Tracer.Element != "" && !core.IsModeled(c.Tracer.Element) {
		errs = append(errs, fmt.Sprintf("tracer.element: %q is not a modeled element", c.Tracer.Element))
	}
	if len(c.Tracer.Purity) >= 2 {
		if err := correction.ValidatePurity(c.Tracer.Purity); err != nil {
			errs = append(errs, fmt.Sprintf("tracer.purity: %v", err))
		}
	}

	if len(errs) > 0 {
		return &core.ValidationError{
			Field:   "Config",
			Message: strings.Join(errs, "; "),
		}
	}
	return nil
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// Method returns the configured correction method.
func (c *Config) Method() correction.Method {
	return correction.Method(c.Correction.Method)
}

// SizePolicy returns the configured size policy.
func (c *Config) SizePolicy() correction.SizePolicy {
	return correction.SizePolicy(c.Correction.SizePolicy)
}

// NormalizationMode returns the configured normalization.
func (c *Config) NormalizationMode() quant.Normalization {
	return quant.Normalization(c.Normalization)
}

// CorrectionSettings returns the LSC solver settings.
func (c *Config) CorrectionSettings() correction.Settings {
	s := correction.DefaultSettings()
	s.MaxIterations = c.Correction.MaxIterations
	return s
}

// Derivatizations returns the built-in derivatizations extended with the
// configured CSV file, if any.
func (c *Config) Derivatizations() (*core.DerivatizationDatabase, error) {
	db := core.DefaultDerivatizationDatabase()
	if c.Assay.DerivatizationsFile == "" {
		return db, nil
	}
	f, err := os.Open(c.Assay.DerivatizationsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open derivatizations file: %w", err)
	}
	defer f.Close()
	if err := db.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load derivatizations: %w", err)
	}
	return db, nil
}

// Derivatization resolves the configured derivatization delta.
func (c *Config) Derivatization() (core.Composition, error) {
	db, err := c.Derivatizations()
	if err != nil {
		return nil, err
	}
	delta, ok := db.Get(c.Assay.Derivatization)
	if !ok {
		return nil, &core.ValidationError{
			Field:   "assay.derivatization",
			Message: fmt.Sprintf("unknown derivatization %q (known: %s)", c.Assay.Derivatization, strings.Join(db.Names(), ", ")),
		}
	}
	return delta, nil
}
