package correction

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Method selects the correction algorithm.
type Method string

const (
	// MethodSMC multiplies the data by the pseudo-inverse of the matrix and
	// clamps negative fractions to zero.
	MethodSMC Method = "SMC"
	// MethodLSC solves a non-negative least squares problem per MID.
	MethodLSC Method = "LSC"
)

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodSMC:
		return MethodSMC, nil
	case MethodLSC:
		return MethodLSC, nil
	}
	return "", fmt.Errorf("unknown correction method %q: %w", s, core.ErrFormat)
}

// SizePolicy decides what happens when the data holds more isotopologues
// than the matrix has labeling states.
type SizePolicy string

const (
	PolicyLenient SizePolicy = "lenient"
	PolicyStrict  SizePolicy = "strict"
)

// ParseSizePolicy parses a policy name, case-insensitively.
func ParseSizePolicy(s string) (SizePolicy, error) {
	switch SizePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown size policy %q: %w", s, core.ErrFormat)
}

// Settings controls the LSC solver.
type Settings struct {
	MaxIterations int
	GradientTol   float64
	FunctionTol   float64
	StepTol       float64
}

// DefaultSettings returns the solver settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations: 15000,
		GradientTol:   1e-10,
		FunctionTol:   2.220446049250313e-09,
		StepTol:       1e-14,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.GradientTol <= 0 {
		s.GradientTol = d.GradientTol
	}
	if s.FunctionTol <= 0 {
		s.FunctionTol = d.FunctionTol
	}
	if s.StepTol <= 0 {
		s.StepTol = d.StepTol
	}
	return s
}

// Corrector corrects MIDs with a correction matrix. The zero value runs LSC
// sequentially with the lenient size policy.
type Corrector struct {
	Method   Method
	Policy   SizePolicy
	Workers  int
	Settings Settings
	Logger   *zap.Logger
}

func (c *Corrector) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Correct returns the corrected MIDs, one row per observed row and one
// column per labeling state (n+1). Observed rows are zero-extended or
// truncated to the matrix height first.
func (c *Corrector) Correct(ctx context.Context, observed *mat.Dense, m *Matrix) (*mat.Dense, error) {
	log := c.logger()
	rows, width := observed.Dims()
	if rows == 0 || width == 0 {
		return nil, fmt.Errorf("no observed MIDs to correct: %w", core.ErrSizeMismatch)
	}
	states := m.States()
	height := m.Height()

	if width > states {
		if c.Policy == PolicyStrict {
			return nil, fmt.Errorf("data has %d isotopologues, matrix covers %d: %w", width, states, core.ErrSizeMismatch)
		}
		log.Warn("measured MID has more isotopologues than the correction matrix",
			zap.Int("isotopologues", width),
			zap.Int("states", states),
			zap.String("tracer", m.Tracer))
	}
	if m.Truncated {
		log.Debug("base distribution truncated to matrix height",
			zap.Int("base", len(m.Base)),
			zap.Int("height", height))
	}

	data := fitWidth(observed, height)

	switch c.method() {
	case MethodSMC:
		return correctSMC(data, m.Dense)
	case MethodLSC:
		return c.correctLSC(ctx, data, m.Dense, rows)
	}
	return nil, fmt.Errorf("unknown correction method %q: %w", c.Method, core.ErrFormat)
}

func (c *Corrector) method() Method {
	if c.Method == "" {
		return MethodLSC
	}
	return c.Method
}

// fitWidth copies observed into a matrix with exactly width columns.
func fitWidth(observed *mat.Dense, width int) *mat.Dense {
	rows, cols := observed.Dims()
	out := mat.NewDense(rows, width, nil)
	n := min(cols, width)
	out.Slice(0, rows, 0, n).(*mat.Dense).Copy(observed.Slice(0, rows, 0, n))
	return out
}

func correctSMC(data, m *mat.Dense) (*mat.Dense, error) {
	pinv, err := pseudoInverse(m)
	if err != nil {
		return nil, err
	}
	rows, _ := data.Dims()
	_, states := m.Dims()
	out := mat.NewDense(rows, states, nil)
	out.Mul(data, pinv.T())
	out.Apply(func(_, _ int, v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}, out)
	return out, nil
}

// pseudoInverse computes the Moore-Penrose inverse of a through its SVD,
// dropping singular values below 1e-15 times the largest.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("failed to factorize correction matrix")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	cutoff := 0.0
	if len(values) > 0 {
		cutoff = 1e-15 * values[0]
	}
	vr, _ := v.Dims()
	for k, s := range values {
		scale := 0.0
		if s > cutoff {
			scale = 1 / s
		}
		for i := range vr {
			v.Set(i, k, v.At(i, k)*scale)
		}
	}

	r, c := a.Dims()
	pinv := mat.NewDense(c, r, nil)
	pinv.Mul(&v, u.T())
	return pinv, nil
}

func (c *Corrector) correctLSC(ctx context.Context, data, m *mat.Dense, rows int) (*mat.Dense, error) {
	_, states := m.Dims()
	out := mat.NewDense(rows, states, nil)
	settings := c.Settings.withDefaults()
	log := c.logger()

	solveRow := func(i int) {
		target := mat.Row(nil, i, data)
		x, converged := solveNonNegative(m, target, settings)
		if !converged {
			log.Debug("LSC reached the iteration cap, keeping best iterate",
				zap.Int("row", i),
				zap.Int("max_iterations", settings.MaxIterations))
		}
		out.SetRow(i, x)
	}

	if c.Workers <= 1 {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			solveRow(i)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			solveRow(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
