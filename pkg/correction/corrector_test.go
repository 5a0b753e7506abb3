package correction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ChrisMcGann/msanalyzer/pkg/core"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/mat"
)

// butyrate is C4:0, small enough for a square, well conditioned matrix
// with a carbon tracer.
var butyrate = core.Composition{"C": 4, "H": 8, "O": 2}

func buildButyrateMatrix(t *testing.T) *Matrix {
	t.Helper()
	m, err := BuildMatrix(butyrate, "C", []float64{0.01, 0.99})
	if err != nil {
		t.Fatalf("BuildMatrix() unexpected error: %v", err)
	}
	return m
}

// observe simulates measured MIDs from true labeling distributions.
func observe(m *Matrix, truth [][]float64) *mat.Dense {
	out := mat.NewDense(len(truth), m.Height(), nil)
	for i, x := range truth {
		var b mat.VecDense
		b.MulVec(m.Dense, mat.NewVecDense(len(x), x))
		out.SetRow(i, b.RawVector().Data)
	}
	return out
}

func TestCorrectRecoversTrueDistribution(t *testing.T) {
	m := buildButyrateMatrix(t)
	truth := [][]float64{
		{0.4, 0.1, 0.2, 0.1, 0.2},
		{0.9, 0.05, 0.02, 0.02, 0.01},
		{0.2, 0.2, 0.2, 0.2, 0.2},
	}
	observed := observe(m, truth)

	tests := []struct {
		name    string
		method  Method
		workers int
		tol     float64
	}{
		{"SMC", MethodSMC, 1, 1e-9},
		{"LSC sequential", MethodLSC, 1, 1e-6},
		{"LSC parallel", MethodLSC, 3, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Corrector{Method: tt.method, Workers: tt.workers}
			got, err := c.Correct(context.Background(), observed, m)
			if err != nil {
				t.Fatalf("Correct() unexpected error: %v", err)
			}
			rows, cols := got.Dims()
			if rows != len(truth) || cols != m.States() {
				t.Fatalf("dims = (%d, %d), want (%d, %d)", rows, cols, len(truth), m.States())
			}
			for i, want := range truth {
				row := mat.Row(nil, i, got)
				if diff := cmp.Diff(want, row, cmpopts.EquateApprox(0, tt.tol)); diff != "" {
					t.Errorf("row %d mismatch (-want +got):\n%s", i, diff)
				}
			}
		})
	}
}

// LSC accuracy does not depend on whether MIDs are raw intensities or
// fractions.
func TestLSCAccuracyIndependentOfScale(t *testing.T) {
	palmitate := core.Composition{"C": 17, "H": 34, "O": 2}
	m, err := BuildMatrix(palmitate, "H", []float64{0.01, 0.99})
	if err != nil {
		t.Fatalf("BuildMatrix() unexpected error: %v", err)
	}
	truth := make([]float64, m.States())
	truth[0], truth[1], truth[2], truth[5] = 0.6, 0.2, 0.1, 0.1

	for _, scale := range []float64{1, 1e6} {
		t.Run(fmt.Sprintf("scale %g", scale), func(t *testing.T) {
			x := make([]float64, len(truth))
			for i, v := range truth {
				x[i] = v * scale
			}
			observed := observe(m, [][]float64{x})

			got, err := (&Corrector{Method: MethodLSC}).Correct(context.Background(), observed, m)
			if err != nil {
				t.Fatalf("Correct() unexpected error: %v", err)
			}
			row := mat.Row(nil, 0, got)
			for i := range row {
				row[i] /= scale
			}
			if diff := cmp.Diff(truth, row, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("corrected MID mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCorrectIsNonNegative(t *testing.T) {
	m := buildButyrateMatrix(t)
	// Noisy rows whose unconstrained solution has negative entries.
	observed := mat.NewDense(3, 5, []float64{
		1.0, 0.0, 0.0, 0.0, 0.0,
		0.0, 0.0, 0.0, 0.0, 1.0,
		0.5, 0.0, 0.5, 0.0, 0.0,
	})

	for _, method := range []Method{MethodSMC, MethodLSC} {
		t.Run(string(method), func(t *testing.T) {
			c := &Corrector{Method: method}
			got, err := c.Correct(context.Background(), observed, m)
			if err != nil {
				t.Fatalf("Correct() unexpected error: %v", err)
			}
			rows, cols := got.Dims()
			for i := 0; i < rows; i++ {
				for j := 0; j < cols; j++ {
					if v := got.At(i, j); v < 0 {
						t.Errorf("entry (%d,%d) = %v, want >= 0", i, j, v)
					}
				}
			}
		})
	}
}

// LSC never does worse than clamped SMC in the least squares sense.
func TestLSCCostNotAboveClampedSMC(t *testing.T) {
	m := buildButyrateMatrix(t)
	observed := mat.NewDense(1, 5, []float64{0.5, 0.0, 0.5, 0.0, 0.0})

	smc, err := (&Corrector{Method: MethodSMC}).Correct(context.Background(), observed, m)
	if err != nil {
		t.Fatalf("SMC unexpected error: %v", err)
	}
	lsc, err := (&Corrector{Method: MethodLSC}).Correct(context.Background(), observed, m)
	if err != nil {
		t.Fatalf("LSC unexpected error: %v", err)
	}

	ls := newLeastSquares(m.Dense, mat.Row(nil, 0, observed))
	smcCost := ls.cost(mat.Row(nil, 0, smc))
	lscCost := ls.cost(mat.Row(nil, 0, lsc))
	if lscCost > smcCost+1e-8 {
		t.Errorf("LSC cost %v > clamped SMC cost %v", lscCost, smcCost)
	}
}

func TestCorrectSizePolicy(t *testing.T) {
	m := buildButyrateMatrix(t)
	wide := mat.NewDense(2, 7, []float64{
		0.9, 0.05, 0.03, 0.01, 0.01, 0.0, 0.0,
		0.5, 0.2, 0.1, 0.1, 0.05, 0.03, 0.02,
	})

	t.Run("strict", func(t *testing.T) {
		c := &Corrector{Method: MethodSMC, Policy: PolicyStrict}
		_, err := c.Correct(context.Background(), wide, m)
		if !errors.Is(err, core.ErrSizeMismatch) {
			t.Errorf("Correct() error = %v, want ErrSizeMismatch", err)
		}
	})

	t.Run("lenient", func(t *testing.T) {
		obsCore, logs := observer.New(zap.WarnLevel)
		c := &Corrector{Method: MethodSMC, Policy: PolicyLenient, Logger: zap.New(obsCore)}
		got, err := c.Correct(context.Background(), wide, m)
		if err != nil {
			t.Fatalf("Correct() unexpected error: %v", err)
		}
		if _, cols := got.Dims(); cols != m.States() {
			t.Errorf("cols = %d, want %d", cols, m.States())
		}
		if n := logs.FilterMessage("measured MID has more isotopologues than the correction matrix").Len(); n != 1 {
			t.Errorf("got %d size warnings, want 1", n)
		}
	})

	t.Run("narrow data is zero extended", func(t *testing.T) {
		narrow := mat.NewDense(1, 2, []float64{0.9, 0.1})
		c := &Corrector{Method: MethodLSC, Policy: PolicyStrict}
		got, err := c.Correct(context.Background(), narrow, m)
		if err != nil {
			t.Fatalf("Correct() unexpected error: %v", err)
		}
		if _, cols := got.Dims(); cols != m.States() {
			t.Errorf("cols = %d, want %d", cols, m.States())
		}
	})
}

func TestCorrectWorkerOrdering(t *testing.T) {
	m := buildButyrateMatrix(t)
	truth := make([][]float64, 24)
	for i := range truth {
		f := float64(i) / 24
		truth[i] = []float64{1 - f, f * 0.4, f * 0.3, f * 0.2, f * 0.1}
	}
	observed := observe(m, truth)

	seq, err := (&Corrector{Method: MethodLSC, Workers: 1}).Correct(context.Background(), observed, m)
	if err != nil {
		t.Fatalf("sequential Correct() unexpected error: %v", err)
	}
	par, err := (&Corrector{Method: MethodLSC, Workers: 4}).Correct(context.Background(), observed, m)
	if err != nil {
		t.Fatalf("parallel Correct() unexpected error: %v", err)
	}
	if !mat.Equal(seq, par) {
		t.Errorf("parallel result differs from sequential result")
	}
}

func TestCorrectCanceled(t *testing.T) {
	m := buildButyrateMatrix(t)
	observed := observe(m, [][]float64{{1, 0, 0, 0, 0}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 2} {
		_, err := (&Corrector{Method: MethodLSC, Workers: workers}).Correct(ctx, observed, m)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: Correct() error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestPseudoInverse(t *testing.T) {
	m := buildButyrateMatrix(t)
	pinv, err := pseudoInverse(m.Dense)
	if err != nil {
		t.Fatalf("pseudoInverse() unexpected error: %v", err)
	}
	var prod mat.Dense
	prod.Mul(pinv, m.Dense)
	n := m.States()
	if !mat.EqualApprox(&prod, eye(n), 1e-10) {
		t.Errorf("pinv * M is not the identity:\n%v", mat.Formatted(&prod))
	}
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

func TestParseMethodAndPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"SMC", MethodSMC, false},
		{"lsc", MethodLSC, false},
		{" LSC ", MethodLSC, false},
		{"NNLS", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMethod(%q) = %q, %v", tt.in, got, err)
		}
	}

	if p, err := ParseSizePolicy("Strict"); err != nil || p != PolicyStrict {
		t.Errorf("ParseSizePolicy(Strict) = %q, %v", p, err)
	}
	if _, err := ParseSizePolicy("loose"); !errors.Is(err, core.ErrFormat) {
		t.Errorf("ParseSizePolicy(loose) error = %v, want ErrFormat", err)
	}
}
