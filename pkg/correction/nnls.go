package correction

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	armijoSigma = 1e-4
	minStep     = 1e-30
	maxStep     = 1e30

	// workingNorm is the norm observed vectors are scaled to before solving,
	// so that the absolute tolerances of Settings mean the same thing for
	// raw intensities and for normalized MIDs.
	workingNorm = 1e6
)

// leastSquares evaluates f(x) = ||A x - b||^2 and its gradient.
type leastSquares struct {
	a *mat.Dense
	b *mat.VecDense
	r *mat.VecDense
}

func newLeastSquares(a *mat.Dense, b []float64) *leastSquares {
	rows, _ := a.Dims()
	return &leastSquares{
		a: a,
		b: mat.NewVecDense(rows, b),
		r: mat.NewVecDense(rows, nil),
	}
}

func (ls *leastSquares) residual(x []float64) {
	ls.r.MulVec(ls.a, mat.NewVecDense(len(x), x))
	ls.r.SubVec(ls.r, ls.b)
}

func (ls *leastSquares) cost(x []float64) float64 {
	ls.residual(x)
	return mat.Dot(ls.r, ls.r)
}

func (ls *leastSquares) grad(g, x []float64) {
	ls.residual(x)
	gv := mat.NewVecDense(len(g), g)
	gv.MulVec(ls.a.T(), ls.r)
	gv.ScaleVec(2, gv)
}

// solveNonNegative minimizes ||A x - b||^2 subject to x >= 0, starting from
// the origin. It reports false when the iteration cap was reached before any
// stopping criterion; the best iterate is returned either way.
func solveNonNegative(a *mat.Dense, b []float64, s Settings) ([]float64, bool) {
	_, cols := a.Dims()
	scale := 1.0
	if norm := floats.Norm(b, 2); norm > 0 {
		scale = workingNorm / norm
		b = append([]float64(nil), b...)
		floats.Scale(scale, b)
	}
	ls := newLeastSquares(a, b)

	x := make([]float64, cols)
	g := make([]float64, cols)
	xNew := make([]float64, cols)
	gNew := make([]float64, cols)
	step := make([]float64, cols)
	diff := make([]float64, cols)

	f := ls.cost(x)
	ls.grad(g, x)

	best := make([]float64, cols)
	bestF := f

	// 1/(2 ||A||_2^2) is the reciprocal Lipschitz constant of the gradient.
	alpha0 := 1.0
	if norm := mat.Norm(a, 2); norm > 0 {
		alpha0 = 1 / (2 * norm * norm)
	}
	alpha := alpha0

	converged := false
	for iter := 0; iter < s.MaxIterations; iter++ {
		if projectedGradientNorm(x, g) <= s.GradientTol {
			converged = true
			break
		}

		// Armijo backtracking along the projection arc.
		var fNew float64
		accepted := false
		for alpha >= minStep {
			for i := range x {
				xNew[i] = math.Max(0, x[i]-alpha*g[i])
			}
			floats.SubTo(step, xNew, x)
			fNew = ls.cost(xNew)
			if fNew <= f+armijoSigma*floats.Dot(g, step) {
				accepted = true
				break
			}
			alpha *= 0.5
		}
		if !accepted {
			converged = true
			break
		}

		ls.grad(gNew, xNew)
		floats.SubTo(diff, gNew, g)

		fOld := f
		copy(x, xNew)
		copy(g, gNew)
		f = fNew
		if f < bestF {
			bestF = f
			copy(best, x)
		}

		if (fOld-f)/math.Max(math.Max(math.Abs(fOld), math.Abs(f)), 1) <= s.FunctionTol {
			converged = true
			break
		}
		if floats.Norm(step, math.Inf(1)) <= s.StepTol {
			converged = true
			break
		}

		// Barzilai-Borwein step for the next iteration.
		if sy := floats.Dot(step, diff); sy > 0 {
			alpha = math.Min(math.Max(floats.Dot(step, step)/sy, minStep), maxStep)
		} else {
			alpha = alpha0
		}
	}

	polish(a, b, best, bestF, s)
	floats.Scale(1/scale, best)
	return best, converged
}

// projectedGradientNorm is the infinity norm of the gradient projected onto
// the feasible cone at x.
func projectedGradientNorm(x, g []float64) float64 {
	norm := 0.0
	for i, gi := range g {
		if x[i] <= 0 {
			gi = math.Min(gi, 0)
		}
		norm = math.Max(norm, math.Abs(gi))
	}
	return norm
}

// polish refines the strictly positive coordinates of x with an
// unconstrained L-BFGS run over that face. x is updated in place only if the
// refined point stays feasible and does not raise the cost.
func polish(a *mat.Dense, b []float64, x []float64, fx float64, s Settings) {
	var free []int
	for i, v := range x {
		if v > 0 {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return
	}

	rows, _ := a.Dims()
	face := mat.NewDense(rows, len(free), nil)
	x0 := make([]float64, len(free))
	for j, col := range free {
		face.SetCol(j, mat.Col(nil, col, a))
		x0[j] = x[col]
	}
	ls := newLeastSquares(face, b)

	problem := optimize.Problem{
		Func: ls.cost,
		Grad: ls.grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: s.GradientTol,
		MajorIterations:   s.MaxIterations,
	}
	// A failed line search still reports the last accepted location.
	result, _ := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return
	}
	for _, v := range result.X {
		if v < 0 {
			return
		}
	}
	if result.F > fx {
		return
	}
	for j, col := range free {
		x[col] = result.X[j]
	}
}
