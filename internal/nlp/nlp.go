// Package nlp solves equality-constrained nonlinear programs with box
// bounds on the variables:
//
//	minimize    f(x)
//	subject to  c(x) = t,  xl <= x <= xu
//
// following the interior-point solver calling convention: constraint
// targets are expressed by matching lower and upper constraint bounds,
// and a variable whose lower bound equals its upper bound is held fixed
// at that value for the whole solve.
//
// Derivatives are obtained by forward-mode automatic differentiation:
// the problem evaluates objective and constraints over [dual.Number]
// values, and the solver seeds one coordinate direction per pass. The
// evaluator must therefore be a pure, deterministic function of its
// input vector.
//
// The algorithm is an augmented-Lagrangian outer loop around a spectral
// projected gradient (Barzilai-Borwein step, nonmonotone line search)
// inner minimization. A wall-clock limit is enforced inside the solve;
// on expiry the best iterate found so far is returned together with a
// non-converged status.
package nlp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/dual"
)

// Problem is the objective/constraint evaluator contract.
type Problem interface {
	// Dims reports the number of variables and constraints.
	Dims() (nvar, ncon int)

	// Eval computes the objective and writes the ncon constraint values
	// into con. It must be pure: no state, no side effects, same output
	// for the same input.
	Eval(x []dual.Number, con []dual.Number) dual.Number
}

// Status reports how a solve ended.
type Status int

const (
	// Unsolved is the zero value, so a Result nothing has written to can
	// never read as converged.
	Unsolved Status = iota
	// Converged means feasibility and stationarity tolerances were met.
	Converged
	// IterationLimit means the outer iteration budget ran out first.
	IterationLimit
	// TimeLimit means the wall-clock cap expired; X holds the best iterate.
	TimeLimit
	// BadProblem means the inputs were dimensionally or logically invalid.
	BadProblem
)

func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration limit"
	case TimeLimit:
		return "time limit"
	case BadProblem:
		return "bad problem"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Params are the solver tuning knobs.
type Params struct {
	MaxOuter       int           // augmented-Lagrangian rounds
	MaxInner       int           // projected-gradient steps per round
	Tolerance      float64       // stationarity: sup-norm of projected gradient
	FeasTolerance  float64       // feasibility: sup-norm of constraint violation
	TimeLimit      time.Duration // wall-clock cap, 0 disables
	InitialPenalty float64
	PenaltyGrowth  float64
}

// DefaultParams returns a configuration suitable for mid-sized problems.
func DefaultParams() Params {
	return Params{
		MaxOuter:       12,
		MaxInner:       250,
		Tolerance:      1e-5,
		FeasTolerance:  1e-4,
		InitialPenalty: 10,
		PenaltyGrowth:  10,
	}
}

// Result carries the final iterate and solve diagnostics.
type Result struct {
	X            []float64
	Objective    float64
	MaxViolation float64
	Status       Status
	Outer        int
	Evaluations  int
}

type workspace struct {
	p      Problem
	nvar   int
	ncon   int
	xd     []dual.Number
	cd     []dual.Number
	target []float64 // equality targets (cl)
	cval   []float64 // current violations c(x) - target
	lambda []float64
	mu     float64
	evals  int
}

// eval computes f(x) and refreshes cval. seed < 0 evaluates values only;
// otherwise coordinate seed is differentiated and derivatives are left in
// xd/cd Emag fields by the caller's reading of the returns.
func (w *workspace) eval(x []float64, seed int) (f dual.Number) {
	for i := range w.xd {
		w.xd[i] = dual.Number{Real: x[i]}
	}
	if seed >= 0 {
		w.xd[seed].Emag = 1
	}
	f = w.p.Eval(w.xd, w.cd)
	for j := range w.cval {
		w.cval[j] = w.cd[j].Real - w.target[j]
	}
	w.evals++
	return f
}

// alValue is the augmented Lagrangian at the current cval.
func (w *workspace) alValue(f float64) float64 {
	phi := f
	for j, c := range w.cval {
		phi += c * (0.5*w.mu*c - w.lambda[j])
	}
	return phi
}

// value evaluates phi(x) without derivatives.
func (w *workspace) value(x []float64) (f, phi float64) {
	fd := w.eval(x, -1)
	return fd.Real, w.alValue(fd.Real)
}

// gradient fills g with the augmented-Lagrangian gradient at x, one dual
// pass per free coordinate, and returns (f, phi) at x.
func (w *workspace) gradient(x []float64, free []bool, g []float64) (f, phi float64) {
	fd := w.eval(x, -1)
	f = fd.Real
	phi = w.alValue(f)
	for i := range g {
		g[i] = 0
		if !free[i] {
			continue
		}
		fi := w.eval(x, i)
		gi := fi.Emag
		for j := range w.cval {
			gi += (w.mu*w.cval[j] - w.lambda[j]) * w.cd[j].Emag
		}
		g[i] = gi
	}
	return f, phi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Solve minimizes the problem starting from x0. x0 is not modified.
func Solve(p Problem, x0, xl, xu, cl, cu []float64, params Params) (Result, error) {
	nvar, ncon := p.Dims()
	res := Result{Status: BadProblem}
	if len(x0) != nvar || len(xl) != nvar || len(xu) != nvar {
		return res, fmt.Errorf("nlp: variable vectors must have length %d", nvar)
	}
	if len(cl) != ncon || len(cu) != ncon {
		return res, fmt.Errorf("nlp: constraint bound vectors must have length %d", ncon)
	}
	for j := range cl {
		if cl[j] != cu[j] {
			return res, fmt.Errorf("nlp: constraint %d is not an equality (bounds %g, %g)", j, cl[j], cu[j])
		}
	}
	for i := range xl {
		if xl[i] > xu[i] {
			return res, fmt.Errorf("nlp: variable %d has empty bound interval [%g, %g]", i, xl[i], xu[i])
		}
	}
	if params.MaxOuter <= 0 || params.MaxInner <= 0 {
		params = DefaultParams()
	}
	if params.InitialPenalty <= 0 {
		params.InitialPenalty = 10
	}
	if params.PenaltyGrowth <= 1 {
		params.PenaltyGrowth = 10
	}

	var deadline time.Time
	if params.TimeLimit > 0 {
		deadline = time.Now().Add(params.TimeLimit)
	}
	expired := func() bool {
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	w := &workspace{
		p:      p,
		nvar:   nvar,
		ncon:   ncon,
		xd:     make([]dual.Number, nvar),
		cd:     make([]dual.Number, ncon),
		target: append([]float64(nil), cl...),
		cval:   make([]float64, ncon),
		lambda: make([]float64, ncon),
		mu:     params.InitialPenalty,
	}

	x := make([]float64, nvar)
	free := make([]bool, nvar)
	for i := range x {
		x[i] = clamp(x0[i], xl[i], xu[i])
		free[i] = xl[i] < xu[i]
	}

	g := make([]float64, nvar)
	xTrial := make([]float64, nvar)
	s := make([]float64, nvar)
	gNew := make([]float64, nvar)

	// Nonmonotone reference window for the line search.
	const window = 10
	hist := make([]float64, 0, window)

	finish := func(status Status) (Result, error) {
		f, _ := w.value(x)
		viol := 0.0
		for _, c := range w.cval {
			viol = math.Max(viol, math.Abs(c))
		}
		res = Result{
			X:            x,
			Objective:    f,
			MaxViolation: viol,
			Status:       status,
			Outer:        res.Outer,
			Evaluations:  w.evals,
		}
		return res, nil
	}

	prevViol := math.Inf(1)
	for outer := 0; outer < params.MaxOuter; outer++ {
		res.Outer = outer + 1
		if expired() {
			return finish(TimeLimit)
		}

		_, phi := w.gradient(x, free, g)
		hist = hist[:0]
		hist = append(hist, phi)

		// Initial BB step from the gradient scale.
		gMax := 0.0
		for _, gi := range g {
			gMax = math.Max(gMax, math.Abs(gi))
		}
		alpha := 1.0
		if gMax > 0 {
			alpha = clamp(1/gMax, 1e-10, 1)
		}

		stationary := false
		for inner := 0; inner < params.MaxInner; inner++ {
			if expired() {
				return finish(TimeLimit)
			}

			// Stationarity is measured with a unit-step projection so a
			// collapsed spectral step cannot fake convergence.
			pgNorm := 0.0
			for i := range x {
				if !free[i] {
					continue
				}
				pg := clamp(x[i]-g[i], xl[i], xu[i]) - x[i]
				pgNorm = math.Max(pgNorm, math.Abs(pg))
			}
			if pgNorm <= params.Tolerance {
				stationary = true
				break
			}

			// Projected step and directional derivative.
			dg := 0.0
			for i := range x {
				if !free[i] {
					xTrial[i] = x[i]
					s[i] = 0
					continue
				}
				t := clamp(x[i]-alpha*g[i], xl[i], xu[i])
				s[i] = t - x[i]
				dg += g[i] * s[i]
			}
			if dg >= 0 {
				// Not a descent direction; shrink the trial step.
				alpha *= 0.1
				if alpha < 1e-12 {
					stationary = true
					break
				}
				continue
			}

			phiRef := hist[0]
			for _, h := range hist {
				phiRef = math.Max(phiRef, h)
			}

			step := 1.0
			var phiTrial float64
			accepted := false
			for ls := 0; ls < 30; ls++ {
				for i := range x {
					xTrial[i] = x[i] + step*s[i]
				}
				_, phiTrial = w.value(xTrial)
				if phiTrial <= phiRef+1e-4*step*dg {
					accepted = true
					break
				}
				step *= 0.5
			}
			if !accepted {
				stationary = true
				break
			}

			_, phiNew := w.gradient(xTrial, free, gNew)
			phiTrial = phiNew

			// Barzilai-Borwein spectral step for the next iteration.
			sy, ss := 0.0, 0.0
			for i := range x {
				si := step * s[i]
				yi := gNew[i] - g[i]
				sy += si * yi
				ss += si * si
			}
			if sy > 0 {
				alpha = clamp(ss/sy, 1e-10, 1e10)
			} else {
				alpha = clamp(alpha*10, 1e-10, 1e10)
			}

			copy(x, xTrial)
			copy(g, gNew)
			if len(hist) == window {
				copy(hist, hist[1:])
				hist = hist[:window-1]
			}
			hist = append(hist, phiTrial)
		}

		// Feasibility at the inner solution; cval is fresh from the last
		// gradient/value call at x.
		w.eval(x, -1)
		viol := 0.0
		for _, c := range w.cval {
			viol = math.Max(viol, math.Abs(c))
		}

		if viol <= params.FeasTolerance && stationary {
			return finish(Converged)
		}

		// First-order multiplier update, then tighten the penalty when
		// feasibility stalls.
		for j := range w.lambda {
			w.lambda[j] -= w.mu * w.cval[j]
		}
		if viol > 0.25*prevViol {
			w.mu = math.Min(w.mu*params.PenaltyGrowth, 1e9)
		}
		prevViol = viol
	}

	return finish(IterationLimit)
}
