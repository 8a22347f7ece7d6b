package nlp

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/num/dual"
)

type funcProblem struct {
	n, m int
	fn   func(x, con []dual.Number) dual.Number
}

func (p funcProblem) Dims() (int, int) { return p.n, p.m }

func (p funcProblem) Eval(x, con []dual.Number) dual.Number { return p.fn(x, con) }

func sq(d dual.Number) dual.Number { return dual.Mul(d, d) }

func wide(n int) ([]float64, []float64) {
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range lo {
		lo[i] = math.Inf(-1)
		hi[i] = math.Inf(1)
	}
	return lo, hi
}

func TestSolveUnconstrainedQuadratic(t *testing.T) {
	p := funcProblem{n: 2, m: 0, fn: func(x, con []dual.Number) dual.Number {
		a := dual.Sub(x[0], dual.Number{Real: 2})
		b := dual.Add(x[1], dual.Number{Real: 1})
		return dual.Add(sq(a), sq(b))
	}}
	xl, xu := wide(2)

	res, err := Solve(p, []float64{0, 0}, xl, xu, nil, nil, DefaultParams())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != Converged {
		t.Fatalf("expected converged, got %v", res.Status)
	}
	if math.Abs(res.X[0]-2) > 1e-4 || math.Abs(res.X[1]+1) > 1e-4 {
		t.Errorf("minimizer off: got %v, want (2, -1)", res.X)
	}
	if res.Objective > 1e-6 {
		t.Errorf("objective should be ~0, got %g", res.Objective)
	}
}

func TestSolveEqualityConstraint(t *testing.T) {
	// min x^2 + y^2 subject to x + y = 1; optimum at (0.5, 0.5).
	p := funcProblem{n: 2, m: 1, fn: func(x, con []dual.Number) dual.Number {
		con[0] = dual.Add(x[0], x[1])
		return dual.Add(sq(x[0]), sq(x[1]))
	}}
	xl, xu := wide(2)

	res, err := Solve(p, []float64{0, 0}, xl, xu, []float64{1}, []float64{1}, DefaultParams())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != Converged {
		t.Fatalf("expected converged, got %v", res.Status)
	}
	if res.MaxViolation > 1e-3 {
		t.Errorf("violation too large: %g", res.MaxViolation)
	}
	if math.Abs(res.X[0]-0.5) > 1e-2 || math.Abs(res.X[1]-0.5) > 1e-2 {
		t.Errorf("minimizer off: got %v, want (0.5, 0.5)", res.X)
	}
}

func TestSolveActiveBound(t *testing.T) {
	// min (x+2)^2 with x in [0, 3]; constrained optimum at the bound x = 0.
	p := funcProblem{n: 1, m: 0, fn: func(x, con []dual.Number) dual.Number {
		return sq(dual.Add(x[0], dual.Number{Real: 2}))
	}}

	res, err := Solve(p, []float64{2}, []float64{0}, []float64{3}, nil, nil, DefaultParams())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != Converged {
		t.Fatalf("expected converged, got %v", res.Status)
	}
	if res.X[0] < 0 || res.X[0] > 1e-6 {
		t.Errorf("expected solution at lower bound 0, got %g", res.X[0])
	}
}

func TestSolveFixedVariable(t *testing.T) {
	// Matching variable bounds pin the value exactly for the whole solve.
	p := funcProblem{n: 2, m: 0, fn: func(x, con []dual.Number) dual.Number {
		return dual.Add(sq(x[0]), sq(x[1]))
	}}
	xl := []float64{1.5, math.Inf(-1)}
	xu := []float64{1.5, math.Inf(1)}

	res, err := Solve(p, []float64{0, 4}, xl, xu, nil, nil, DefaultParams())
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.X[0] != 1.5 {
		t.Errorf("fixed variable moved: got %g, want exactly 1.5", res.X[0])
	}
	if math.Abs(res.X[1]) > 1e-4 {
		t.Errorf("free variable should reach 0, got %g", res.X[1])
	}
}

func TestSolveTimeLimit(t *testing.T) {
	p := funcProblem{n: 2, m: 1, fn: func(x, con []dual.Number) dual.Number {
		con[0] = dual.Add(x[0], x[1])
		return dual.Add(sq(x[0]), sq(x[1]))
	}}
	xl, xu := wide(2)

	params := DefaultParams()
	params.TimeLimit = time.Nanosecond

	res, err := Solve(p, []float64{0, 0}, xl, xu, []float64{1}, []float64{1}, params)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != TimeLimit {
		t.Errorf("expected time limit status, got %v", res.Status)
	}
	for _, v := range res.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("best iterate contains invalid value %g", v)
		}
	}
}

func TestSolveRejectsInequality(t *testing.T) {
	p := funcProblem{n: 1, m: 1, fn: func(x, con []dual.Number) dual.Number {
		con[0] = x[0]
		return sq(x[0])
	}}
	_, err := Solve(p, []float64{0}, []float64{-1}, []float64{1}, []float64{0}, []float64{2}, DefaultParams())
	if err == nil {
		t.Error("expected error for mismatched constraint bounds")
	}
}

func TestSolveRejectsBadDims(t *testing.T) {
	p := funcProblem{n: 2, m: 0, fn: func(x, con []dual.Number) dual.Number {
		return sq(x[0])
	}}
	_, err := Solve(p, []float64{0}, []float64{-1}, []float64{1}, nil, nil, DefaultParams())
	if err == nil {
		t.Error("expected error for wrong variable vector length")
	}
}

func TestStatusString(t *testing.T) {
	if Converged.String() != "converged" {
		t.Errorf("unexpected status string %q", Converged.String())
	}
	if TimeLimit.String() == IterationLimit.String() {
		t.Error("statuses must be distinguishable")
	}
}

func TestZeroResultIsNotConverged(t *testing.T) {
	var res Result
	if res.Status == Converged {
		t.Error("zero Result reads as converged")
	}
	if res.Status.String() != "unsolved" {
		t.Errorf("zero status reads as %q", res.Status.String())
	}
}
