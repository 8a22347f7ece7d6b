package mpc

import (
	"gonum.org/v1/gonum/num/dual"

	"mpcdrive/internal/config"
)

// Evaluator computes the horizon cost and the dynamics constraint
// residuals for one solve. It is a pure function of the decision vector
// and the fitted reference polynomial, written in dual arithmetic so the
// solver differentiates it end-to-end.
//
// Residual convention: the six rows for step 0 equal the step-0 decision
// variables themselves, so pinning their constraint bounds to the
// measured state makes the initial condition an exact equality. Each
// later row is (decision variable) - (model-predicted value), which is
// zero exactly when the trajectory is dynamically consistent.
type Evaluator struct {
	layout  Layout
	weights config.Weights
	coeffs  []float64 // reference polynomial, ascending order

	dt          float64
	wheelbase   float64
	targetSpeed float64
}

// NewEvaluator binds the configuration and the per-cycle polynomial.
func NewEvaluator(cfg *config.Config, layout Layout, coeffs []float64) *Evaluator {
	return &Evaluator{
		layout:      layout,
		weights:     cfg.Weights,
		coeffs:      coeffs,
		dt:          cfg.Step,
		wheelbase:   cfg.Wheelbase,
		targetSpeed: cfg.TargetSpeed,
	}
}

func (e *Evaluator) Dims() (int, int) {
	return e.layout.NumVars, e.layout.NumCons
}

func sq(d dual.Number) dual.Number { return dual.Mul(d, d) }

func con(v float64) dual.Number { return dual.Number{Real: v} }

// polyAt evaluates the reference polynomial at x by Horner's rule.
func (e *Evaluator) polyAt(x dual.Number) dual.Number {
	acc := con(e.coeffs[len(e.coeffs)-1])
	for i := len(e.coeffs) - 2; i >= 0; i-- {
		acc = dual.Add(dual.Mul(acc, x), con(e.coeffs[i]))
	}
	return acc
}

// slopeAt evaluates the polynomial's first derivative at x.
func (e *Evaluator) slopeAt(x dual.Number) dual.Number {
	n := len(e.coeffs)
	acc := dual.Scale(float64(n-1), con(e.coeffs[n-1]))
	for i := n - 2; i >= 1; i-- {
		acc = dual.Add(dual.Mul(acc, x), dual.Scale(float64(i), con(e.coeffs[i])))
	}
	return acc
}

func (e *Evaluator) Eval(x []dual.Number, out []dual.Number) dual.Number {
	l := e.layout
	w := e.weights
	n := l.N

	var cost dual.Number

	// Tracking terms over every step: cross-track error, heading error,
	// deviation from the cruise speed.
	for t := 0; t < n; t++ {
		cost = dual.Add(cost, dual.Scale(w.CrossTrack, sq(x[l.CTE(t)])))
		cost = dual.Add(cost, dual.Scale(w.Heading, sq(x[l.EPsi(t)])))
		dv := dual.Sub(x[l.V(t)], con(e.targetSpeed))
		cost = dual.Add(cost, dual.Scale(w.Speed, sq(dv)))
	}

	// Actuator magnitude terms.
	for t := 0; t < n-1; t++ {
		cost = dual.Add(cost, dual.Scale(w.Steer, sq(x[l.Steer(t)])))
		cost = dual.Add(cost, dual.Scale(w.Accel, sq(x[l.Accel(t)])))
	}

	// Actuator rate terms over adjacent pairs.
	for t := 0; t < n-2; t++ {
		dSteer := dual.Sub(x[l.Steer(t+1)], x[l.Steer(t)])
		dAccel := dual.Sub(x[l.Accel(t+1)], x[l.Accel(t)])
		cost = dual.Add(cost, dual.Scale(w.SteerRate, sq(dSteer)))
		cost = dual.Add(cost, dual.Scale(w.AccelRate, sq(dAccel)))
	}

	// Initial-condition rows: the residual is the variable itself.
	out[l.X(0)] = x[l.X(0)]
	out[l.Y(0)] = x[l.Y(0)]
	out[l.Psi(0)] = x[l.Psi(0)]
	out[l.V(0)] = x[l.V(0)]
	out[l.CTE(0)] = x[l.CTE(0)]
	out[l.EPsi(0)] = x[l.EPsi(0)]

	// Dynamics rows for every transition t -> t+1.
	for t := 0; t < n-1; t++ {
		x0 := x[l.X(t)]
		y0 := x[l.Y(t)]
		psi0 := x[l.Psi(t)]
		v0 := x[l.V(t)]
		epsi0 := x[l.EPsi(t)]

		steer0 := x[l.Steer(t)]
		accel0 := x[l.Accel(t)]

		f0 := e.polyAt(x0)
		psiDes0 := dual.Atan(e.slopeAt(x0))

		// heading change v*delta/L*dt shared by the psi and epsi rows
		dPsi := dual.Scale(e.dt/e.wheelbase, dual.Mul(v0, steer0))

		out[l.X(t+1)] = dual.Sub(x[l.X(t+1)],
			dual.Add(x0, dual.Scale(e.dt, dual.Mul(v0, dual.Cos(psi0)))))
		out[l.Y(t+1)] = dual.Sub(x[l.Y(t+1)],
			dual.Add(y0, dual.Scale(e.dt, dual.Mul(v0, dual.Sin(psi0)))))
		out[l.Psi(t+1)] = dual.Sub(x[l.Psi(t+1)], dual.Add(psi0, dPsi))
		out[l.V(t+1)] = dual.Sub(x[l.V(t+1)],
			dual.Add(v0, dual.Scale(e.dt, accel0)))
		out[l.CTE(t+1)] = dual.Sub(x[l.CTE(t+1)],
			dual.Add(dual.Sub(f0, y0), dual.Scale(e.dt, dual.Mul(v0, dual.Sin(epsi0)))))
		out[l.EPsi(t+1)] = dual.Sub(x[l.EPsi(t+1)],
			dual.Add(dual.Sub(psi0, psiDes0), dPsi))
	}

	return cost
}
