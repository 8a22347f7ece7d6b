package mpc

import (
	"fmt"
	"math"

	"mpcdrive/internal/config"
	"mpcdrive/internal/nlp"
)

// Solver owns the bound/initial-guess setup for one horizon and invokes
// the nonlinear programming solver. It is stateless across cycles: every
// Solve builds a fresh decision vector with all non-initial variables
// seeded at zero.
type Solver struct {
	cfg    *config.Config
	layout Layout
}

func NewSolver(cfg *config.Config) *Solver {
	return &Solver{cfg: cfg, layout: NewLayout(cfg.Horizon)}
}

func (s *Solver) Layout() Layout { return s.layout }

// Solve optimizes steering and acceleration over the horizon for the
// given initial state and reference polynomial. The solver status is
// always surfaced on the returned Solution; a non-converged status means
// the best iterate is returned and the caller decides how to act on it.
func (s *Solver) Solve(state VehicleState, coeffs []float64) (Solution, error) {
	l := s.layout
	cfg := s.cfg

	x0 := make([]float64, l.NumVars)
	x0[l.X(0)] = state.X
	x0[l.Y(0)] = state.Y
	x0[l.Psi(0)] = state.Psi
	x0[l.V(0)] = state.V
	x0[l.CTE(0)] = state.CTE
	x0[l.EPsi(0)] = state.EPsi

	xl := make([]float64, l.NumVars)
	xu := make([]float64, l.NumVars)
	for i := 0; i < l.SteerStart(); i++ {
		xl[i] = math.Inf(-1)
		xu[i] = math.Inf(1)
	}
	for i := l.SteerStart(); i < l.AccelStart(); i++ {
		xl[i] = -cfg.SteerBound
		xu[i] = cfg.SteerBound
	}
	for i := l.AccelStart(); i < l.NumVars; i++ {
		xl[i] = -cfg.AccelBound
		xu[i] = cfg.AccelBound
	}

	// The measured initial state is an equality: the step-0 residual rows
	// get matching constraint bounds, and the step-0 variables themselves
	// are pinned so the equality holds exactly in the returned vector.
	cl := make([]float64, l.NumCons)
	cu := make([]float64, l.NumCons)
	for slot, v := range map[int]float64{
		l.X(0): state.X, l.Y(0): state.Y, l.Psi(0): state.Psi,
		l.V(0): state.V, l.CTE(0): state.CTE, l.EPsi(0): state.EPsi,
	} {
		cl[slot] = v
		cu[slot] = v
		xl[slot] = v
		xu[slot] = v
	}

	ev := NewEvaluator(cfg, l, coeffs)
	params := nlp.Params{
		MaxOuter:       cfg.Solver.MaxOuter,
		MaxInner:       cfg.Solver.MaxInner,
		Tolerance:      cfg.Solver.Tolerance,
		FeasTolerance:  cfg.Solver.FeasTolerance,
		TimeLimit:      cfg.Solver.Deadline(),
		InitialPenalty: 10,
		PenaltyGrowth:  10,
	}

	res, err := nlp.Solve(ev, x0, xl, xu, cl, cu, params)
	if err != nil {
		return Solution{}, fmt.Errorf("mpc: horizon solve: %w", err)
	}

	sol := Solution{
		Vector:       res.X,
		Cost:         res.Objective,
		MaxViolation: res.MaxViolation,
		Status:       res.Status,
		First: Actuation{
			Steer: res.X[l.Steer(0)],
			Accel: res.X[l.Accel(0)],
		},
	}
	// Predicted trajectory for display: steps 1..N-1, skipping the pinned
	// initial point.
	sol.Trajectory = make([]Point, 0, l.N-1)
	for t := 1; t < l.N; t++ {
		sol.Trajectory = append(sol.Trajectory, Point{X: res.X[l.X(t)], Y: res.X[l.Y(t)]})
	}
	return sol, nil
}
