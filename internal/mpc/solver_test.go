package mpc

import (
	"math"
	"testing"

	"mpcdrive/internal/config"
	"mpcdrive/internal/nlp"
)

// solveConfig removes the real-time cap and loosens tolerances so tests
// exercise solution quality rather than wall-clock behavior.
func solveConfig() *config.Config {
	cfg := config.Default()
	cfg.Solver.TimeLimit = 0
	cfg.Solver.MaxOuter = 15
	cfg.Solver.MaxInner = 400
	cfg.Solver.Tolerance = 1e-3
	cfg.Solver.FeasTolerance = 1e-3
	return cfg
}

func TestSolvePinsInitialState(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)
	l := s.Layout()

	state := VehicleState{X: 0.8, Y: -0.3, Psi: 0.05, V: 33, CTE: 0.7, EPsi: -0.04}
	sol, err := s.Solve(state, []float64{0.7, -0.04, 0, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	got := []float64{
		sol.Vector[l.X(0)], sol.Vector[l.Y(0)], sol.Vector[l.Psi(0)],
		sol.Vector[l.V(0)], sol.Vector[l.CTE(0)], sol.Vector[l.EPsi(0)],
	}
	want := []float64{state.X, state.Y, state.Psi, state.V, state.CTE, state.EPsi}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("initial slot %d: got %g, want exactly %g", i, got[i], want[i])
		}
	}
}

func TestSolveRespectsActuatorBounds(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)
	l := s.Layout()

	// A hard left turn at speed pushes steering toward its bound.
	state := VehicleState{V: 40, CTE: 2.0, EPsi: 0.3}
	sol, err := s.Solve(state, []float64{2.0, 0.3, 0.02, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	for t2 := 0; t2 < l.N-1; t2++ {
		steer := sol.Vector[l.Steer(t2)]
		accel := sol.Vector[l.Accel(t2)]
		if steer < -cfg.SteerBound || steer > cfg.SteerBound {
			t.Errorf("step %d: steering %g outside bound %g", t2, steer, cfg.SteerBound)
		}
		if accel < -cfg.AccelBound || accel > cfg.AccelBound {
			t.Errorf("step %d: acceleration %g outside bound %g", t2, accel, cfg.AccelBound)
		}
	}
}

func TestSolveDynamicsConsistency(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)
	l := s.Layout()
	coeffs := []float64{0, 0, 0, 0}

	state := VehicleState{V: cfg.TargetSpeed}
	sol, err := s.Solve(state, coeffs)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.MaxViolation > 0.05 {
		t.Fatalf("solution too infeasible to check: max violation %g (status %v)", sol.MaxViolation, sol.Status)
	}

	tol := sol.MaxViolation + 1e-9
	for t2 := 0; t2 < l.N-1; t2++ {
		cur := VehicleState{
			X: sol.Vector[l.X(t2)], Y: sol.Vector[l.Y(t2)], Psi: sol.Vector[l.Psi(t2)],
			V: sol.Vector[l.V(t2)],
		}
		act := Actuation{Steer: sol.Vector[l.Steer(t2)], Accel: sol.Vector[l.Accel(t2)]}
		next := Advance(cur, act, cfg.Wheelbase, cfg.Step)

		checks := []struct {
			name string
			got  float64
			want float64
		}{
			{"x", sol.Vector[l.X(t2 + 1)], next.X},
			{"y", sol.Vector[l.Y(t2 + 1)], next.Y},
			{"psi", sol.Vector[l.Psi(t2 + 1)], next.Psi},
			{"v", sol.Vector[l.V(t2 + 1)], next.V},
		}
		for _, c := range checks {
			if math.Abs(c.got-c.want) > tol {
				t.Errorf("step %d %s: solution %g vs model %g (tol %g)", t2, c.name, c.got, c.want, tol)
			}
		}
	}
}

func TestSolveStraightPathBelowTargetSpeed(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)

	// Straight road, on the centerline, aligned, but slow.
	state := VehicleState{V: 10}
	sol, err := s.Solve(state, []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if math.Abs(sol.First.Steer) > 0.1 {
		t.Errorf("straight path should need near-zero steering, got %g", sol.First.Steer)
	}
	if sol.First.Accel < 0.2 {
		t.Errorf("below target speed should command positive acceleration, got %g", sol.First.Accel)
	}
}

func TestSolveLeftCurveSteersLeft(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)

	// Reference curving left (y grows quadratically): positive steering
	// in the local convention.
	state := VehicleState{V: 30}
	sol, err := s.Solve(state, []float64{0, 0, 0.03, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if sol.First.Steer <= 0 {
		t.Errorf("left curve should produce positive steering, got %g", sol.First.Steer)
	}
	if sol.First.Steer > cfg.SteerBound {
		t.Errorf("steering %g exceeds bound %g", sol.First.Steer, cfg.SteerBound)
	}
}

func TestSolveSteadyState(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)

	// At target speed with no errors on a straight path.
	state := VehicleState{V: cfg.TargetSpeed}
	sol, err := s.Solve(state, []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	if math.Abs(sol.First.Steer) > 0.05 {
		t.Errorf("steady state should hold near-zero steering, got %g", sol.First.Steer)
	}
	if math.Abs(sol.First.Accel) > 0.15 {
		t.Errorf("steady state should hold near-zero acceleration, got %g", sol.First.Accel)
	}
}

func TestSolveTrajectoryExcludesInitialPoint(t *testing.T) {
	cfg := solveConfig()
	s := NewSolver(cfg)

	state := VehicleState{V: 20}
	sol, err := s.Solve(state, []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(sol.Trajectory) != cfg.Horizon-1 {
		t.Errorf("expected %d trajectory points, got %d", cfg.Horizon-1, len(sol.Trajectory))
	}
	// Moving forward at speed, the first displayed point should already
	// be ahead of the origin.
	if len(sol.Trajectory) > 0 && sol.Trajectory[0].X <= 0 {
		t.Errorf("first predicted point should be ahead of the vehicle, got x=%g", sol.Trajectory[0].X)
	}
}

func TestSolveTimeCapSurfacesStatus(t *testing.T) {
	cfg := solveConfig()
	cfg.Solver.TimeLimit = 1e-9
	s := NewSolver(cfg)

	sol, err := s.Solve(VehicleState{V: 20}, []float64{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("a truncated solve must not fail hard: %v", err)
	}
	if sol.Status == nlp.Converged {
		t.Error("near-zero time cap should report a non-converged status")
	}
	if sol.Converged() {
		t.Error("Converged() must distinguish a truncated result")
	}
	for _, v := range sol.Vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("best iterate contains invalid value %g", v)
		}
	}
}
