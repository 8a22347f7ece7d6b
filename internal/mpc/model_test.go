package mpc

import (
	"math"
	"testing"
)

func TestAdvanceStraightLine(t *testing.T) {
	s := VehicleState{V: 10}
	next := Advance(s, Actuation{}, 2.67, 0.1)

	if math.Abs(next.X-1.0) > 1e-12 {
		t.Errorf("x: got %g, want 1.0", next.X)
	}
	if next.Y != 0 || next.Psi != 0 {
		t.Errorf("straight motion should not change y or psi: %+v", next)
	}
	if next.V != 10 {
		t.Errorf("v should be unchanged without acceleration, got %g", next.V)
	}
}

func TestAdvanceTurnsTowardSteering(t *testing.T) {
	s := VehicleState{V: 10}
	left := Advance(s, Actuation{Steer: 0.2}, 2.67, 0.1)
	right := Advance(s, Actuation{Steer: -0.2}, 2.67, 0.1)

	if left.Psi <= 0 {
		t.Errorf("positive steering should increase heading, got %g", left.Psi)
	}
	if right.Psi >= 0 {
		t.Errorf("negative steering should decrease heading, got %g", right.Psi)
	}
	if math.Abs(left.Psi+right.Psi) > 1e-12 {
		t.Error("steering response should be symmetric")
	}
}

func TestAdvanceAccelerates(t *testing.T) {
	s := VehicleState{V: 5}
	next := Advance(s, Actuation{Accel: 1}, 2.67, 0.15)
	if math.Abs(next.V-5.15) > 1e-12 {
		t.Errorf("v: got %g, want 5.15", next.V)
	}
}

func TestAdvanceHeadingAffectsDisplacement(t *testing.T) {
	s := VehicleState{V: 10, Psi: math.Pi / 2}
	next := Advance(s, Actuation{}, 2.67, 0.1)
	if math.Abs(next.X) > 1e-12 {
		t.Errorf("heading pi/2 should move along y only, got x=%g", next.X)
	}
	if math.Abs(next.Y-1.0) > 1e-12 {
		t.Errorf("y: got %g, want 1.0", next.Y)
	}
}
