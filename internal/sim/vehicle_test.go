package sim

import (
	"math"
	"testing"
)

func TestVehicleStraightLine(t *testing.T) {
	v := NewVehicle(2.67)
	v.Place(0, 0, 0, 10)
	v.Integrate(2)
	if math.Abs(v.X-20) > 1e-9 || math.Abs(v.Y) > 1e-9 {
		t.Errorf("pose = (%v, %v), want (20, 0)", v.X, v.Y)
	}
	if v.Psi != 0 {
		t.Errorf("heading drifted to %v", v.Psi)
	}
}

func TestVehicleThrottleAcceleration(t *testing.T) {
	v := NewVehicle(2.67)
	v.Place(0, 0, 0, 5)
	v.Apply(0, 0.5, 0.436332)
	v.Integrate(4)
	if math.Abs(v.V-7) > 1e-9 {
		t.Errorf("speed = %v, want 7", v.V)
	}
}

func TestVehicleSpeedNeverNegative(t *testing.T) {
	v := NewVehicle(2.67)
	v.Place(0, 0, 0, 1)
	v.Apply(0, -1, 0.436332)
	v.Integrate(5)
	if v.V != 0 {
		t.Errorf("speed = %v, want 0", v.V)
	}
}

func TestVehicleWireSteerFlipsSign(t *testing.T) {
	v := NewVehicle(2.67)
	v.Apply(0.5, 0, 0.436332)
	if math.Abs(v.WireSteer()-0.5*0.436332) > 1e-12 {
		t.Errorf("wire steer = %v", v.WireSteer())
	}
	// A positive wire command turns the vehicle right (heading down).
	v.Place(0, 0, 0, 10)
	v.Integrate(1)
	if v.Psi >= 0 {
		t.Errorf("heading = %v, want negative", v.Psi)
	}
	if v.Y >= 0 {
		t.Errorf("y = %v, want negative", v.Y)
	}
}
