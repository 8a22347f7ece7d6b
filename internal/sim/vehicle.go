package sim

import "math"

// plantStep is the integration substep for the plant, much finer than
// the control period so discretization error stays below the tolerances
// being measured.
const plantStep = 0.01

// Vehicle is the simulated plant: a kinematic bicycle in world frame.
// It holds whatever actuation was last applied and keeps acting on it
// until told otherwise, which is what makes latency experiments honest.
type Vehicle struct {
	X, Y float64
	Psi  float64
	V    float64

	wheelbase float64
	steer     float64 // road-wheel angle, radians, left positive
	accel     float64
}

func NewVehicle(wheelbase float64) *Vehicle {
	return &Vehicle{wheelbase: wheelbase}
}

func (v *Vehicle) Place(x, y, psi, speed float64) {
	v.X, v.Y, v.Psi, v.V = x, y, psi, speed
}

// Apply sets the actuation from a normalized command. The wire flips
// the steering sign relative to the vehicle frame.
func (v *Vehicle) Apply(steerNorm, throttle, steerBound float64) {
	v.steer = -steerNorm * steerBound
	v.accel = throttle
}

// WireSteer reports the current steering in wire convention, the value
// a telemetry packet would carry.
func (v *Vehicle) WireSteer() float64 { return -v.steer }

func (v *Vehicle) Throttle() float64 { return v.accel }

// Integrate advances the plant for the given duration under the current
// actuation.
func (v *Vehicle) Integrate(duration float64) {
	for duration > 0 {
		dt := math.Min(plantStep, duration)
		v.X += v.V * math.Cos(v.Psi) * dt
		v.Y += v.V * math.Sin(v.Psi) * dt
		v.Psi += v.V * v.steer / v.wheelbase * dt
		v.V += v.accel * dt
		if v.V < 0 {
			v.V = 0
		}
		duration -= dt
	}
}
