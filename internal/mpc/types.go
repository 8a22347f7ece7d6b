package mpc

import "mpcdrive/internal/nlp"

// VehicleState is one instant of the vehicle in the frame of the current
// solve (vehicle-local at solve time). Constructed fresh each control
// cycle and never mutated.
type VehicleState struct {
	X    float64
	Y    float64
	Psi  float64 // heading, radians
	V    float64
	CTE  float64 // cross-track error
	EPsi float64 // heading error
}

// Actuation is one steering/acceleration decision.
type Actuation struct {
	Steer float64 // radians, local-frame convention
	Accel float64
}

// Point is a local-frame display coordinate.
type Point struct {
	X float64
	Y float64
}

// Solution is the outcome of one horizon solve. It is consumed once to
// extract the first actuation and the display trajectory; nothing in it
// carries over to the next cycle.
type Solution struct {
	Vector       []float64
	Cost         float64
	MaxViolation float64
	Status       nlp.Status

	First      Actuation
	Trajectory []Point
}

// Converged reports whether the solver finished with an optimal status.
// A false value means the solution holds the solver's best iterate and
// the caller decides how far to trust it.
func (s Solution) Converged() bool {
	return s.Status == nlp.Converged
}
