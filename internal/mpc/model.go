package mpc

import "math"

// Advance pushes the pose part of a state through the kinematic bicycle
// model for one interval. Cross-track and heading error are not updated
// here; inside a solve they propagate against the reference polynomial
// in the evaluator, and the latency compensation in the control loop
// updates them with the same velocity/steering terms.
func Advance(s VehicleState, a Actuation, wheelbase, dt float64) VehicleState {
	return VehicleState{
		X:    s.X + s.V*math.Cos(s.Psi)*dt,
		Y:    s.Y + s.V*math.Sin(s.Psi)*dt,
		Psi:  s.Psi + s.V*a.Steer/wheelbase*dt,
		V:    s.V + a.Accel*dt,
		CTE:  s.CTE,
		EPsi: s.EPsi,
	}
}
