// Package metrics aggregates per-cycle driving statistics.
package metrics

// Sample is one closed-loop control cycle as seen by the plant.
type Sample struct {
	T          float64 `json:"t"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Psi        float64 `json:"psi"`
	Speed      float64 `json:"speed"`
	CrossTrack float64 `json:"cte"`   // signed distance to the reference path
	Steer      float64 `json:"steer"` // normalized command, [-1, 1]
	Throttle   float64 `json:"throttle"`
	Fallback   bool    `json:"fallback"`
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metric set the simulator reports by default.
func Standard(targetSpeed float64) []Metric {
	return []Metric{
		NewMeanAbsCrossTrack(),
		NewSpeedError(targetSpeed),
		NewControlEffort(),
		NewOscillation(),
		NewFallbackRate(),
	}
}
