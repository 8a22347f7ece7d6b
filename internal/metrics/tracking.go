package metrics

import "math"

// MeanAbsCrossTrack averages the unsigned distance to the reference path.
type MeanAbsCrossTrack struct {
	sum     float64
	samples int
}

func NewMeanAbsCrossTrack() *MeanAbsCrossTrack { return &MeanAbsCrossTrack{} }

func (m *MeanAbsCrossTrack) Name() string { return "mean_abs_cte" }

func (m *MeanAbsCrossTrack) Observe(s Sample) {
	m.sum += math.Abs(s.CrossTrack)
	m.samples++
}

func (m *MeanAbsCrossTrack) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanAbsCrossTrack) Reset() {
	m.sum = 0
	m.samples = 0
}

// SpeedError is the RMS deviation from the cruise speed.
type SpeedError struct {
	target  float64
	sumSq   float64
	samples int
}

func NewSpeedError(target float64) *SpeedError {
	return &SpeedError{target: target}
}

func (m *SpeedError) Name() string { return "speed_rms_error" }

func (m *SpeedError) Observe(s Sample) {
	d := s.Speed - m.target
	m.sumSq += d * d
	m.samples++
}

func (m *SpeedError) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *SpeedError) Reset() {
	m.sumSq = 0
	m.samples = 0
}
