package metrics

import "math"

// ControlEffort averages the magnitude of the actuation commands.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(s Sample) {
	c.sum += math.Abs(s.Steer) + math.Abs(s.Throttle)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Oscillation counts steering sign reversals per cycle. A well tuned
// controller on a smooth path stays near zero.
type Oscillation struct {
	last      float64
	haveLast  bool
	reversals int
	samples   int
}

func NewOscillation() *Oscillation { return &Oscillation{} }

func (o *Oscillation) Name() string { return "steer_reversals" }

func (o *Oscillation) Observe(s Sample) {
	if o.haveLast && o.last*s.Steer < 0 {
		o.reversals++
	}
	o.last = s.Steer
	o.haveLast = true
	o.samples++
}

func (o *Oscillation) Value() float64 {
	if o.samples == 0 {
		return 0
	}
	return float64(o.reversals) / float64(o.samples)
}

func (o *Oscillation) Reset() {
	o.last = 0
	o.haveLast = false
	o.reversals = 0
	o.samples = 0
}

// FallbackRate is the fraction of cycles where the solver missed its
// deadline and a fallback command was issued.
type FallbackRate struct {
	fallbacks int
	samples   int
}

func NewFallbackRate() *FallbackRate { return &FallbackRate{} }

func (f *FallbackRate) Name() string { return "fallback_rate" }

func (f *FallbackRate) Observe(s Sample) {
	if s.Fallback {
		f.fallbacks++
	}
	f.samples++
}

func (f *FallbackRate) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.fallbacks) / float64(f.samples)
}

func (f *FallbackRate) Reset() {
	f.fallbacks = 0
	f.samples = 0
}
