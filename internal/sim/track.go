package sim

import (
	"fmt"
	"math"
)

// Track is a reference path given as an ordered waypoint polyline. Closed
// tracks wrap around, open tracks end at the last waypoint.
type Track struct {
	Xs, Ys []float64
	Closed bool
}

// Straight is a level line along the x axis.
func Straight(length, spacing float64) Track {
	n := int(length/spacing) + 1
	t := Track{Xs: make([]float64, n), Ys: make([]float64, n)}
	for i := range t.Xs {
		t.Xs[i] = float64(i) * spacing
	}
	return t
}

// Wave follows a sine of the given amplitude and wavelength, a gentle
// slalom that keeps the controller steering both ways.
func Wave(length, spacing, amplitude, wavelength float64) Track {
	n := int(length/spacing) + 1
	t := Track{Xs: make([]float64, n), Ys: make([]float64, n)}
	for i := range t.Xs {
		x := float64(i) * spacing
		t.Xs[i] = x
		t.Ys[i] = amplitude * math.Sin(2*math.Pi*x/wavelength)
	}
	return t
}

// Loop is a closed circle of the given radius.
func Loop(radius float64, points int) Track {
	t := Track{Xs: make([]float64, points), Ys: make([]float64, points), Closed: true}
	for i := range t.Xs {
		a := 2 * math.Pi * float64(i) / float64(points)
		t.Xs[i] = radius * math.Cos(a)
		t.Ys[i] = radius * math.Sin(a)
	}
	return t
}

// ByName maps a preset name to its track.
func ByName(name string) (Track, error) {
	switch name {
	case "straight":
		return Straight(2000, 5), nil
	case "wave":
		return Wave(2000, 5, 4, 120), nil
	case "loop":
		return Loop(60, 72), nil
	default:
		return Track{}, fmt.Errorf("sim: unknown track %q", name)
	}
}

func (t Track) Len() int { return len(t.Xs) }

// Start returns the initial pose: the first waypoint, heading toward the
// second.
func (t Track) Start() (x, y, psi float64) {
	x, y = t.Xs[0], t.Ys[0]
	psi = math.Atan2(t.Ys[1]-t.Ys[0], t.Xs[1]-t.Xs[0])
	return x, y, psi
}

// Window returns count waypoints beginning at the one nearest to (x, y),
// wrapping on closed tracks and clamping at the end of open ones.
func (t Track) Window(x, y float64, count int) ([]float64, []float64) {
	nearest := 0
	best := math.Inf(1)
	for i := range t.Xs {
		d := math.Hypot(t.Xs[i]-x, t.Ys[i]-y)
		if d < best {
			best = d
			nearest = i
		}
	}
	xs := make([]float64, 0, count)
	ys := make([]float64, 0, count)
	for k := 0; k < count; k++ {
		i := nearest + k
		if t.Closed {
			i %= len(t.Xs)
		} else if i >= len(t.Xs) {
			i = len(t.Xs) - 1
		}
		xs = append(xs, t.Xs[i])
		ys = append(ys, t.Ys[i])
	}
	return xs, ys
}

// CrossTrack is the signed distance from (x, y) to the nearest path
// segment, positive when the point lies left of the travel direction.
func (t Track) CrossTrack(x, y float64) float64 {
	n := len(t.Xs)
	segs := n - 1
	if t.Closed {
		segs = n
	}
	best := math.Inf(1)
	signed := 0.0
	for i := 0; i < segs; i++ {
		j := (i + 1) % n
		ax, ay := t.Xs[i], t.Ys[i]
		dx, dy := t.Xs[j]-ax, t.Ys[j]-ay
		l2 := dx*dx + dy*dy
		if l2 == 0 {
			continue
		}
		u := ((x-ax)*dx + (y-ay)*dy) / l2
		u = math.Max(0, math.Min(1, u))
		px, py := ax+u*dx, ay+u*dy
		d := math.Hypot(x-px, y-py)
		if d < best {
			best = d
			cross := dx*(y-ay) - dy*(x-ax)
			signed = math.Copysign(d, cross)
		}
	}
	return signed
}
