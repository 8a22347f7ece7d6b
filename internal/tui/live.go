package tui

import (
	"fmt"
	"math"
	"strings"

	"mpcdrive/internal/metrics"
	"mpcdrive/internal/mpc"
	"mpcdrive/internal/sim"
)

// World units per terminal cell. Rows cover more distance than columns
// so the track is not squashed by the character aspect ratio.
const (
	cellX = 1.5
	cellY = 3.0
)

type trailPoint struct {
	x, y  float64
	speed float64
}

// liveView holds the render state for a run in progress: the track, the
// driven trail and the cross-track history for the sparkline.
type liveView struct {
	track   sim.Track
	trail   []trailPoint
	history []float64
}

func newLiveView(track sim.Track) *liveView {
	return &liveView{
		track:   track,
		trail:   make([]trailPoint, 0, 200),
		history: make([]float64, 0, 120),
	}
}

func (v *liveView) observe(s metrics.Sample) {
	v.trail = append(v.trail, trailPoint{x: s.X, y: s.Y, speed: s.Speed})
	if len(v.trail) > 200 {
		v.trail = v.trail[1:]
	}
	v.history = append(v.history, s.CrossTrack)
	if len(v.history) > 120 {
		v.history = v.history[1:]
	}
}

// render draws a car-centered top-down view. Predicted path points come
// in vehicle-local coordinates and are rotated back into world frame.
func (v *liveView) render(s metrics.Sample, cmd mpc.Command, w, h int) string {
	if w < 40 {
		w = 40
	}
	if h < 10 {
		h = 10
	}
	canvas := make([][]rune, h)
	for i := range canvas {
		canvas[i] = make([]rune, w)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	set := func(wx, wy float64, c rune) {
		col := w/2 + int(math.Round((wx-s.X)/cellX))
		row := h/2 - int(math.Round((wy-s.Y)/cellY))
		if col >= 0 && col < w && row >= 0 && row < h {
			canvas[row][col] = c
		}
	}

	for i := range v.track.Xs {
		set(v.track.Xs[i], v.track.Ys[i], '.')
	}
	for _, pt := range v.trail {
		set(pt.x, pt.y, '·')
	}
	sinP, cosP := math.Sincos(s.Psi)
	for _, p := range cmd.Predicted {
		set(s.X+cosP*p.X-sinP*p.Y, s.Y+sinP*p.X+cosP*p.Y, '+')
	}
	set(s.X, s.Y, headingRune(s.Psi))

	var b strings.Builder
	for _, row := range canvas {
		b.WriteString("   " + string(row) + "\n")
	}
	return b.String()
}

func headingRune(psi float64) rune {
	runes := []rune{'→', '↗', '↑', '↖', '←', '↙', '↓', '↘'}
	a := math.Mod(psi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return runes[int(math.Round(a/(math.Pi/4)))%8]
}

// steerBar renders the steering command as a centered gauge.
func steerBar(steer float64, width int) string {
	half := width / 2
	pos := half + int(steer*float64(half))
	if pos < 0 {
		pos = 0
	}
	if pos >= width {
		pos = width - 1
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == pos:
			b.WriteRune('█')
		case i == half:
			b.WriteRune('┼')
		default:
			b.WriteRune('─')
		}
	}
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		v := data[i*step]
		idx := int((v - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func statusLine(s metrics.Sample, cmd mpc.Command) string {
	status := green.Render("● mpc")
	if cmd.Fallback {
		status = red.Render("○ fallback")
	}
	return fmt.Sprintf("   %s  %s%s  %s%s  %s%s",
		status,
		dim.Render("v="), white.Render(fmt.Sprintf("%.1f", s.Speed)),
		dim.Render("cte="), white.Render(fmt.Sprintf("%+.2f", s.CrossTrack)),
		dim.Render("cost="), white.Render(fmt.Sprintf("%.0f", cmd.Cost)))
}
