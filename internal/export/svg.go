// Package export renders archived runs as standalone SVG documents.
package export

import (
	"fmt"
	"strings"

	"mpcdrive/internal/metrics"
	"mpcdrive/internal/sim"
)

// PathSVG draws the reference track and the driven trail in one image,
// track in grey, trail in green.
func PathSVG(track sim.Track, samples []metrics.Sample, width, height int) string {
	if track.Len() < 2 || len(samples) < 2 {
		return ""
	}

	minX, maxX := track.Xs[0], track.Xs[0]
	minY, maxY := track.Ys[0], track.Ys[0]
	extend := func(x, y float64) {
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	for i := range track.Xs {
		extend(track.Xs[i], track.Ys[i])
	}
	for _, s := range samples {
		extend(s.X, s.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	toPixel := func(x, y float64) (float64, float64) {
		px := (x - minX) / rangeX * float64(width)
		py := float64(height) - (y-minY)/rangeY*float64(height)
		return px, py
	}

	path := func(xs, ys []float64, close bool) string {
		var sb strings.Builder
		for i := range xs {
			px, py := toPixel(xs[i], ys[i])
			if i == 0 {
				sb.WriteString(fmt.Sprintf("M%.1f,%.1f", px, py))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", px, py))
			}
		}
		if close {
			sb.WriteString(" Z")
		}
		return sb.String()
	}

	trailX := make([]float64, len(samples))
	trailY := make([]float64, len(samples))
	for i, s := range samples {
		trailX[i] = s.X
		trailY[i] = s.Y
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="#555555" stroke-width="1" stroke-dasharray="4 3" d="%s"/>
`, path(track.Xs, track.Ys, track.Closed)))
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="#00ff00" stroke-width="1.5" d="%s"/>
`, path(trailX, trailY, false)))
	sb.WriteString("</svg>")
	return sb.String()
}
