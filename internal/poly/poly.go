// Package poly fits and evaluates the reference-path polynomial.
//
// Waypoints are fit in the vehicle-local frame, where the path runs
// roughly along the x axis, so a low-degree polynomial y = f(x) is a
// good local description of the lane center.
package poly

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrTooFewPoints indicates fewer waypoints than the fit degree needs.
	ErrTooFewPoints = errors.New("poly: too few waypoints for requested degree")

	// ErrIllConditioned indicates a degenerate fit matrix.
	ErrIllConditioned = errors.New("poly: fit matrix is singular or ill-conditioned")
)

// Polynomial holds coefficients in ascending order: c[0] + c[1]x + c[2]x² + ...
type Polynomial struct {
	Coeffs []float64
}

// Fit computes a least-squares polynomial of the given degree through the
// waypoints, via QR factorization of the Vandermonde matrix. It needs at
// least degree+1 points and rejects mismatched or degenerate input rather
// than returning NaN coefficients.
func Fit(xs, ys []float64, degree int) (Polynomial, error) {
	if len(xs) != len(ys) {
		return Polynomial{}, fmt.Errorf("poly: mismatched waypoint lengths %d and %d", len(xs), len(ys))
	}
	if degree < 1 {
		return Polynomial{}, fmt.Errorf("poly: degree must be at least 1, got %d", degree)
	}
	if len(xs) < degree+1 {
		return Polynomial{}, fmt.Errorf("%w: have %d points, need %d", ErrTooFewPoints, len(xs), degree+1)
	}

	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(a)

	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, b); err != nil {
		return Polynomial{}, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}

	out := make([]float64, degree+1)
	copy(out, coeffs.RawVector().Data)
	for _, c := range out {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Polynomial{}, ErrIllConditioned
		}
	}
	return Polynomial{Coeffs: out}, nil
}

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	y := 0.0
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		y = y*x + p.Coeffs[i]
	}
	return y
}

// Slope evaluates the first derivative at x.
func (p Polynomial) Slope(x float64) float64 {
	s := 0.0
	for i := len(p.Coeffs) - 1; i >= 1; i-- {
		s = s*x + float64(i)*p.Coeffs[i]
	}
	return s
}

// TangentAngle is the heading of the path tangent at x, in radians.
func (p Polynomial) TangentAngle(x float64) float64 {
	return math.Atan(p.Slope(x))
}
