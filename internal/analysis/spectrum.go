// Package analysis inspects archived runs for control problems that the
// scalar metrics hide, like low-frequency weaving around the path.
package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum returns the magnitude spectrum of a uniformly sampled signal
// together with the frequency of each bin in Hz. The mean is removed
// first so the DC bin does not dominate.
func Spectrum(data []float64, samplePeriod float64) (freqs, mags []float64) {
	n := len(data)
	if n < 2 || samplePeriod <= 0 {
		return nil, nil
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	detrended := make([]float64, n)
	for i, v := range data {
		detrended[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, detrended)

	freqs = make([]float64, len(coeffs))
	mags = make([]float64, len(coeffs))
	for i, c := range coeffs {
		freqs[i] = fft.Freq(i) / samplePeriod
		mags[i] = cmplx.Abs(c) / float64(n)
	}
	return freqs, mags
}

// Dominant returns the strongest non-DC frequency component.
func Dominant(data []float64, samplePeriod float64) (freq, mag float64) {
	freqs, mags := Spectrum(data, samplePeriod)
	for i := 1; i < len(mags); i++ {
		if mags[i] > mag {
			mag = mags[i]
			freq = freqs[i]
		}
	}
	return freq, mag
}
