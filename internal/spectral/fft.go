// Package spectral implements frequency-domain analysis of sampled series:
// forward and inverse FFT, sampling-rate estimation, magnitude spectra and
// Butterworth-style filtering applied directly to FFT bins.
//
// Every function is pure. Inputs are never modified and no state is shared
// between calls, so the package is safe for unlimited parallel use.
package spectral

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// ForwardTransform returns the unnormalized DFT of values, zero-padded on
// the right to the next power of two. An empty input yields an empty
// spectrum.
func ForwardTransform(values []float64) []complex128 {
	if len(values) == 0 {
		return []complex128{}
	}

	padded := make([]complex128, NextPowerOfTwo(len(values)))
	for i, v := range values {
		padded[i] = complex(v, 0)
	}
	return fft.FFT(padded)
}

// InverseTransform runs the normalized inverse FFT of spectrum and keeps the
// real part of the first len(timestamps) points, dropping the padding tail.
// Timestamps are rebuilt from timestamps[0] with the original average
// sampling interval. Empty inputs yield empty results.
func InverseTransform(spectrum []complex128, timestamps []int64) ([]float64, []int64) {
	if len(spectrum) == 0 || len(timestamps) == 0 {
		return []float64{}, []int64{}
	}

	timeDomain := fft.IFFT(spectrum)

	n := len(timestamps)
	if n > len(timeDomain) {
		n = len(timeDomain)
	}

	values := make([]float64, n)
	for i := range values {
		values[i] = real(timeDomain[i])
	}

	first := timestamps[0]
	interval := 0.0
	if len(timestamps) > 1 {
		interval = float64(timestamps[len(timestamps)-1]-first) / float64(len(timestamps)-1)
	}
	rebuilt := make([]int64, n)
	for i := range rebuilt {
		rebuilt[i] = first + int64(math.Round(float64(i)*interval))
	}

	return values, rebuilt
}

// NextPowerOfTwo returns the smallest power of two >= n (1 for n <= 1).
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
