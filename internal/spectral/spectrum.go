package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"timeseries-analysis/internal/model"
)

// MagnitudeSpectrum converts the lower half of spectrum (bins 0..len/2-1)
// into frequency/magnitude pairs. The upper half mirrors it for real input.
func MagnitudeSpectrum(spectrum []complex128, samplingFrequencyHz float64) ([]model.SpectrumEntry, error) {
	if samplingFrequencyHz == 0 || math.IsNaN(samplingFrequencyHz) || math.IsInf(samplingFrequencyHz, 0) || samplingFrequencyHz < 0 {
		return nil, fmt.Errorf("spectral: sampling frequency %v: %w", samplingFrequencyHz, model.ErrInvalidInput)
	}

	n := len(spectrum)
	entries := make([]model.SpectrumEntry, n/2)
	for k := range entries {
		entries[k] = model.SpectrumEntry{
			Frequency: float64(k) * samplingFrequencyHz / float64(n),
			Magnitude: cmplx.Abs(spectrum[k]),
		}
	}
	return entries, nil
}

// DominantFrequency returns the strongest non-DC entry. ok is false when
// there is no such entry.
func DominantFrequency(entries []model.SpectrumEntry) (peak model.SpectrumEntry, ok bool) {
	for _, e := range entries[min(1, len(entries)):] {
		if !ok || e.Magnitude > peak.Magnitude {
			peak, ok = e, true
		}
	}
	return peak, ok
}
