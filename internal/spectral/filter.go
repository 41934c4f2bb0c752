package spectral

import (
	"fmt"
	"math"
	"strings"

	"timeseries-analysis/internal/model"
)

// Kind selects the shape of a frequency-domain filter.
type Kind int

const (
	KindUnknown Kind = iota
	Lowpass
	Highpass
	Bandpass
)

func (k Kind) String() string {
	switch k {
	case Lowpass:
		return "lowpass"
	case Highpass:
		return "highpass"
	case Bandpass:
		return "bandpass"
	default:
		return "unknown"
	}
}

// ParseKind maps "lowpass", "highpass" or "bandpass" (any case) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lowpass":
		return Lowpass, nil
	case "highpass":
		return Highpass, nil
	case "bandpass":
		return Bandpass, nil
	}
	return KindUnknown, fmt.Errorf("spectral: unknown filter type %q: %w", s, model.ErrInvalidInput)
}

// FilterSpec parameterizes a Butterworth-style magnitude response.
// Lowpass uses HighCutoff, Highpass uses LowCutoff, Bandpass uses both.
type FilterSpec struct {
	LowCutoff  float64 `json:"lowCutoff"`  // Hz
	HighCutoff float64 `json:"highCutoff"` // Hz
	Order      int     `json:"order"`
	Kind       Kind    `json:"-"`
}

// Validate reports whether the filter can be applied.
func (s FilterSpec) Validate() error {
	if s.Order < 1 {
		return fmt.Errorf("spectral: filter order %d must be >= 1: %w", s.Order, model.ErrInvalidInput)
	}
	for _, c := range []float64{s.LowCutoff, s.HighCutoff} {
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return fmt.Errorf("spectral: cutoff %v must be finite and non-negative: %w", c, model.ErrInvalidInput)
		}
	}

	switch s.Kind {
	case Lowpass:
		if s.HighCutoff <= 0 {
			return fmt.Errorf("spectral: lowpass needs highCutoff > 0: %w", model.ErrInvalidInput)
		}
	case Highpass:
		if s.LowCutoff <= 0 {
			return fmt.Errorf("spectral: highpass needs lowCutoff > 0: %w", model.ErrInvalidInput)
		}
	case Bandpass:
		if s.LowCutoff <= 0 || s.HighCutoff <= s.LowCutoff {
			return fmt.Errorf("spectral: bandpass needs 0 < lowCutoff < highCutoff (got %v, %v): %w",
				s.LowCutoff, s.HighCutoff, model.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("spectral: filter kind %d: %w", s.Kind, model.ErrInvalidInput)
	}
	return nil
}

// Response is the filter gain in [0, 1] at frequency (Hz). There is no
// phase model. An unknown Kind passes everything (gain 1). The highpass
// term is 0 at frequency 0 rather than dividing by zero.
func Response(frequency float64, spec FilterSpec) float64 {
	switch spec.Kind {
	case Lowpass:
		return lowpassGain(frequency, spec.HighCutoff, spec.Order)
	case Highpass:
		return highpassGain(frequency, spec.LowCutoff, spec.Order)
	case Bandpass:
		return lowpassGain(frequency, spec.HighCutoff, spec.Order) *
			highpassGain(frequency, spec.LowCutoff, spec.Order)
	default:
		return 1.0
	}
}

func lowpassGain(f, cutoff float64, order int) float64 {
	return 1 / math.Sqrt(1+math.Pow(f/cutoff, float64(2*order)))
}

func highpassGain(f, cutoff float64, order int) float64 {
	if f == 0 {
		return 0
	}
	return 1 / math.Sqrt(1+math.Pow(cutoff/f, float64(2*order)))
}

// ApplyFilter scales every bin of spectrum by the filter gain at its
// frequency and returns the result as a new slice. Bins above len/2 are
// evaluated at their folded frequency fs - i*fs/len, which keeps the
// spectrum conjugate-symmetric so the inverse transform stays real.
func ApplyFilter(spectrum []complex128, samplingFrequencyHz float64, spec FilterSpec) ([]complex128, error) {
	if len(spectrum) == 0 {
		return nil, fmt.Errorf("spectral: empty spectrum: %w", model.ErrInvalidInput)
	}
	if !(samplingFrequencyHz > 0) || math.IsInf(samplingFrequencyHz, 0) {
		return nil, fmt.Errorf("spectral: sampling frequency %v must be > 0: %w", samplingFrequencyHz, model.ErrInvalidInput)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	n := len(spectrum)
	binWidth := samplingFrequencyHz / float64(n)
	filtered := make([]complex128, n)
	for i, bin := range spectrum {
		f := float64(i) * binWidth
		if i > n/2 {
			f = samplingFrequencyHz - f
		}
		filtered[i] = bin * complex(Response(f, spec), 0)
	}
	return filtered, nil
}
