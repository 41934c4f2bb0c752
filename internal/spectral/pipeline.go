package spectral

import (
	"fmt"
	"math"

	"timeseries-analysis/internal/model"
)

// Analysis is the combined result of a spectrum analysis and an optional
// filter pass over one series.
type Analysis struct {
	SamplingFrequency float64               `json:"samplingFrequency"`
	Components        []model.SpectrumEntry `json:"frequencyAnalysis"`
	Dominant          *model.SpectrumEntry  `json:"dominant,omitempty"`
	Filtered          model.TimeSeries      `json:"filteredData"`
}

// FilterSeries filters a sampled series in the frequency domain:
// ForwardTransform → SamplingFrequencyHz → ApplyFilter → InverseTransform.
func FilterSeries(values []float64, timestamps []int64, spec FilterSpec) ([]float64, []int64, error) {
	if err := validateSeries(values, timestamps); err != nil {
		return nil, nil, err
	}

	fs, err := SamplingFrequencyHz(timestamps)
	if err != nil {
		return nil, nil, err
	}

	filtered, err := ApplyFilter(ForwardTransform(values), fs, spec)
	if err != nil {
		return nil, nil, err
	}

	outValues, outTimestamps := InverseTransform(filtered, timestamps)
	return outValues, outTimestamps, nil
}

// Spectrum computes the magnitude spectrum of a sampled series along with
// the sampling frequency it was derived from.
func Spectrum(values []float64, timestamps []int64) ([]model.SpectrumEntry, float64, error) {
	if err := validateSeries(values, timestamps); err != nil {
		return nil, 0, err
	}
	fs, err := SamplingFrequencyHz(timestamps)
	if err != nil {
		return nil, 0, err
	}
	entries, err := MagnitudeSpectrum(ForwardTransform(values), fs)
	if err != nil {
		return nil, 0, err
	}
	return entries, fs, nil
}

// Analyze returns the magnitude spectrum of a series and, when spec is not
// nil, the filtered series. Without a filter the input series is returned
// unchanged in Filtered.
func Analyze(values []float64, timestamps []int64, spec *FilterSpec) (Analysis, error) {
	entries, fs, err := Spectrum(values, timestamps)
	if err != nil {
		return Analysis{}, err
	}

	a := Analysis{
		SamplingFrequency: fs,
		Components:        entries,
		Filtered:          model.TimeSeries{Values: values, Timestamps: timestamps},
	}
	if peak, ok := DominantFrequency(entries); ok {
		a.Dominant = &peak
	}

	if spec != nil {
		fv, ft, err := FilterSeries(values, timestamps, *spec)
		if err != nil {
			return Analysis{}, err
		}
		a.Filtered = model.TimeSeries{Values: fv, Timestamps: ft}
	}
	return a, nil
}

func validateSeries(values []float64, timestamps []int64) error {
	if len(values) != len(timestamps) {
		return fmt.Errorf("spectral: %d values but %d timestamps: %w", len(values), len(timestamps), model.ErrInvalidInput)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("spectral: non-finite value at index %d: %w", i, model.ErrInvalidInput)
		}
	}
	return nil
}
