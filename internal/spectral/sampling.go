package spectral

import (
	"fmt"

	"timeseries-analysis/internal/model"
)

// SamplingFrequencyHz estimates the sampling rate of millisecond timestamps
// as 1000 / average interval. Uniform spacing is assumed; irregular spacing
// is neither detected nor corrected.
func SamplingFrequencyHz(timestamps []int64) (float64, error) {
	if len(timestamps) < 2 {
		return 0, fmt.Errorf("spectral: sampling frequency needs at least 2 timestamps, got %d: %w",
			len(timestamps), model.ErrInsufficientData)
	}

	span := timestamps[len(timestamps)-1] - timestamps[0]
	if span <= 0 {
		return 0, fmt.Errorf("spectral: timestamps span %d ms, must be positive: %w", span, model.ErrInvalidInput)
	}

	avgIntervalMs := float64(span) / float64(len(timestamps)-1)
	return 1000.0 / avgIntervalMs, nil
}
