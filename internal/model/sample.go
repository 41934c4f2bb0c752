// Package model holds the value types shared by the series store, the
// spectral functions and the transport layers that wrap them.
package model

import "encoding/json"

// Sample is a single observation of a scalar series.
// TS is a Unix timestamp in milliseconds.
type Sample struct {
	TS    int64   `json:"timestamp"`
	Value float64 `json:"value"`
}

// SeriesSample is a Sample tagged with the series it belongs to.
// It is the unit carried by the ingest ring buffer.
type SeriesSample struct {
	SeriesID string
	Sample
}

// SpectrumEntry is one bin of a magnitude spectrum.
type SpectrumEntry struct {
	Frequency float64 `json:"frequency"` // Hz
	Magnitude float64 `json:"magnitude"`
}

// JSON returns the JSON-encoded sample.
func (s *Sample) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// TimeSeries is a columnar snapshot of a series: Values[i] was observed at
// Timestamps[i] (Unix milliseconds).
type TimeSeries struct {
	Values     []float64 `json:"values"`
	Timestamps []int64   `json:"timestamps"`
}
