package gateway

import (
	"timeseries-analysis/internal/model"
	"timeseries-analysis/internal/spectral"
)

// AppendRequest is the body of POST /api/v1/series/{id}/samples.
// A missing timestamp means "now".
type AppendRequest struct {
	Value     *float64 `json:"value"`
	Timestamp *int64   `json:"timestamp"`
}

// FilterParams is the filter part of filter/analyze requests.
type FilterParams struct {
	LowCutoff  float64 `json:"lowCutoff"`
	HighCutoff float64 `json:"highCutoff"`
	Order      int     `json:"order"`
	FilterType string  `json:"filterType"`
}

// Spec converts the request into a validated spectral.FilterSpec.
func (p FilterParams) Spec() (spectral.FilterSpec, error) {
	kind, err := spectral.ParseKind(p.FilterType)
	if err != nil {
		return spectral.FilterSpec{}, err
	}
	spec := spectral.FilterSpec{
		LowCutoff:  p.LowCutoff,
		HighCutoff: p.HighCutoff,
		Order:      p.Order,
		Kind:       kind,
	}
	return spec, spec.Validate()
}

// FilterRequest is the body of POST /api/analysis/fourier/filter.
type FilterRequest struct {
	model.TimeSeries
	FilterParams
}

// AnalyzeRequest is the body of POST /api/analysis/fourier/analyze.
type AnalyzeRequest struct {
	model.TimeSeries
	FilterParams *FilterParams `json:"filterParams,omitempty"`
}

// SpectrumResponse is returned by GET /api/v1/series/{id}/spectrum.
type SpectrumResponse struct {
	SeriesID          string                `json:"series"`
	SamplingFrequency float64               `json:"samplingFrequency"`
	Components        []model.SpectrumEntry `json:"components"`
	Dominant          *model.SpectrumEntry  `json:"dominant,omitempty"`
}

// SeriesInfo is one element of GET /api/v1/series.
type SeriesInfo struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}
