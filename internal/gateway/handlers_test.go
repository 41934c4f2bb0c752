package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"timeseries-analysis/internal/metrics"
	"timeseries-analysis/internal/model"
	"timeseries-analysis/internal/series"
	"timeseries-analysis/internal/spectral"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestAPI(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	store, err := series.NewStore(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	hub := NewHub()
	api := &API{
		Store:   store,
		Hub:     hub,
		Sink:    hub,
		Metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return api, srv
}

func do(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp, raw
}

func appendSamples(t *testing.T, srvURL, id string, values []float64, step int64) model.IndicatorResult {
	t.Helper()
	var last model.IndicatorResult
	for i, v := range values {
		resp, body := do(t, http.MethodPost, srvURL+"/api/v1/series/"+id+"/samples",
			map[string]interface{}{"value": v, "timestamp": int64(i) * step})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("append %d: status %d: %s", i, resp.StatusCode, body)
		}
		if err := json.Unmarshal(body, &last); err != nil {
			t.Fatal(err)
		}
	}
	return last
}

func TestAppendAndIndicators(t *testing.T) {
	_, srv := newTestAPI(t)

	// Periods 3/3: after 1,2,3 both SMA and EMA (seeded with the mean) are 2.
	res := appendSamples(t, srv.URL, "DEMO", []float64{1, 2, 3}, 100)
	if res.Count != 3 || res.SMA == nil || res.EMA == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if *res.SMA != 2 || *res.EMA != 2 {
		t.Errorf("sma=%v ema=%v, want 2/2", *res.SMA, *res.EMA)
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/series/DEMO/indicators", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var view model.IndicatorResult
	json.Unmarshal(body, &view)
	if view.Count != 3 || view.Value != 3 || view.TS != 200 {
		t.Errorf("unexpected view %+v", view)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/series/DEMO", nil)
	var samples []model.Sample
	json.Unmarshal(body, &samples)
	if resp.StatusCode != http.StatusOK || len(samples) != 3 || samples[1].Value != 2 || samples[1].TS != 100 {
		t.Errorf("unexpected samples %s", body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/api/v1/series", nil)
	var infos []SeriesInfo
	json.Unmarshal(body, &infos)
	if len(infos) != 1 || infos[0].ID != "DEMO" || infos[0].Count != 3 {
		t.Errorf("unexpected series list %s", body)
	}
}

func TestAppend_NotReadyIsNull(t *testing.T) {
	_, srv := newTestAPI(t)
	_, body := do(t, http.MethodPost, srv.URL+"/api/v1/series/X/samples", map[string]float64{"value": 5})
	if !strings.Contains(string(body), `"sma":null`) || !strings.Contains(string(body), `"ema":null`) {
		t.Errorf("expected null indicators, got %s", body)
	}
}

func TestAppend_BadRequests(t *testing.T) {
	_, srv := newTestAPI(t)
	cases := []struct {
		name string
		body interface{}
	}{
		{"missing value", map[string]int64{"timestamp": 1}},
		{"null value", `{"value":null}`},
		{"invalid json", `{"value":`},
		{"wrong type", `{"value":"abc"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/series/DEMO/samples", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.StatusCode, body)
			}
			var e ErrorResponse
			if err := json.Unmarshal(body, &e); err != nil || e.Error == "" || e.TraceID == "" {
				t.Errorf("unexpected error body %s", body)
			}
		})
	}
}

func TestUnknownSeries_404(t *testing.T) {
	_, srv := newTestAPI(t)
	for _, path := range []string{
		"/api/v1/series/NOPE",
		"/api/v1/series/NOPE/indicators",
		"/api/v1/series/NOPE/spectrum",
	} {
		resp, _ := do(t, http.MethodGet, srv.URL+path, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/series/NOPE/filter",
		FilterParams{HighCutoff: 1, Order: 1, FilterType: "lowpass"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("filter: expected 404, got %d", resp.StatusCode)
	}
}

func TestSeriesSpectrum(t *testing.T) {
	_, srv := newTestAPI(t)
	appendSamples(t, srv.URL, "C", []float64{3, 3, 3, 3}, 100)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/series/C/spectrum", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var sr SpectrumResponse
	json.Unmarshal(body, &sr)
	if sr.SamplingFrequency != 10 || len(sr.Components) != 2 {
		t.Fatalf("unexpected spectrum %s", body)
	}
	if math.Abs(sr.Components[0].Magnitude-12) > 1e-9 {
		t.Errorf("DC magnitude = %v, want 12", sr.Components[0].Magnitude)
	}
}

func TestSeriesSpectrum_InsufficientData(t *testing.T) {
	_, srv := newTestAPI(t)
	appendSamples(t, srv.URL, "ONE", []float64{1}, 100)

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/series/ONE/spectrum", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a single sample, got %d", resp.StatusCode)
	}
}

func TestSeriesFilter(t *testing.T) {
	_, srv := newTestAPI(t)
	appendSamples(t, srv.URL, "F", []float64{1, 5, 2, 8, 3, 7, 4, 6}, 10)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/v1/series/F/filter",
		FilterParams{HighCutoff: 10, Order: 2, FilterType: "lowpass"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var ts model.TimeSeries
	json.Unmarshal(body, &ts)
	if len(ts.Values) != 8 || len(ts.Timestamps) != 8 || ts.Timestamps[7] != 70 {
		t.Errorf("unexpected filtered series %s", body)
	}

	for _, bad := range []FilterParams{
		{HighCutoff: 10, Order: 2, FilterType: "notch"},
		{HighCutoff: 10, Order: 0, FilterType: "lowpass"},
		{LowCutoff: 10, HighCutoff: 5, Order: 2, FilterType: "bandpass"},
	} {
		resp, _ := do(t, http.MethodPost, srv.URL+"/api/v1/series/F/filter", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%+v: expected 400, got %d", bad, resp.StatusCode)
		}
	}
}

func TestFourierTransform(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/api/analysis/fourier/transform",
		model.TimeSeries{Values: []float64{1, 2, 3, 4}, Timestamps: []int64{0, 100, 200, 300}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var entries []model.SpectrumEntry
	json.Unmarshal(body, &entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %s", body)
	}
	// DC = 1+2+3+4; bin 1 = |-2+2i|.
	if math.Abs(entries[0].Magnitude-10) > 1e-9 || math.Abs(entries[1].Magnitude-math.Sqrt(8)) > 1e-9 {
		t.Errorf("unexpected magnitudes %+v", entries)
	}
	if entries[1].Frequency != 2.5 {
		t.Errorf("bin 1 frequency = %v, want 2.5", entries[1].Frequency)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/analysis/fourier/transform",
		model.TimeSeries{Values: []float64{1, 2}, Timestamps: []int64{0}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("mismatched lengths: expected 400, got %d", resp.StatusCode)
	}
}

func TestFourierFilter(t *testing.T) {
	_, srv := newTestAPI(t)

	req := FilterRequest{
		TimeSeries:   model.TimeSeries{Values: []float64{4, 4, 4, 4}, Timestamps: []int64{0, 100, 200, 300}},
		FilterParams: FilterParams{LowCutoff: 1, Order: 2, FilterType: "highpass"},
	}
	resp, body := do(t, http.MethodPost, srv.URL+"/api/analysis/fourier/filter", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var ts model.TimeSeries
	json.Unmarshal(body, &ts)
	// A highpass removes the constant entirely.
	for i, v := range ts.Values {
		if math.Abs(v) > 1e-9 {
			t.Errorf("value %d = %v, want 0", i, v)
		}
	}
}

func TestFourierAnalyze(t *testing.T) {
	_, srv := newTestAPI(t)
	input := model.TimeSeries{Values: []float64{1, 2, 3, 4}, Timestamps: []int64{0, 100, 200, 300}}

	resp, body := do(t, http.MethodPost, srv.URL+"/api/analysis/fourier/analyze", AnalyzeRequest{TimeSeries: input})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var a spectral.Analysis
	json.Unmarshal(body, &a)
	if a.SamplingFrequency != 10 || len(a.Components) != 2 {
		t.Errorf("unexpected analysis %s", body)
	}
	if len(a.Filtered.Values) != 4 || a.Filtered.Values[2] != 3 {
		t.Errorf("without filterParams the input should be echoed: %s", body)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/analysis/fourier/analyze", AnalyzeRequest{
		TimeSeries:   input,
		FilterParams: &FilterParams{HighCutoff: 1, Order: 2, FilterType: "sideways"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad filter type: expected 400, got %d", resp.StatusCode)
	}
}

func TestDemoTimeSeries(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/data/timeseries?points=5", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var samples []model.Sample
	json.Unmarshal(body, &samples)
	if len(samples) != 5 {
		t.Fatalf("expected 5 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].TS-samples[i-1].TS != 50 {
			t.Errorf("samples %d/%d are not 50ms apart", i-1, i)
		}
	}

	for _, q := range []string{"0", "-1", "abc", "100000"} {
		resp, _ := do(t, http.MethodGet, srv.URL+"/api/v1/data/timeseries?points="+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("points=%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestCORSPreflightAndTrace(t *testing.T) {
	_, srv := newTestAPI(t)

	resp, _ := do(t, http.MethodOptions, srv.URL+"/api/analysis/fourier/analyze", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("X-Trace-Id"), "http-") {
		t.Errorf("healthz: status %d trace %q", resp.StatusCode, resp.Header.Get("X-Trace-Id"))
	}
}

func TestWSMissed(t *testing.T) {
	_, srv := newTestAPI(t)
	appendSamples(t, srv.URL, "R", []float64{1, 2, 3}, 100)

	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/ws/missed?channel=series:R&from=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var out struct {
		To        int64             `json:"to"`
		Envelopes []json.RawMessage `json:"envelopes"`
	}
	json.Unmarshal(body, &out)
	if out.To != 3 || len(out.Envelopes) != 2 {
		t.Errorf("unexpected replay %s", body)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/v1/ws/missed?channel=series:R", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing from: expected 400, got %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	_, srv := newTestAPI(t)
	resp, body := do(t, http.MethodGet, srv.URL+"/api/v1/stats", nil)
	var s SystemStats
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &s) != nil || s.Goroutines == 0 {
		t.Errorf("unexpected stats %d %s", resp.StatusCode, body)
	}
}
