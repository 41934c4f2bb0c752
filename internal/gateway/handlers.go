package gateway

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"timeseries-analysis/internal/generator"
	"timeseries-analysis/internal/logger"
	"timeseries-analysis/internal/metrics"
	"timeseries-analysis/internal/model"
	"timeseries-analysis/internal/series"
	"timeseries-analysis/internal/spectral"
)

const (
	maxBodyBytes  = 8 << 20
	maxSeriesID   = 128
	maxDemoPoints = 10000
)

var errSeriesNotFound = errors.New("series not found")

// API serves the REST surface over a series store.
type API struct {
	Store *series.Store
	Hub   *Hub
	// Sink receives every result appended over HTTP (typically hub + redis).
	Sink    model.ResultSink
	Metrics *metrics.Metrics      // optional
	Health  *metrics.HealthStatus // optional, served on /healthz
	Start   time.Time

	demoMu sync.Mutex
	demo   *generator.Walk
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Handler returns all routes wrapped in CORS + trace middleware.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return withTrace(mux)
}

// RegisterRoutes registers all HTTP routes on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	if a.Start.IsZero() {
		a.Start = time.Now()
	}

	mux.HandleFunc("GET /api/v1/series", a.listSeries)
	mux.HandleFunc("POST /api/v1/series/{id}/samples", a.appendSample)
	mux.HandleFunc("GET /api/v1/series/{id}", a.getSeries)
	mux.HandleFunc("GET /api/v1/series/{id}/indicators", a.getIndicators)
	mux.HandleFunc("GET /api/v1/series/{id}/spectrum", a.getSpectrum)
	mux.HandleFunc("POST /api/v1/series/{id}/filter", a.filterSeries)

	mux.HandleFunc("POST /api/analysis/fourier/transform", a.fourierTransform)
	mux.HandleFunc("POST /api/analysis/fourier/filter", a.fourierFilter)
	mux.HandleFunc("POST /api/analysis/fourier/analyze", a.fourierAnalyze)

	mux.HandleFunc("GET /api/v1/data/timeseries", a.demoTimeSeries)

	if a.Hub != nil {
		mux.HandleFunc("GET /ws", a.Hub.HandleWS)
		mux.HandleFunc("GET /api/v1/ws/latest", a.wsLatest)
		mux.HandleFunc("GET /api/v1/ws/missed", a.wsMissed)
		mux.HandleFunc("GET /api/v1/stats", a.stats)
	}

	if a.Health != nil {
		mux.Handle("GET /healthz", a.Health)
	} else {
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})
	}
}

// ─── series ──────────────────────────────────────────────────────────────────

func (a *API) listSeries(w http.ResponseWriter, r *http.Request) {
	ids := a.Store.IDs()
	out := make([]SeriesInfo, len(ids))
	for i, id := range ids {
		out[i] = SeriesInfo{ID: id, Count: a.Store.Len(id)}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) appendSample(w http.ResponseWriter, r *http.Request) {
	id, err := seriesID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req AppendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		writeError(w, r, fmt.Errorf("missing value: %w", model.ErrInvalidInput))
		return
	}
	ts := time.Now().UnixMilli()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	res, err := a.Store.Append(id, *req.Value, ts)
	if err != nil {
		if a.Metrics != nil {
			a.Metrics.AppendsRejected.Inc()
		}
		writeError(w, r, err)
		return
	}
	if a.Metrics != nil {
		a.Metrics.SamplesTotal.WithLabelValues("http").Inc()
	}
	if a.Health != nil {
		a.Health.RecordSample(time.Now(), len(a.Store.IDs()))
	}

	if a.Sink != nil {
		if err := a.Sink.Publish(r.Context(), res); err != nil {
			slog.WarnContext(r.Context(), "publish failed", append(logger.LogWithTrace(r.Context()),
				slog.String("series", id), slog.String("error", err.Error()))...)
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (a *API) getSeries(w http.ResponseWriter, r *http.Request) {
	id, err := seriesID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	samples := a.Store.Samples(id)
	if samples == nil {
		writeError(w, r, fmt.Errorf("%s: %w", id, errSeriesNotFound))
		return
	}
	writeJSON(w, http.StatusOK, samples)
}

func (a *API) getIndicators(w http.ResponseWriter, r *http.Request) {
	id, err := seriesID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, ok := a.Store.Indicators(id)
	if !ok {
		writeError(w, r, fmt.Errorf("%s: %w", id, errSeriesNotFound))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) getSpectrum(w http.ResponseWriter, r *http.Request) {
	id, values, timestamps, err := a.snapshot(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	entries, fs, err := spectral.Spectrum(values, timestamps)
	a.observe("spectrum", start)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := SpectrumResponse{SeriesID: id, SamplingFrequency: fs, Components: entries}
	if peak, ok := spectral.DominantFrequency(entries); ok {
		resp.Dominant = &peak
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) filterSeries(w http.ResponseWriter, r *http.Request) {
	_, values, timestamps, err := a.snapshot(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var params FilterParams
	if err := decodeBody(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.runFilter(values, timestamps, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── stateless analysis ──────────────────────────────────────────────────────

func (a *API) fourierTransform(w http.ResponseWriter, r *http.Request) {
	var req model.TimeSeries
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	entries, _, err := spectral.Spectrum(req.Values, req.Timestamps)
	a.observe("transform", start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) fourierFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := a.runFilter(req.Values, req.Timestamps, req.FilterParams)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) fourierAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var spec *spectral.FilterSpec
	if req.FilterParams != nil {
		s, err := req.FilterParams.Spec()
		if err != nil {
			writeError(w, r, err)
			return
		}
		spec = &s
		a.countFilter(s.Kind)
	}

	start := time.Now()
	analysis, err := spectral.Analyze(req.Values, req.Timestamps, spec)
	a.observe("analyze", start)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (a *API) runFilter(values []float64, timestamps []int64, params FilterParams) (model.TimeSeries, error) {
	spec, err := params.Spec()
	if err != nil {
		return model.TimeSeries{}, err
	}
	a.countFilter(spec.Kind)

	start := time.Now()
	fv, ft, err := spectral.FilterSeries(values, timestamps, spec)
	a.observe("filter", start)
	if err != nil {
		return model.TimeSeries{}, err
	}
	return model.TimeSeries{Values: fv, Timestamps: ft}, nil
}

// ─── demo data ───────────────────────────────────────────────────────────────

// demoTimeSeries returns ?points=N (default 20) random-walk samples spaced
// 50ms apart and ending now. The samples are not stored.
func (a *API) demoTimeSeries(w http.ResponseWriter, r *http.Request) {
	points := 20
	if s := r.URL.Query().Get("points"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxDemoPoints {
			writeError(w, r, fmt.Errorf("points must be 1..%d: %w", maxDemoPoints, model.ErrInvalidInput))
			return
		}
		points = n
	}

	const step = 50 * time.Millisecond
	start := time.Now().Add(-time.Duration(points-1) * step)

	a.demoMu.Lock()
	if a.demo == nil {
		a.demo = generator.NewWalk(generator.WalkConfig{}, time.Now().UnixNano())
	}
	samples := a.demo.Batch(points, start, step)
	a.demoMu.Unlock()

	writeJSON(w, http.StatusOK, samples)
}

// ─── websocket helpers ───────────────────────────────────────────────────────

func (a *API) wsLatest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Hub.GetLatestAll())
}

// wsMissed serves ?channel=series:X&from=N&to=M from the replay buffer.
// A missing "to" means the current channel seq.
func (a *API) wsMissed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if channel == "" || err != nil {
		writeError(w, r, fmt.Errorf("channel and numeric from are required: %w", model.ErrInvalidInput))
		return
	}
	to := a.Hub.GetChannelSeq(channel)
	if s := q.Get("to"); s != "" {
		if to, err = strconv.ParseInt(s, 10, 64); err != nil {
			writeError(w, r, fmt.Errorf("to must be numeric: %w", model.ErrInvalidInput))
			return
		}
	}

	envelopes := a.Hub.GetReplayRange(channel, from, to)
	if envelopes == nil {
		envelopes = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channel":   channel,
		"from":      from,
		"to":        to,
		"envelopes": envelopes,
	})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Hub.CollectStats(a.Start))
}

// ─── plumbing ────────────────────────────────────────────────────────────────

func (a *API) snapshot(r *http.Request) (string, []float64, []int64, error) {
	id, err := seriesID(r)
	if err != nil {
		return "", nil, nil, err
	}
	values, timestamps := a.Store.Snapshot(id)
	if values == nil {
		return "", nil, nil, fmt.Errorf("%s: %w", id, errSeriesNotFound)
	}
	return id, values, timestamps, nil
}

func (a *API) observe(op string, start time.Time) {
	if a.Metrics != nil {
		a.Metrics.ObserveSpectral(op, start)
	}
}

func (a *API) countFilter(kind spectral.Kind) {
	if a.Metrics != nil {
		a.Metrics.FilterRequests.WithLabelValues(kind.String()).Inc()
	}
}

func seriesID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if id == "" || len(id) > maxSeriesID {
		return "", fmt.Errorf("series id must be 1..%d bytes: %w", maxSeriesID, model.ErrInvalidInput)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %v: %w", err, model.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to status codes: bad input 400, unknown
// series 404, anything else 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrInsufficientData):
		status = http.StatusBadRequest
	case errors.Is(err, errSeriesNotFound):
		status = http.StatusNotFound
	}

	ctx := r.Context()
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "request failed", append(logger.LogWithTrace(ctx),
		slog.String("path", r.URL.Path), slog.Int("status", status), slog.String("error", err.Error()))...)

	writeJSON(w, status, ErrorResponse{Error: err.Error(), TraceID: logger.TraceID(ctx)})
}

// ─── middleware ──────────────────────────────────────────────────────────────

// withTrace sets CORS headers, answers preflight requests, attaches a trace
// id to the request context and logs every request.
func withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		start := time.Now()
		traceID := logger.GenerateTraceID("http", start)
		ctx := logger.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		slog.DebugContext(ctx, "http request", append(logger.LogWithTrace(ctx),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
