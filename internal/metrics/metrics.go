package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analysis service.
type Metrics struct {
	SamplesTotal    *prometheus.CounterVec // labels: source=http|generator|preload
	AppendsRejected prometheus.Counter
	SeriesTracked   prometheus.Gauge

	// Spectral engine
	SpectralComputeDur *prometheus.HistogramVec // labels: op=spectrum|filter|analyze|transform
	FilterRequests     *prometheus.CounterVec   // labels: kind

	// Ingest ring
	RingBufOverflow prometheus.Counter
	RingBufLen      prometheus.Gauge

	// Fan-out
	WSClients      prometheus.Gauge
	BroadcastDrops prometheus.Counter

	// Redis publisher + circuit breaker
	RedisPublishDur          prometheus.Histogram
	RedisPublishErrors       prometheus.Counter
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them on reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		SamplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysisd_samples_total",
			Help: "Samples appended to the series store",
		}, []string{"source"}),
		AppendsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysisd_appends_rejected_total",
			Help: "Samples rejected as invalid input",
		}),
		SeriesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analysisd_series_tracked",
			Help: "Number of series held in memory",
		}),

		SpectralComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analysisd_spectral_compute_duration_seconds",
			Help:    "Frequency-domain computation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"op"}),
		FilterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analysisd_filter_requests_total",
			Help: "Frequency-domain filter requests by filter kind",
		}, []string{"kind"}),

		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysisd_ringbuf_overflow_total",
			Help: "Ring buffer push overflows (dropped samples)",
		}),
		RingBufLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analysisd_ringbuf_len",
			Help: "Samples waiting in the ingest ring",
		}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analysisd_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysisd_broadcast_drops_total",
			Help: "Messages dropped for slow WebSocket clients",
		}),

		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysisd_redis_publish_duration_seconds",
			Help:    "Redis publish pipeline latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysisd_redis_publish_errors_total",
			Help: "Failed or short-circuited Redis publishes",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analysisd_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analysisd_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.SamplesTotal,
		m.AppendsRejected,
		m.SeriesTracked,
		m.SpectralComputeDur,
		m.FilterRequests,
		m.RingBufOverflow,
		m.RingBufLen,
		m.WSClients,
		m.BroadcastDrops,
		m.RedisPublishDur,
		m.RedisPublishErrors,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// ObserveSpectral records the duration of a spectral operation started at start.
func (m *Metrics) ObserveSpectral(op string, start time.Time) {
	m.SpectralComputeDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool
	RedisConnected bool
	RedisLatencyMs float64
	LastSampleTime time.Time
	SeriesCount    int
	LastCheckAt    time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

// RecordSample notes the arrival of a sample and the current series count.
func (h *HealthStatus) RecordSample(t time.Time, seriesCount int) {
	h.mu.Lock()
	h.LastSampleTime = t
	h.SeriesCount = seriesCount
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker pings Redis every interval until ctx is done.
// It does nothing when rdb is nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	if rdb == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				h.CheckRedis(probeCtx, rdb)
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint. The service is degraded (503)
// only when Redis is configured and unreachable; in-memory analysis keeps
// working either way.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	sampleAge := ""
	lastSample := ""
	if !h.LastSampleTime.IsZero() {
		sampleAge = time.Since(h.LastSampleTime).Round(time.Millisecond).String()
		lastSample = h.LastSampleTime.Format(time.RFC3339)
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		Series         int     `json:"series"`
		LastSampleTime string  `json:"last_sample_time"`
		SampleAge      string  `json:"sample_age"`
		RedisEnabled   bool    `json:"redis_enabled"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		Series:         h.SeriesCount,
		LastSampleTime: lastSample,
		SampleAge:      sampleAge,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server over the given gatherer.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: NewMux(health, gatherer),
		},
	}
}

// NewMux returns the /metrics + /healthz routes.
func NewMux(health *HealthStatus, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
