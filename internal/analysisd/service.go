// Package analysisd wires the series store, the spectral HTTP API, the
// WebSocket hub and the optional Redis fan-out into one process.
package analysisd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"timeseries-analysis/config"
	"timeseries-analysis/internal/gateway"
	"timeseries-analysis/internal/generator"
	"timeseries-analysis/internal/metrics"
	"timeseries-analysis/internal/ringbuf"
	"timeseries-analysis/internal/series"
	redisstore "timeseries-analysis/internal/store/redis"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	livenessInterval = 10 * time.Second
	statsInterval    = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Service is the top-level orchestrator. It owns every subsystem and
// coordinates their goroutines.
type Service struct {
	cfg   *config.Config
	start time.Time

	store     *series.Store
	ring      *ringbuf.Ring
	producer  *generator.Producer
	hub       *gateway.Hub
	publisher *redisstore.Publisher // nil when Redis is disabled
	sink      fanout

	reg    *prometheus.Registry
	prom   *metrics.Metrics
	health *metrics.HealthStatus

	api        *gateway.API
	httpSrv    *http.Server
	metricsSrv *metrics.Server

	// ready is closed once the HTTP listener is bound.
	ready    chan struct{}
	httpAddr string
}

// New builds a Service from cfg. It connects to Redis when cfg.RedisAddr is
// set and fails if Redis is unreachable.
func New(cfg *config.Config) (*Service, error) {
	store, err := series.NewStore(cfg.SMAPeriod, cfg.EMAPeriod)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := &Service{
		cfg:    cfg,
		start:  time.Now(),
		store:  store,
		ring:   ringbuf.New(cfg.RingCapacity),
		hub:    gateway.NewHub(),
		reg:    reg,
		prom:   metrics.NewMetrics(reg),
		health: metrics.NewHealthStatus(cfg.RedisAddr != ""),
		ready:  make(chan struct{}),
	}
	svc.hub.Metrics = svc.prom

	if ids := cfg.ParseSeriesIDs(); len(ids) > 0 {
		svc.producer = generator.NewProducer(ids, generator.WalkConfig{}, cfg.Seed(), cfg.GeneratorInterval)
	}

	if cfg.RedisAddr != "" {
		svc.publisher, err = redisstore.NewPublisher(redisstore.PublisherConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			LatestTTL: cfg.RedisLatestTTL,
		})
		if err != nil {
			return nil, err
		}
		svc.wirePublisher()
	}

	// With the relay on, the hub is fed from Redis PubSub instead.
	if !svc.relayEnabled() {
		svc.sink = append(svc.sink, svc.hub)
	} else {
		log.Println("[analysisd] ws clients fed from redis pubsub")
	}
	if svc.publisher != nil {
		svc.sink = append(svc.sink, svc.publisher)
	}
	if cfg.WSRelay && svc.publisher == nil {
		log.Println("[analysisd] WARNING: WS_RELAY ignored, redis disabled")
	}

	svc.api = &gateway.API{
		Store:   store,
		Hub:     svc.hub,
		Sink:    svc.sink,
		Metrics: svc.prom,
		Health:  svc.health,
		Start:   svc.start,
	}
	svc.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.MetricsAddr != "" {
		svc.metricsSrv = metrics.NewServer(cfg.MetricsAddr, svc.health, reg)
	}
	return svc, nil
}

// wirePublisher reports publisher failures and breaker transitions to
// Prometheus and the health status.
func (svc *Service) wirePublisher() {
	svc.health.SetRedisConnected(true)
	svc.publisher.OnError = func(err error) {
		svc.prom.RedisPublishErrors.Inc()
		if errors.Is(err, redisstore.ErrCircuitOpen) {
			return
		}
		svc.health.SetRedisConnected(false)
	}
	svc.publisher.OnPublished = func(elapsed time.Duration) {
		svc.prom.RedisPublishDur.Observe(elapsed.Seconds())
	}
	svc.publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
		svc.prom.RedisCircuitBreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.RedisCircuitBreakerTrips.Inc()
		}
		if to == redisstore.StateClosed {
			svc.health.SetRedisConnected(true)
		}
		log.Printf("[redis] circuit breaker %s → %s", from, to)
	}
}

func (svc *Service) relayEnabled() bool {
	return svc.cfg.WSRelay && svc.publisher != nil
}

// Store returns the series store.
func (svc *Service) Store() *series.Store { return svc.store }

// Handler returns the REST + WebSocket handler.
func (svc *Service) Handler() http.Handler { return svc.httpSrv.Handler }

// Registry returns the Prometheus registry the service reports to.
func (svc *Service) Registry() *prometheus.Registry { return svc.reg }

// Ready is closed once the HTTP listener is bound; Addr is valid after that.
func (svc *Service) Ready() <-chan struct{} { return svc.ready }

// Addr returns the bound HTTP address.
func (svc *Service) Addr() string { return svc.httpAddr }

// Run starts all subsystems and blocks until ctx is cancelled or the HTTP
// server fails.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[analysisd] starting analysis service...")

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	svc.httpAddr = ln.Addr().String()

	svc.preload(cfg.PreloadPoints)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.ingestLoop(runCtx)
	}()
	if svc.producer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.producer.Run(runCtx, svc.push)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.hub.StartStatsBroadcast(runCtx, svc.start, statsInterval)
	}()

	if svc.publisher != nil {
		svc.health.StartLivenessChecker(runCtx, svc.publisher.Client(), livenessInterval)
	}
	if svc.relayEnabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gateway.NewRelay(svc.hub, svc.publisher.Client()).Run(runCtx)
		}()
	}
	if svc.metricsSrv != nil {
		svc.metricsSrv.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[analysisd] http listening on %s", svc.httpAddr)
		if err := svc.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	close(svc.ready)

	smaP, emaP := svc.store.Periods()
	log.Printf("[analysisd] SMA(%d) EMA(%d) ring=%d redis=%v relay=%v",
		smaP, emaP, svc.ring.Cap(), svc.publisher != nil, svc.relayEnabled())
	log.Println("[analysisd] ✅ all systems running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Printf("[analysisd] http server error: %v", runErr)
	}

	cancel()
	svc.shutdown(&wg)
	return runErr
}

// shutdown stops servers, waits for the loops and closes connections.
func (svc *Service) shutdown(wg *sync.WaitGroup) {
	log.Println("[analysisd] shutdown signal received...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutCancel()

	svc.hub.Close()
	if err := svc.httpSrv.Shutdown(shutCtx); err != nil {
		log.Printf("[analysisd] http shutdown: %v", err)
	}
	if svc.metricsSrv != nil {
		svc.metricsSrv.Stop(shutCtx)
	}

	wg.Wait()

	if svc.publisher != nil {
		svc.publisher.Close()
	}
	log.Println("[analysisd] shutdown complete.")
}
