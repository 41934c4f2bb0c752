package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"timeseries-analysis/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultLatestTTL = 30 * time.Minute

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	LatestTTL      time.Duration // TTL of series:latest:<id>; 0 = 30m
	MaxFailures    int           // consecutive failures before the breaker opens; 0 = 5
	ResetTimeout   time.Duration // open → half-open delay; 0 = 10s
	PublishTimeout time.Duration // per pipeline; 0 = 2s
}

// Publisher fans indicator results out over Redis: each result is
// PUBLISHed on pub:series:<id> and SET as series:latest:<id> in one
// pipeline. Calls go through a CircuitBreaker so a dead Redis costs one
// failed call per reset period instead of one timeout per sample.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	ttl     time.Duration
	timeout time.Duration

	// OnError is called for every failed or short-circuited publish (optional).
	OnError func(err error)
	// OnPublished receives the round-trip time of every successful pipeline (optional).
	OnPublished func(elapsed time.Duration)
}

// NewPublisher connects to Redis and verifies the connection with PING.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	p := NewPublisherWithClient(goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Ping(ctx).Err(); err != nil {
		p.client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return p, nil
}

// NewPublisherWithClient wraps an existing client without pinging it.
func NewPublisherWithClient(client *goredis.Client, cfg PublisherConfig) *Publisher {
	if cfg.LatestTTL <= 0 {
		cfg.LatestTTL = defaultLatestTTL
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		ttl:     cfg.LatestTTL,
		timeout: cfg.PublishTimeout,
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker so callers can observe state changes.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// Publish writes one indicator result. It implements model.ResultSink.
func (p *Publisher) Publish(ctx context.Context, res model.IndicatorResult) error {
	return p.PublishBatch(ctx, []model.IndicatorResult{res})
}

// PublishBatch writes all results in a single pipeline round trip.
func (p *Publisher) PublishBatch(ctx context.Context, results []model.IndicatorResult) error {
	if len(results) == 0 {
		return nil
	}

	start := time.Now()
	err := p.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		pipe := p.client.Pipeline()
		for i := range results {
			res := &results[i]
			payload := string(res.JSON())
			pipe.Set(ctx, res.LatestKey(), payload, p.ttl)
			pipe.Publish(ctx, res.PubSubChannel(), payload)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if p.OnError != nil {
			p.OnError(err)
		}
		return fmt.Errorf("redis publish %d results: %w", len(results), err)
	}
	if p.OnPublished != nil {
		p.OnPublished(time.Since(start))
	}
	return nil
}

// Latest reads the last published result for a series. ok is false when the
// key is missing or expired.
func (p *Publisher) Latest(ctx context.Context, seriesID string) (res model.IndicatorResult, ok bool, err error) {
	key := (&model.IndicatorResult{SeriesID: seriesID}).LatestKey()
	raw, err := p.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return res, false, nil
	}
	if err != nil {
		return res, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return res, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return res, true, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
