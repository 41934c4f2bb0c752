package analysisd

import (
	"context"
	"errors"
	"log"
	"time"

	"timeseries-analysis/internal/model"
)

const (
	ingestPoll  = 5 * time.Millisecond
	ingestBatch = 256
)

// push is the producer side of the ingest ring. It never blocks: a full
// ring drops the sample and counts it.
func (svc *Service) push(s model.SeriesSample) bool {
	if svc.ring.Push(s) {
		return true
	}
	if svc.prom != nil {
		svc.prom.RingBufOverflow.Inc()
	}
	return false
}

// ingestLoop drains the ring into the store until ctx is cancelled, then
// drains whatever is left once more.
func (svc *Service) ingestLoop(ctx context.Context) {
	buf := make([]model.SeriesSample, ingestBatch)
	ticker := time.NewTicker(ingestPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for n := svc.ring.Drain(buf); n > 0; n = svc.ring.Drain(buf) {
				svc.ingest(context.Background(), buf[:n], "generator")
			}
			log.Printf("[analysisd] ingest loop stopped (ring dropped=%d)", svc.ring.Dropped())
			return
		case <-ticker.C:
			for {
				n := svc.ring.Drain(buf)
				if n == 0 {
					break
				}
				svc.ingest(ctx, buf[:n], "generator")
				if n < len(buf) {
					break
				}
			}
			if svc.prom != nil {
				svc.prom.RingBufLen.Set(float64(svc.ring.Len()))
			}
		}
	}
}

// ingest appends samples to the store in order and publishes the resulting
// indicator views as one batch. It returns the number of accepted samples.
func (svc *Service) ingest(ctx context.Context, samples []model.SeriesSample, source string) int {
	if len(samples) == 0 {
		return 0
	}
	results := make([]model.IndicatorResult, 0, len(samples))
	for _, s := range samples {
		res, err := svc.store.Append(s.SeriesID, s.Value, s.TS)
		if err != nil {
			if svc.prom != nil {
				svc.prom.AppendsRejected.Inc()
			}
			if !errors.Is(err, model.ErrInvalidInput) {
				log.Printf("[analysisd] append %s failed: %v", s.SeriesID, err)
			}
			continue
		}
		results = append(results, res)
	}
	if len(results) == 0 {
		return 0
	}

	seriesCount := len(svc.store.IDs())
	if svc.prom != nil {
		svc.prom.SamplesTotal.WithLabelValues(source).Add(float64(len(results)))
		svc.prom.SeriesTracked.Set(float64(seriesCount))
	}
	svc.health.RecordSample(time.Now(), seriesCount)

	if err := svc.sink.PublishBatch(ctx, results); err != nil {
		log.Printf("[analysisd] publish %d results: %v", len(results), err)
	}
	return len(results)
}

// preload seeds every generator series with n historical samples ending now,
// spaced one generator interval apart.
func (svc *Service) preload(n int) {
	if n <= 0 || svc.producer == nil {
		return
	}
	step := svc.cfg.GeneratorInterval
	if step <= 0 {
		step = time.Second
	}
	start := time.Now().Add(-time.Duration(n) * step)

	for id, walk := range svc.producer.Walks() {
		samples := walk.Batch(n, start, step)
		values := make([]float64, len(samples))
		timestamps := make([]int64, len(samples))
		for i, s := range samples {
			values[i] = s.Value
			timestamps[i] = s.TS
		}
		if err := svc.store.Preload(id, values, timestamps); err != nil {
			log.Printf("[analysisd] preload %s failed: %v", id, err)
			continue
		}
		if svc.prom != nil {
			svc.prom.SamplesTotal.WithLabelValues("preload").Add(float64(n))
		}
	}
	if svc.prom != nil {
		svc.prom.SeriesTracked.Set(float64(len(svc.store.IDs())))
	}
	log.Printf("[analysisd] preloaded %d samples per series", n)
}
