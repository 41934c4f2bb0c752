package generator

import (
	"context"
	"log"
	"time"

	"timeseries-analysis/internal/model"
)

// Producer ticks every interval and emits one sample per series through push.
// push returning false means the sample was dropped (e.g. full ring).
type Producer struct {
	ids      []string
	walks    []*Walk
	interval time.Duration
	now      func() time.Time

	dropped uint64
}

// NewProducer creates one walk per series id. Each walk is seeded with
// seed+i so series differ but the whole set is reproducible.
func NewProducer(ids []string, cfg WalkConfig, seed int64, interval time.Duration) *Producer {
	p := &Producer{
		ids:      append([]string(nil), ids...),
		walks:    make([]*Walk, len(ids)),
		interval: interval,
		now:      time.Now,
	}
	for i := range ids {
		p.walks[i] = NewWalk(cfg, seed+int64(i))
	}
	return p
}

// Walks returns the walk behind each series id. Drawing from a walk advances
// the series, so callers must not use it concurrently with Run.
func (p *Producer) Walks() map[string]*Walk {
	out := make(map[string]*Walk, len(p.ids))
	for i, id := range p.ids {
		out[id] = p.walks[i]
	}
	return out
}

// Tick emits one sample per series stamped at t and returns how many were
// accepted by push.
func (p *Producer) Tick(t time.Time, push func(model.SeriesSample) bool) int {
	accepted := 0
	for i, id := range p.ids {
		s := model.SeriesSample{SeriesID: id, Sample: p.walks[i].Sample(t)}
		if push(s) {
			accepted++
		} else {
			p.dropped++
		}
	}
	return accepted
}

// Run calls Tick on every interval until ctx is cancelled.
func (p *Producer) Run(ctx context.Context, push func(model.SeriesSample) bool) {
	if len(p.ids) == 0 || p.interval <= 0 {
		log.Printf("[generator] disabled (series=%d interval=%v)", len(p.ids), p.interval)
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[generator] producing %v every %v", p.ids, p.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[generator] stopped (dropped=%d)", p.dropped)
			return
		case <-ticker.C:
			p.Tick(p.now(), push)
		}
	}
}
