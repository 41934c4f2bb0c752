package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencySummary is a percentile snapshot in milliseconds.
type LatencySummary struct {
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Count int     `json:"count"`
}

// LatencyTracker keeps the last N broadcast latencies (ms) in a circular
// window. Safe for concurrent use.
type LatencyTracker struct {
	mu     sync.Mutex
	window []float64
	next   int
	filled int
}

// NewLatencyTracker creates a tracker over the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{window: make([]float64, capacity)}
}

// Record adds one latency sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.window[lt.next] = ms
	lt.next = (lt.next + 1) % len(lt.window)
	if lt.filled < len(lt.window) {
		lt.filled++
	}
	lt.mu.Unlock()
}

// Summary returns p50/p95/p99 over the window; all zero when empty.
func (lt *LatencyTracker) Summary() LatencySummary {
	lt.mu.Lock()
	sorted := append([]float64(nil), lt.window[:lt.filled]...)
	lt.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(sorted)
	return LatencySummary{
		P50:   quantile(sorted, 0.50),
		P95:   quantile(sorted, 0.95),
		P99:   quantile(sorted, 0.99),
		Count: len(sorted),
	}
}

// Count returns the number of samples in the window.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.filled
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := q * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
