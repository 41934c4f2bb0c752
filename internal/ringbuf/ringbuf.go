// Package ringbuf provides a lock-free, single-producer single-consumer (SPSC)
// ring buffer of model.SeriesSample. It decouples sample producers (the
// generator) from the goroutine that folds samples into the series store.
package ringbuf

import (
	"math/bits"
	"sync/atomic"

	"timeseries-analysis/internal/model"
)

const cacheLine = 64

// Ring is a lock-free SPSC ring buffer. Capacity is a power of two so the
// slot index is a mask instead of a modulo.
type Ring struct {
	buf  []model.SeriesSample
	mask uint64

	// head and tail live on separate cache lines.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // consumer
	_pad2 [cacheLine]byte

	dropped atomic.Uint64
}

// New creates a ring with capacity rounded up to a power of two (minimum 2).
func New(capacity int) *Ring {
	size := nextPow2(capacity)
	if size < 2 {
		size = 2
	}
	return &Ring{
		buf:  make([]model.SeriesSample, size),
		mask: uint64(size - 1),
	}
}

// Push enqueues s. It returns false and counts a drop when the ring is full.
func (r *Ring) Push(s model.SeriesSample) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[head&r.mask] = s
	r.head.Store(head + 1)
	return true
}

// Pop dequeues the oldest sample. ok is false when the ring is empty.
func (r *Ring) Pop() (model.SeriesSample, bool) {
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return model.SeriesSample{}, false
	}
	s := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return s, true
}

// Drain pops up to len(dst) samples into dst and returns how many were written.
func (r *Ring) Drain(dst []model.SeriesSample) int {
	n := 0
	for n < len(dst) {
		s, ok := r.Pop()
		if !ok {
			break
		}
		dst[n] = s
		n++
	}
	return n
}

func (r *Ring) Len() int { return int(r.head.Load() - r.tail.Load()) }

func (r *Ring) Cap() int { return len(r.buf) }

// Dropped returns the number of pushes rejected because the ring was full.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
