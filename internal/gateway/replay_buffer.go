package gateway

import (
	"encoding/json"
	"sync"
)

// ReplayBuffer keeps the most recent envelopes of one channel so clients
// that detect a channel_seq gap can backfill over REST. Safe for
// concurrent use.
type ReplayBuffer struct {
	mu      sync.RWMutex
	seqs    []int64
	entries [][]byte
	next    int // slot written by the next Push
	size    int // filled slots
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replayDepth
	}
	return &ReplayBuffer{
		seqs:    make([]int64, capacity),
		entries: make([][]byte, capacity),
	}
}

// Push stores a copy of envelope under seq, evicting the oldest when full.
func (rb *ReplayBuffer) Push(seq int64, envelope []byte) {
	cp := append([]byte(nil), envelope...)

	rb.mu.Lock()
	rb.seqs[rb.next] = seq
	rb.entries[rb.next] = cp
	rb.next = (rb.next + 1) % len(rb.entries)
	if rb.size < len(rb.entries) {
		rb.size++
	}
	rb.mu.Unlock()
}

// Range returns envelopes with seq in [fromSeq, toSeq], oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []json.RawMessage {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []json.RawMessage
	oldest := (rb.next - rb.size + len(rb.entries)) % len(rb.entries)
	for i := 0; i < rb.size; i++ {
		slot := (oldest + i) % len(rb.entries)
		if seq := rb.seqs[slot]; seq >= fromSeq && seq <= toSeq {
			out = append(out, rb.entries[slot])
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}
