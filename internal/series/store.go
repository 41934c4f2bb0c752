package series

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"timeseries-analysis/internal/model"
)

// entry is one series plus its indicator state, guarded by its own lock.
// Appends to one key never block appends to another.
type entry struct {
	mu         sync.RWMutex
	values     []float64
	timestamps []int64
	state      IndicatorState
}

// Store holds named series. It is safe for concurrent use: the registry lock
// only guards the id → entry map, each entry serializes its own updates.
type Store struct {
	smaPeriod int
	emaPeriod int

	mu     sync.RWMutex
	series map[string]*entry
}

// NewStore creates an empty store. Every series it creates uses the given
// SMA and EMA periods.
func NewStore(smaPeriod, emaPeriod int) (*Store, error) {
	if smaPeriod < 1 || emaPeriod < 1 {
		return nil, fmt.Errorf("series: periods must be >= 1 (sma=%d, ema=%d): %w",
			smaPeriod, emaPeriod, model.ErrInvalidInput)
	}
	return &Store{
		smaPeriod: smaPeriod,
		emaPeriod: emaPeriod,
		series:    make(map[string]*entry, 16),
	}, nil
}

// Periods returns the configured SMA and EMA periods.
func (s *Store) Periods() (smaPeriod, emaPeriod int) {
	return s.smaPeriod, s.emaPeriod
}

// Append adds a sample to the series id (creating it on first use) and
// updates its indicators. Non-finite values are rejected before anything is
// mutated.
func (s *Store) Append(id string, value float64, ts int64) (model.IndicatorResult, error) {
	if id == "" {
		return model.IndicatorResult{}, fmt.Errorf("series: empty series id: %w", model.ErrInvalidInput)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return model.IndicatorResult{}, fmt.Errorf("series %s: non-finite value %v: %w", id, value, model.ErrInvalidInput)
	}

	e := s.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.values = append(e.values, value)
	e.timestamps = append(e.timestamps, ts)
	e.state = Fold(e.state, e.values)

	return e.result(id), nil
}

// Preload seeds a new series with history. It runs the same reducer as
// Append once per sample, so the resulting indicators equal those of
// appending the values one by one. The series must not hold samples yet.
func (s *Store) Preload(id string, values []float64, timestamps []int64) error {
	if id == "" {
		return fmt.Errorf("series: empty series id: %w", model.ErrInvalidInput)
	}
	if len(values) != len(timestamps) {
		return fmt.Errorf("series %s: %d values but %d timestamps: %w",
			id, len(values), len(timestamps), model.ErrInvalidInput)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("series %s: non-finite value at index %d: %w", id, i, model.ErrInvalidInput)
		}
	}

	e := s.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.values) > 0 {
		return fmt.Errorf("series %s: already holds %d samples: %w", id, len(e.values), model.ErrInvalidInput)
	}

	e.values = make([]float64, 0, len(values))
	e.timestamps = make([]int64, 0, len(timestamps))
	for i, v := range values {
		e.values = append(e.values, v)
		e.timestamps = append(e.timestamps, timestamps[i])
		e.state = Fold(e.state, e.values)
	}

	if len(values) > 0 {
		log.Printf("[series] preloaded %d samples for %s", len(values), id)
	}
	return nil
}

// Snapshot returns copies of the values and timestamps of series id.
// Unknown ids yield empty (nil) slices.
func (s *Store) Snapshot(id string) ([]float64, []int64) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	values := make([]float64, len(e.values))
	copy(values, e.values)
	timestamps := make([]int64, len(e.timestamps))
	copy(timestamps, e.timestamps)
	return values, timestamps
}

// Samples returns a copy of series id as (timestamp, value) pairs, nil for
// unknown ids.
func (s *Store) Samples(id string) []model.Sample {
	values, timestamps := s.Snapshot(id)
	if values == nil {
		return nil
	}
	out := make([]model.Sample, len(values))
	for i := range values {
		out[i] = model.Sample{TS: timestamps[i], Value: values[i]}
	}
	return out
}

// LastSMA returns the current SMA of series id. ok is false until the
// series holds at least SMAPeriod samples.
func (s *Store) LastSMA(id string) (sma float64, ok bool) {
	e, found := s.lookup(id)
	if !found {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.SMA, e.state.SMAReady
}

// LastEMA returns the current EMA of series id. ok is false until the
// series holds at least EMAPeriod samples.
func (s *Store) LastEMA(id string) (ema float64, ok bool) {
	e, found := s.lookup(id)
	if !found {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.EMA, e.state.EMAReady
}

// Indicators returns the current indicator view of series id.
func (s *Store) Indicators(id string) (model.IndicatorResult, bool) {
	e, found := s.lookup(id)
	if !found {
		return model.IndicatorResult{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.result(id), true
}

// Len returns the number of samples in series id.
func (s *Store) Len(id string) int {
	e, found := s.lookup(id)
	if !found {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.values)
}

// IDs returns the known series ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.series[id]
	return e, ok
}

func (s *Store) getOrCreate(id string) *entry {
	s.mu.RLock()
	e, ok := s.series[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.series[id]; ok {
		return e
	}
	e = &entry{state: NewIndicatorState(s.smaPeriod, s.emaPeriod)}
	s.series[id] = e
	return e
}

// result builds the indicator view. Caller holds e.mu.
func (e *entry) result(id string) model.IndicatorResult {
	r := model.IndicatorResult{
		SeriesID:  id,
		Count:     e.state.Count,
		SMAPeriod: e.state.SMAPeriod,
		EMAPeriod: e.state.EMAPeriod,
	}
	if n := len(e.values); n > 0 {
		r.Value = e.values[n-1]
		r.TS = e.timestamps[n-1]
	}
	if e.state.SMAReady {
		sma := e.state.SMA
		r.SMA = &sma
	}
	if e.state.EMAReady {
		ema := e.state.EMA
		r.EMA = &ema
	}
	return r
}
