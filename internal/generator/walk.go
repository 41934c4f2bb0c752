// Package generator produces synthetic price series: a mean-reverting
// random walk with occasional jumps and a non-linear noise term. It feeds
// the service with demo data when no external producer is attached.
package generator

import (
	"math"
	"math/rand"
	"time"

	"timeseries-analysis/internal/model"
)

// WalkConfig parameterizes a random walk. Zero fields take the defaults below.
type WalkConfig struct {
	Base            float64 // starting and mean-reversion level (100)
	Volatility      float64 // scale of the gaussian step and noise (0.15)
	JumpProbability float64 // chance of a jump per step (0.1)
	MaxJump         float64 // jumps are uniform in [-MaxJump, MaxJump] (5)
	MeanReversion   float64 // pull toward Base per step (0.05)
	Floor           float64 // lowest value ever emitted (1.0)
}

func (c WalkConfig) withDefaults() WalkConfig {
	if c.Base <= 0 {
		c.Base = 100
	}
	if c.Volatility <= 0 {
		c.Volatility = 0.15
	}
	if c.JumpProbability <= 0 {
		c.JumpProbability = 0.1
	}
	if c.MaxJump <= 0 {
		c.MaxJump = 5
	}
	if c.MeanReversion <= 0 {
		c.MeanReversion = 0.05
	}
	if c.Floor <= 0 {
		c.Floor = 1
	}
	return c
}

// Walk is a single random-walk series. Not safe for concurrent use.
type Walk struct {
	cfg   WalkConfig
	rng   *rand.Rand
	value float64
}

// NewWalk creates a walk starting at cfg.Base. The same seed always yields
// the same sequence.
func NewWalk(cfg WalkConfig, seed int64) *Walk {
	cfg = cfg.withDefaults()
	return &Walk{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		value: cfg.Base,
	}
}

// Next advances the walk one step and returns the new value rounded to
// cents. It is never below the configured floor.
func (w *Walk) Next() float64 {
	if w.rng.Float64() < w.cfg.JumpProbability {
		w.value += (w.rng.Float64()*2 - 1) * w.cfg.MaxJump
	}

	change := w.rng.NormFloat64() * w.cfg.Volatility * w.value
	reversion := w.cfg.MeanReversion * (w.cfg.Base - w.value)
	noise := math.Sin(w.value/10) * w.cfg.Volatility * w.value

	w.value = math.Max(w.value+change+reversion+noise, w.cfg.Floor)
	return math.Round(w.value*100) / 100
}

// Sample returns Next stamped with t in epoch milliseconds.
func (w *Walk) Sample(t time.Time) model.Sample {
	return model.Sample{TS: t.UnixMilli(), Value: w.Next()}
}

// Batch returns n consecutive samples starting at start and spaced step apart.
func (w *Walk) Batch(n int, start time.Time, step time.Duration) []model.Sample {
	if n <= 0 {
		return nil
	}
	out := make([]model.Sample, n)
	for i := range out {
		out[i] = w.Sample(start.Add(time.Duration(i) * step))
	}
	return out
}

// Reset moves the walk back to its base value. The random sequence continues.
func (w *Walk) Reset() {
	w.value = w.cfg.Base
}
