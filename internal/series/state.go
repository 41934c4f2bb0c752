// Package series holds append-only scalar series and keeps a simple and an
// exponential moving average current for each of them.
//
// Indicator state is advanced by a single reducer, Fold, which is used both
// for live appends and for preloading history. Batch and streaming
// initialization therefore yield identical values for identical input.
package series

// IndicatorState is the moving-average state of one series.
//
// SMAWindowSum always equals the sum of the most recent min(Count, SMAPeriod)
// values. SMA is meaningful only when SMAReady, EMA only when EMAReady.
type IndicatorState struct {
	SMAPeriod    int
	EMAPeriod    int
	Count        int
	SMAWindowSum float64

	SMA      float64
	SMAReady bool
	EMA      float64
	EMAReady bool
}

// NewIndicatorState returns an empty state for the given periods.
func NewIndicatorState(smaPeriod, emaPeriod int) IndicatorState {
	return IndicatorState{SMAPeriod: smaPeriod, EMAPeriod: emaPeriod}
}

// Fold advances st by one sample. values is the full series after the new
// value has been appended, so values[len(values)-1] is the new sample.
// Fold reads values but never modifies it.
func Fold(st IndicatorState, values []float64) IndicatorState {
	n := len(values)
	if n == 0 {
		return st
	}
	v := values[n-1]
	st.Count = n

	// SMA: O(1) sliding window sum.
	st.SMAWindowSum += v
	if n > st.SMAPeriod {
		// Value that just left the window, SMAPeriod+1 positions back.
		st.SMAWindowSum -= values[n-st.SMAPeriod-1]
	}
	if n >= st.SMAPeriod {
		st.SMA = st.SMAWindowSum / float64(st.SMAPeriod)
		st.SMAReady = true
	} else {
		st.SMA = 0
		st.SMAReady = false
	}

	// EMA: seeded with the mean of the first full window, then recursive.
	switch {
	case n < st.EMAPeriod:
		st.EMA = 0
		st.EMAReady = false
	case !st.EMAReady:
		sum := 0.0
		for _, x := range values[n-st.EMAPeriod:] {
			sum += x
		}
		st.EMA = sum / float64(st.EMAPeriod)
		st.EMAReady = true
	default:
		multiplier := 2.0 / float64(st.EMAPeriod+1)
		st.EMA = (v-st.EMA)*multiplier + st.EMA
	}

	return st
}
