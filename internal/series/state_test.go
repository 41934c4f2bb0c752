package series

import (
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// foldAll runs Fold over values one sample at a time and returns every
// intermediate state.
func foldAll(st IndicatorState, values []float64) []IndicatorState {
	out := make([]IndicatorState, 0, len(values))
	for i := range values {
		st = Fold(st, values[:i+1])
		out = append(out, st)
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestFold_SMA_Period3(t *testing.T) {
	// 10, 20, 30, 40, 50 with SMA(3):
	// after 3: (10+20+30)/3 = 20
	// after 4: (20+30+40)/3 = 30
	// after 5: (30+40+50)/3 = 40
	states := foldAll(NewIndicatorState(3, 3), []float64{10, 20, 30, 40, 50})
	expected := []float64{0, 0, 20, 30, 40}
	ready := []bool{false, false, true, true, true}

	for i, st := range states {
		if st.SMAReady != ready[i] {
			t.Errorf("sample %d: SMAReady=%v, want %v", i, st.SMAReady, ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", st.SMA, expected[i], 1e-12)
		}
	}
}

func TestFold_SMA_WindowSumInvariant(t *testing.T) {
	values := []float64{5, -3, 8, 13, 21, 0.5, 7, 7, 100, -42}
	for _, period := range []int{1, 2, 3, 4, 10, 15} {
		st := NewIndicatorState(period, 1)
		for i := range values {
			st = Fold(st, values[:i+1])

			start := i + 1 - period
			if start < 0 {
				start = 0
			}
			want := 0.0
			for _, v := range values[start : i+1] {
				want += v
			}
			assertClose(t, "window sum", st.SMAWindowSum, want, 1e-9)
		}
	}
}

func TestFold_SMA_BoundaryNoDoubleCount(t *testing.T) {
	st := NewIndicatorState(4, 4)
	values := []float64{1, 2, 3, 4}
	for i := range values {
		st = Fold(st, values[:i+1])
	}
	// Exactly SMAPeriod samples: the first ready value.
	if !st.SMAReady {
		t.Fatal("expected SMA ready at len == period")
	}
	assertClose(t, "window sum", st.SMAWindowSum, 10, 0)
	assertClose(t, "SMA", st.SMA, 2.5, 0)
}

func TestFold_SMA_Period1(t *testing.T) {
	states := foldAll(NewIndicatorState(1, 1), []float64{3, 9, -1})
	for i, want := range []float64{3, 9, -1} {
		assertClose(t, "SMA(1)", states[i].SMA, want, 0)
		assertClose(t, "EMA(1)", states[i].EMA, want, 0)
	}
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestFold_EMA_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// seed after 3 samples: (10+20+30)/3 = 20
	// sample 4: (40-20)*0.5 + 20 = 30
	// sample 5: (50-30)*0.5 + 30 = 40
	states := foldAll(NewIndicatorState(3, 3), []float64{10, 20, 30, 40, 50})
	expected := []float64{0, 0, 20, 30, 40}
	ready := []bool{false, false, true, true, true}

	for i, st := range states {
		if st.EMAReady != ready[i] {
			t.Errorf("sample %d: EMAReady=%v, want %v", i, st.EMAReady, ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", st.EMA, expected[i], 1e-12)
		}
	}
}

func TestFold_EMA_HandCalculated(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// seed: 306/3 = 102.0
	// 103: (103-102)*0.5 + 102 = 102.5
	// 105: (105-102.5)*0.5 + 102.5 = 103.75
	states := foldAll(NewIndicatorState(3, 3), []float64{100, 102, 104, 103, 105})
	assertClose(t, "EMA seed", states[2].EMA, 102.0, 1e-9)
	assertClose(t, "EMA 4", states[3].EMA, 102.5, 1e-9)
	assertClose(t, "EMA 5", states[4].EMA, 103.75, 1e-9)
}

func TestFold_EMA_SeedUsesLastWindow(t *testing.T) {
	// EMA(2) with SMA(1): seed at sample 2 = (4+8)/2 = 6,
	// then multiplier 2/3: (2-6)*2/3 + 6 = 3.3333
	states := foldAll(NewIndicatorState(1, 2), []float64{4, 8, 2})
	if states[0].EMAReady {
		t.Error("EMA must be absent before EMAPeriod samples")
	}
	assertClose(t, "EMA seed", states[1].EMA, 6, 1e-12)
	assertClose(t, "EMA next", states[2].EMA, 6+(2-6)*2.0/3.0, 1e-12)
}

func TestFold_EmptyValuesIsNoop(t *testing.T) {
	st := NewIndicatorState(3, 3)
	if got := Fold(st, nil); got != st {
		t.Errorf("Fold on empty values changed state: %+v", got)
	}
}
