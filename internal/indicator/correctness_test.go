package indicator

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
		t.Errorf("%s: got %.9f, want %.9f (tol=%g, diff=%g)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// EMA weighting
// ────────────────────────────────────────────────────────────

func TestDecayFactor(t *testing.T) {
	assertClose(t, "decay(12)", DecayFactor(12), 11.0/13.0, 1e-15)
	assertClose(t, "decay(26)", DecayFactor(26), 25.0/27.0, 1e-15)
	assertClose(t, "decay(9)", DecayFactor(9), 0.8, 1e-15)
}

func TestWindowEMA_HandCalculated(t *testing.T) {
	// Newest first: 3, 2, 1 with decay 0.5
	// weights 1, 0.5, 0.25 → (3 + 1 + 0.25) / 1.75 = 2.4285714...
	got := WindowEMA([]float64{3, 2, 1}, 0.5)
	assertClose(t, "WindowEMA", got, 4.25/1.75, 1e-12)
}

func TestEMA_Period3_WindowSlides(t *testing.T) {
	// EMA(3): decay = 1 - 2/4 = 0.5
	ema := NewEMA(3)

	ema.Update(1)
	ema.Update(2)
	if ema.Ready() || ema.Value().Valid {
		t.Fatal("EMA(3) should be null after 2 values")
	}

	ema.Update(3)
	assertClose(t, "EMA(3) after 1,2,3", ema.Value().Float64, 4.25/1.75, 1e-12)

	// Window is now 4,3,2; the 1 is gone.
	ema.Update(4)
	assertClose(t, "EMA(3) after 4", ema.Value().Float64, (4+1.5+0.5)/1.75, 1e-12)
}

func TestEMA_SameWindowIsBitIdentical(t *testing.T) {
	// Two EMAs with different histories but the same last 12 values must
	// agree exactly.
	a, b := NewEMA(12), NewEMA(12)
	for i := 0; i < 40; i++ {
		a.Update(float64(1000 - i*7))
	}
	for i := 0; i < 5; i++ {
		b.Update(1)
	}
	for i := 0; i < 12; i++ {
		v := 100 + float64(i)*1.37
		a.Update(v)
		b.Update(v)
	}
	if a.Value().Float64 != b.Value().Float64 {
		t.Fatalf("EMA differs for identical windows: %v vs %v", a.Value().Float64, b.Value().Float64)
	}
}

// ────────────────────────────────────────────────────────────
// SMA / StdDev
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA after 3: 102, after 4: 103, after 5: 104
	sma := NewSMA("ma", 3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(p)
		if sma.Ready() != ready[i] {
			t.Errorf("value %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value().Float64, expected[i], 1e-12)
		} else if sma.Value().Valid {
			t.Errorf("value %d: expected null SMA", i)
		}
	}
	if sma.Name() != "ma_3" {
		t.Errorf("name=%q, want ma_3", sma.Name())
	}
}

func TestSampleStdDev(t *testing.T) {
	// Population sd of this set is 2; sample sd is sqrt(32/7).
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assertClose(t, "sample stddev", SampleStdDev(vals), math.Sqrt(32.0/7.0), 1e-12)
	if SampleStdDev([]float64{5}) != 0 {
		t.Error("stddev of a single value should be 0")
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger / Volume
// ────────────────────────────────────────────────────────────

func TestBollinger_FlatSeriesCollapses(t *testing.T) {
	bb := NewBollinger(20, 2)
	for i := 0; i < 19; i++ {
		bb.Update(50)
	}
	if bb.Bands().Upper.Valid {
		t.Fatal("bands should be null before 20 closes")
	}
	bb.Update(50)

	b := bb.Bands()
	assertClose(t, "middle", b.Middle.Float64, 50, 1e-12)
	assertClose(t, "upper", b.Upper.Float64, 50, 1e-12)
	assertClose(t, "lower", b.Lower.Float64, 50, 1e-12)
	assertClose(t, "width", b.Width.Float64, 0, 1e-12)
}

func TestBollinger_HandCalculated(t *testing.T) {
	// Period 4, k=2 over 1,2,3,4: mean 2.5, sample sd sqrt(5/3)
	bb := NewBollinger(4, 2)
	for _, v := range []float64{1, 2, 3, 4} {
		bb.Update(v)
	}
	sd := math.Sqrt(5.0 / 3.0)
	b := bb.Bands()
	assertClose(t, "middle", b.Middle.Float64, 2.5, 1e-12)
	assertClose(t, "upper", b.Upper.Float64, 2.5+2*sd, 1e-12)
	assertClose(t, "lower", b.Lower.Float64, 2.5-2*sd, 1e-12)
	assertClose(t, "width", b.Width.Float64, 4*sd/2.5, 1e-12)
}

func TestBollinger_ZeroMiddleHasNullWidth(t *testing.T) {
	bb := NewBollinger(2, 2)
	bb.Update(1)
	bb.Update(-1)
	if bb.Bands().Width.Valid {
		t.Fatal("width should be null when the middle band is 0")
	}
}

func TestVolumeRatio(t *testing.T) {
	vr := NewVolumeRatio(3)
	vr.Update(100)
	vr.Update(200)
	if vr.Value().Valid || vr.Average().Valid {
		t.Fatal("volume ratio should be null before 3 days")
	}
	vr.Update(300)
	assertClose(t, "vma", vr.Average().Float64, 200, 1e-12)
	assertClose(t, "ratio", vr.Value().Float64, 1.5, 1e-12)
}

func TestVolumeRatio_ZeroAverageIsNull(t *testing.T) {
	vr := NewVolumeRatio(2)
	vr.Update(0)
	vr.Update(0)
	if vr.Value().Valid {
		t.Fatal("ratio over a zero average should be null")
	}
	if !vr.Average().Valid {
		t.Fatal("average itself should be present")
	}
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_SimpleAverage(t *testing.T) {
	// 7 gains of 0.02 and 7 losses of 0.01 over 14 returns:
	// avgGain = 0.01, avgLoss = 0.005, RS = 2 → RSI = 100 - 100/3
	rsi := NewRSI(14)
	for i := 0; i < 7; i++ {
		rsi.Update(0.02)
		rsi.Update(-0.01)
	}
	if !rsi.Ready() {
		t.Fatal("RSI should be ready after 14 returns")
	}
	assertClose(t, "RSI", rsi.Value().Float64, 100-100.0/3.0, 1e-9)
}

func TestRSI_NullBeforeWindow(t *testing.T) {
	rsi := NewRSI(14)
	for i := 0; i < 13; i++ {
		rsi.Update(0.01)
		if rsi.Value().Valid {
			t.Fatalf("RSI should be null after %d returns", i+1)
		}
	}
}

func TestRSI_Extremes(t *testing.T) {
	up := NewRSI(3)
	flat := NewRSI(3)
	down := NewRSI(3)
	for i := 0; i < 3; i++ {
		up.Update(0.01)
		flat.Update(0)
		down.Update(-0.01)
	}
	assertClose(t, "all gains", up.Value().Float64, 100, 1e-12)
	assertClose(t, "flat", flat.Value().Float64, 50, 1e-12)
	assertClose(t, "all losses", down.Value().Float64, 0, 1e-12)
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_Gating(t *testing.T) {
	m := NewMACD(FastPeriod, SlowPeriod, SignalPeriod)
	for i := 1; i <= 40; i++ {
		m.Update(100 + float64(i))
		r := m.Reading()

		if r.Fast.Valid != (i >= FastPeriod) {
			t.Errorf("row %d: ema_12 valid=%v", i, r.Fast.Valid)
		}
		if r.Line.Valid != (i >= SlowPeriod) {
			t.Errorf("row %d: macd_line valid=%v", i, r.Line.Valid)
		}
		if r.Signal.Valid != (i >= SignalWarmup) {
			t.Errorf("row %d: macd_signal valid=%v", i, r.Signal.Valid)
		}
		if r.Histogram.Valid != r.Signal.Valid {
			t.Errorf("row %d: histogram valid=%v, signal valid=%v", i, r.Histogram.Valid, r.Signal.Valid)
		}
	}
}

func TestMACD_FlatSeriesIsZero(t *testing.T) {
	m := NewMACD(FastPeriod, SlowPeriod, SignalPeriod)
	for i := 0; i < SignalWarmup; i++ {
		m.Update(42)
	}
	r := m.Reading()
	assertClose(t, "line", r.Line.Float64, 0, 1e-12)
	assertClose(t, "signal", r.Signal.Float64, 0, 1e-12)
	assertClose(t, "histogram", r.Histogram.Float64, 0, 1e-12)
}

func TestMACD_LineIsFastMinusSlow(t *testing.T) {
	m := NewMACD(3, 5, 2)
	closes := []float64{10, 11, 13, 12, 15, 14}
	for _, c := range closes {
		m.Update(c)
	}
	fast := WindowEMA([]float64{14, 15, 12}, DecayFactor(3))
	slow := WindowEMA([]float64{14, 15, 12, 13, 11}, DecayFactor(5))
	prevFast := WindowEMA([]float64{15, 12, 13}, DecayFactor(3))
	prevSlow := WindowEMA([]float64{15, 12, 13, 11, 10}, DecayFactor(5))
	line := fast - slow
	signal := WindowEMA([]float64{line, prevFast - prevSlow}, DecayFactor(2))

	r := m.Reading()
	assertClose(t, "line", r.Line.Float64, line, 1e-12)
	assertClose(t, "signal", r.Signal.Float64, signal, 1e-12)
	assertClose(t, "histogram", r.Histogram.Float64, line-signal, 1e-12)
}
