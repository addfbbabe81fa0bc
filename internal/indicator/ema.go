package indicator

import (
	"math"

	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/ringbuf"
)

// DecayFactor returns the per-step weight decay 1 - 2/(period+1) of a
// period-N EMA (11/13 for 12, 25/27 for 26, 0.8 for 9).
func DecayFactor(period int) float64 {
	return 1 - 2/float64(period+1)
}

// WindowEMA returns the decay-weighted mean of values given newest first:
// sum(v * decay^off) / sum(decay^off), offset 0 being the most recent value.
//
// This is a truncated EMA: history older than the window is forgotten
// entirely instead of decaying, which keeps the result a pure function of
// the window.
func WindowEMA(newestFirst []float64, decay float64) float64 {
	var num, den float64
	for off, v := range newestFirst {
		w := math.Pow(decay, float64(off))
		num += v * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// EMA is a fixed-window exponential moving average.
type EMA struct {
	period int
	decay  float64
	win    *ringbuf.Window
}

// NewEMA creates a window EMA over the last period values.
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		decay:  DecayFactor(period),
		win:    ringbuf.New(period),
	}
}

func (e *EMA) Name() string     { return "ema_" + itoa(e.period) }
func (e *EMA) Update(v float64) { e.win.Push(v) }
func (e *EMA) Ready() bool      { return e.win.Full() }

func (e *EMA) Value() null.Float {
	if !e.Ready() {
		return null.Float{}
	}
	return null.FloatFrom(WindowEMA(e.win.Newest(e.period), e.decay))
}

// Reset clears the window.
func (e *EMA) Reset() { e.win.Reset() }
