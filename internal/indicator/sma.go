package indicator

import (
	"math"

	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/ringbuf"
)

// Mean returns the arithmetic mean of vals (0 for an empty slice).
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// SampleStdDev returns the n-1 standard deviation of vals (0 when len < 2).
func SampleStdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := Mean(vals)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}

// SMA calculates a simple moving average over a trailing window.
// The sum is recomputed from the window on every read rather than kept as a
// running total, so values do not depend on how much history preceded them.
type SMA struct {
	name   string
	period int
	win    *ringbuf.Window
}

// NewSMA creates an SMA named "<prefix>_<period>", e.g. NewSMA("ma", 50).
func NewSMA(prefix string, period int) *SMA {
	return &SMA{
		name:   prefix + "_" + itoa(period),
		period: period,
		win:    ringbuf.New(period),
	}
}

func (s *SMA) Name() string     { return s.name }
func (s *SMA) Update(v float64) { s.win.Push(v) }
func (s *SMA) Ready() bool      { return s.win.Full() }

func (s *SMA) Value() null.Float {
	if !s.Ready() {
		return null.Float{}
	}
	return null.FloatFrom(Mean(s.win.Newest(s.period)))
}

// Reset clears the window.
func (s *SMA) Reset() { s.win.Reset() }
