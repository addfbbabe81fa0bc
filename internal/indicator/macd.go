package indicator

import (
	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/ringbuf"
)

// MACDReading is one MACD output row.
type MACDReading struct {
	Fast      null.Float // ema_12
	Slow      null.Float // ema_26
	Line      null.Float // fast - slow
	Signal    null.Float // window EMA of the last 9 lines
	Histogram null.Float // line - signal
}

// MACD composes two window EMAs of closes and a window EMA of their spread.
// The signal needs SignalPeriod consecutive MACD lines, so it first appears
// on row SlowPeriod+SignalPeriod-1.
type MACD struct {
	fast   *EMA
	slow   *EMA
	lines  *ringbuf.Window
	decay  float64
	period int
}

// NewMACD creates a fast/slow/signal MACD, typically 12/26/9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		lines:  ringbuf.New(signal),
		decay:  DecayFactor(signal),
		period: signal,
	}
}

func (m *MACD) Name() string { return "macd" }

// Update feeds the next close.
func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)
	if m.fast.Ready() && m.slow.Ready() {
		m.lines.Push(m.fast.Value().Float64 - m.slow.Value().Float64)
	}
}

func (m *MACD) Ready() bool { return m.lines.Full() }

// Value returns the MACD line.
func (m *MACD) Value() null.Float { return m.Reading().Line }

// Reading returns every MACD column for the latest close.
func (m *MACD) Reading() MACDReading {
	r := MACDReading{
		Fast: m.fast.Value(),
		Slow: m.slow.Value(),
	}
	if !r.Fast.Valid || !r.Slow.Valid {
		return r
	}
	line := r.Fast.Float64 - r.Slow.Float64
	r.Line = null.FloatFrom(line)
	if m.lines.Full() {
		sig := WindowEMA(m.lines.Newest(m.period), m.decay)
		r.Signal = null.FloatFrom(sig)
		r.Histogram = null.FloatFrom(line - sig)
	}
	return r
}

// Reset clears all windows.
func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.lines.Reset()
}
