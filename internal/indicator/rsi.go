package indicator

import (
	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/ringbuf"
)

// RSI calculates the Relative Strength Index from daily returns using a
// simple average of gains and losses over the trailing window (not Wilder's
// recursive smoothing): RSI = 100 - 100/(1 + avgGain/avgLoss).
type RSI struct {
	period int
	win    *ringbuf.Window
}

// NewRSI creates an RSI over the last period daily returns (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period, win: ringbuf.New(period)}
}

func (r *RSI) Name() string { return "rsi_" + itoa(r.period) }

// Update feeds the next daily return.
func (r *RSI) Update(ret float64) { r.win.Push(ret) }
func (r *RSI) Ready() bool        { return r.win.Full() }

func (r *RSI) Value() null.Float {
	if !r.Ready() {
		return null.Float{}
	}
	var gain, loss float64
	for _, v := range r.win.Newest(r.period) {
		if v > 0 {
			gain += v
		} else if v < 0 {
			loss -= v
		}
	}
	p := float64(r.period)
	return null.FloatFrom(rsiFromAverages(gain/p, loss/p))
}

// rsiFromAverages maps average gain/loss to 0..100. A window with no losses
// reads 100; a window with no movement at all reads 50.
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// Reset clears the window.
func (r *RSI) Reset() { r.win.Reset() }
