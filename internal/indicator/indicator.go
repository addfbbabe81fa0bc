// Package indicator computes the trailing-window technical indicators shared
// by the Silver and Gold stages.
//
// Every indicator keeps a fixed-size window of the most recent observations
// for one ticker and recomputes its value from that window alone, so the
// result for a given row depends only on the last N inputs and never on
// where a batch started. Values are null until the window is full.
package indicator

import "github.com/guregu/null/v5"

// Window sizes.
const (
	FastPeriod      = 12
	SlowPeriod      = 26
	SignalPeriod    = 9
	BollingerPeriod = 20
	BollingerK      = 2.0
	VolumePeriod    = 20
	RSIPeriod       = 14
	MAShortPeriod   = 20
	MALongPeriod    = 50
)

// SignalWarmup is the 1-based row on which macd_signal first appears.
const SignalWarmup = SlowPeriod + SignalPeriod - 1

// Indicator is a rolling computation fed one value per trading day.
type Indicator interface {
	// Name returns the column name, e.g. "ema_12".
	Name() string

	// Update feeds the next observation.
	Update(v float64)

	// Value returns the current value, or null if the window is not full.
	Value() null.Float

	// Ready returns true once the window is full.
	Ready() bool
}

func nullIf(ready bool, v float64) null.Float {
	if !ready {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
