package model

import (
	"sort"
	"time"
)

// Stage names a pipeline layer.
type Stage string

const (
	StageBronze Stage = "bronze"
	StageSilver Stage = "silver"
	StageGold   Stage = "gold"
)

// WatermarkState is the incremental-processing state of a stage.
type WatermarkState string

const (
	StateEmpty     WatermarkState = "EMPTY"     // no committed rows; full-history mode
	StateAdvancing WatermarkState = "ADVANCING" // incremental mode
)

// Watermark is the highest committed trade date of a stage, tracked per
// ticker. Max() is the stage-level scalar.
type Watermark struct {
	Stage   Stage                `json:"stage"`
	Tickers map[string]time.Time `json:"tickers"`
}

// EmptyWatermark returns a watermark in the EMPTY state.
func EmptyWatermark(stage Stage) Watermark {
	return Watermark{Stage: stage, Tickers: map[string]time.Time{}}
}

// IsEmpty reports whether nothing has been committed for the stage.
func (w Watermark) IsEmpty() bool {
	return len(w.Tickers) == 0
}

// State returns EMPTY or ADVANCING.
func (w Watermark) State() WatermarkState {
	if w.IsEmpty() {
		return StateEmpty
	}
	return StateAdvancing
}

// For returns the committed date for ticker and whether one exists.
func (w Watermark) For(ticker string) (time.Time, bool) {
	d, ok := w.Tickers[ticker]
	return d, ok
}

// Max returns the maximum committed date across tickers (zero if EMPTY).
func (w Watermark) Max() time.Time {
	var max time.Time
	for _, d := range w.Tickers {
		if d.After(max) {
			max = d
		}
	}
	return max
}

// SortedTickers returns the tracked tickers in lexical order.
func (w Watermark) SortedTickers() []string {
	out := make([]string, 0, len(w.Tickers))
	for t := range w.Tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// String renders the scalar watermark, or "EMPTY".
func (w Watermark) String() string {
	if w.IsEmpty() {
		return string(StateEmpty)
	}
	return w.Max().Format(DateLayout)
}
