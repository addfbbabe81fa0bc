// Package aggregate collapses raw Bronze bars into one bar per trading day.
package aggregate

import (
	"sort"
	"time"

	"ohlcv-pipeline/internal/model"
)

// dayState holds the in-progress daily bar for one (date, ticker) bucket.
type dayState struct {
	first time.Time // timestamp of the bar that set Open
	last  time.Time // timestamp of the bar that set Close
	bar   model.DailyBar
}

// Daily groups bars by (UTC calendar date, ticker) and returns one DailyBar per
// group: open of the earliest bar, close of the latest, max high, min low and
// summed volume. IngestedAt is the latest ingestion time in the group.
// Output is ordered by ticker, then trade date. Indicator columns are left
// null; daily_return is left at 0.
func Daily(bars []model.RawBar) []model.DailyBar {
	states := make(map[string]*dayState, len(bars))

	for i := range bars {
		b := &bars[i]
		date := b.TradeDate()
		key := b.Ticker + "@" + date.Format(model.DateLayout)

		s, ok := states[key]
		if !ok {
			states[key] = &dayState{
				first: b.Timestamp,
				last:  b.Timestamp,
				bar: model.DailyBar{
					TradeDate:  date,
					Ticker:     b.Ticker,
					Open:       b.Open,
					High:       b.High,
					Low:        b.Low,
					Close:      b.Close,
					Volume:     b.Volume,
					IngestedAt: b.IngestedAt,
				},
			}
			continue
		}

		d := &s.bar
		if b.Timestamp.Before(s.first) {
			s.first = b.Timestamp
			d.Open = b.Open
		}
		if !b.Timestamp.Before(s.last) {
			s.last = b.Timestamp
			d.Close = b.Close
		}
		if b.High > d.High {
			d.High = b.High
		}
		if b.Low < d.Low {
			d.Low = b.Low
		}
		d.Volume += b.Volume
		if b.IngestedAt.After(d.IngestedAt) {
			d.IngestedAt = b.IngestedAt
		}
	}

	out := make([]model.DailyBar, 0, len(states))
	for _, s := range states {
		out = append(out, s.bar)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].TradeDate.Before(out[j].TradeDate)
	})
	return out
}
