package model

import (
	"errors"
	"time"
)

// ErrNoSymbols is returned when an ingestion run is started without symbols.
var ErrNoSymbols = errors.New("no symbols configured")

// ErrNaiveBoundary is returned for a start boundary without a time zone.
var ErrNaiveBoundary = errors.New("start boundary must be timezone-aware")

// RawBar is one Bronze row: a single OHLCV observation for a ticker.
// Rows are immutable once appended; (Timestamp, Ticker) is unique.
type RawBar struct {
	Timestamp  time.Time `json:"timestamp"` // UTC
	Ticker     string    `json:"ticker"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	IngestedAt time.Time `json:"ingested_at"`
}

// BarKey is the Bronze uniqueness key.
type BarKey struct {
	Timestamp int64 // unix seconds
	Ticker    string
}

// Key returns the (timestamp, ticker) uniqueness key.
func (b *RawBar) Key() BarKey {
	return BarKey{Timestamp: b.Timestamp.Unix(), Ticker: b.Ticker}
}

// TradeDate returns the UTC calendar date the bar belongs to.
func (b *RawBar) TradeDate() time.Time {
	return DateOf(b.Timestamp)
}

// Valid reports whether the bar carries a usable price and volume.
func (b *RawBar) Valid() bool {
	if b.Ticker == "" || b.Timestamp.IsZero() {
		return false
	}
	if b.Close <= 0 || b.Volume < 0 {
		return false
	}
	return b.High >= b.Low
}

// DateOf truncates t to midnight UTC of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateLayout is the storage layout for trade dates.
const DateLayout = "2006-01-02"

// ParseDate parses a DateLayout string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
