package model

import (
	"time"

	"github.com/guregu/null/v5"
)

// DailyBar is one Silver row: a (trade date, ticker) bar with the
// trailing-window indicator columns. Indicator fields stay null until the
// ticker has enough history for their window.
type DailyBar struct {
	TradeDate  time.Time `json:"trade_date"` // midnight UTC
	Ticker     string    `json:"ticker"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"total_volume"`
	IngestedAt time.Time `json:"ingested_at"`

	// DailyReturn is (close - prev_close) / prev_close; 0 on a ticker's first row.
	DailyReturn float64 `json:"daily_return"`

	EMA12         null.Float `json:"ema_12"`
	EMA26         null.Float `json:"ema_26"`
	MACDLine      null.Float `json:"macd_line"`
	MACDSignal    null.Float `json:"macd_signal"`
	MACDHistogram null.Float `json:"macd_histogram"`

	BBMiddle null.Float `json:"bb_middle"`
	BBUpper  null.Float `json:"bb_upper"`
	BBLower  null.Float `json:"bb_lower"`
	BBWidth  null.Float `json:"bb_width"`

	VMA20       null.Float `json:"vma_20"`
	VolumeRatio null.Float `json:"volume_ratio"`
}

// Key returns "ticker@YYYY-MM-DD".
func (d *DailyBar) Key() string {
	return d.Ticker + "@" + d.TradeDate.Format(DateLayout)
}

// GoldRow is the serving row: a DailyBar plus the Gold-only indicators.
type GoldRow struct {
	DailyBar

	RSI14            null.Float `json:"rsi_14"`
	MA20             null.Float `json:"ma_20"`
	MA50             null.Float `json:"ma_50"`
	CumulativeReturn float64    `json:"cumulative_return"`
}

// BasePrices strips indicator columns, leaving the OHLCV part of a row.
func (d *DailyBar) BasePrices() DailyBar {
	return DailyBar{
		TradeDate:  d.TradeDate,
		Ticker:     d.Ticker,
		Open:       d.Open,
		High:       d.High,
		Low:        d.Low,
		Close:      d.Close,
		Volume:     d.Volume,
		IngestedAt: d.IngestedAt,
	}
}
