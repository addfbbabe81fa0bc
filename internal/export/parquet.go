// Package export writes Gold snapshots to parquet files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/guregu/null/v5"
	"github.com/parquet-go/parquet-go"

	"ohlcv-pipeline/internal/model"
)

// GoldRecord is the parquet layout of a Gold row. Indicator columns that
// are null in the store are written as absent optional values.
type GoldRecord struct {
	TradeDate   string  `parquet:"trade_date"`
	Ticker      string  `parquet:"ticker"`
	Open        float64 `parquet:"open"`
	High        float64 `parquet:"high"`
	Low         float64 `parquet:"low"`
	Close       float64 `parquet:"close"`
	Volume      int64   `parquet:"total_volume"`
	IngestedAt  int64   `parquet:"ingested_at"` // unix milliseconds
	DailyReturn float64 `parquet:"daily_return"`

	EMA12         *float64 `parquet:"ema_12,optional"`
	EMA26         *float64 `parquet:"ema_26,optional"`
	MACDLine      *float64 `parquet:"macd_line,optional"`
	MACDSignal    *float64 `parquet:"macd_signal,optional"`
	MACDHistogram *float64 `parquet:"macd_histogram,optional"`
	BBMiddle      *float64 `parquet:"bb_middle,optional"`
	BBUpper       *float64 `parquet:"bb_upper,optional"`
	BBLower       *float64 `parquet:"bb_lower,optional"`
	BBWidth       *float64 `parquet:"bb_width,optional"`
	VMA20         *float64 `parquet:"vma_20,optional"`
	VolumeRatio   *float64 `parquet:"volume_ratio,optional"`
	RSI14         *float64 `parquet:"rsi_14,optional"`
	MA20          *float64 `parquet:"ma_20,optional"`
	MA50          *float64 `parquet:"ma_50,optional"`

	CumulativeReturn float64 `parquet:"cumulative_return"`
}

// Record converts a Gold row to its parquet layout.
func Record(g model.GoldRow) GoldRecord {
	return GoldRecord{
		TradeDate:        g.TradeDate.Format(model.DateLayout),
		Ticker:           g.Ticker,
		Open:             g.Open,
		High:             g.High,
		Low:              g.Low,
		Close:            g.Close,
		Volume:           g.Volume,
		IngestedAt:       g.IngestedAt.UnixMilli(),
		DailyReturn:      g.DailyReturn,
		EMA12:            g.EMA12.Ptr(),
		EMA26:            g.EMA26.Ptr(),
		MACDLine:         g.MACDLine.Ptr(),
		MACDSignal:       g.MACDSignal.Ptr(),
		MACDHistogram:    g.MACDHistogram.Ptr(),
		BBMiddle:         g.BBMiddle.Ptr(),
		BBUpper:          g.BBUpper.Ptr(),
		BBLower:          g.BBLower.Ptr(),
		BBWidth:          g.BBWidth.Ptr(),
		VMA20:            g.VMA20.Ptr(),
		VolumeRatio:      g.VolumeRatio.Ptr(),
		RSI14:            g.RSI14.Ptr(),
		MA20:             g.MA20.Ptr(),
		MA50:             g.MA50.Ptr(),
		CumulativeReturn: g.CumulativeReturn,
	}
}

// Row converts a parquet record back to a Gold row.
func (r GoldRecord) Row() (model.GoldRow, error) {
	date, err := model.ParseDate(r.TradeDate)
	if err != nil {
		return model.GoldRow{}, fmt.Errorf("parquet trade_date %q: %w", r.TradeDate, err)
	}
	var g model.GoldRow
	g.TradeDate = date
	g.Ticker = r.Ticker
	g.Open, g.High, g.Low, g.Close = r.Open, r.High, r.Low, r.Close
	g.Volume = r.Volume
	g.IngestedAt = time.UnixMilli(r.IngestedAt).UTC()
	g.DailyReturn = r.DailyReturn
	g.EMA12 = null.FloatFromPtr(r.EMA12)
	g.EMA26 = null.FloatFromPtr(r.EMA26)
	g.MACDLine = null.FloatFromPtr(r.MACDLine)
	g.MACDSignal = null.FloatFromPtr(r.MACDSignal)
	g.MACDHistogram = null.FloatFromPtr(r.MACDHistogram)
	g.BBMiddle = null.FloatFromPtr(r.BBMiddle)
	g.BBUpper = null.FloatFromPtr(r.BBUpper)
	g.BBLower = null.FloatFromPtr(r.BBLower)
	g.BBWidth = null.FloatFromPtr(r.BBWidth)
	g.VMA20 = null.FloatFromPtr(r.VMA20)
	g.VolumeRatio = null.FloatFromPtr(r.VolumeRatio)
	g.RSI14 = null.FloatFromPtr(r.RSI14)
	g.MA20 = null.FloatFromPtr(r.MA20)
	g.MA50 = null.FloatFromPtr(r.MA50)
	g.CumulativeReturn = r.CumulativeReturn
	return g, nil
}

// WriteGoldParquet writes rows to path, creating parent directories.
func WriteGoldParquet(path string, rows []model.GoldRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	records := make([]GoldRecord, len(rows))
	for i, g := range rows {
		records[i] = Record(g)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadGoldParquet loads a snapshot written by WriteGoldParquet.
func ReadGoldParquet(path string) ([]model.GoldRow, error) {
	records, err := parquet.ReadFile[GoldRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	out := make([]model.GoldRow, len(records))
	for i, r := range records {
		if out[i], err = r.Row(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
