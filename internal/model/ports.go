package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// Pipeline stages depend on these rather than on a concrete store, so each
// stage can be exercised against any backend that offers an atomic merge.

// PriceSource fetches bars for one symbol from start (inclusive) to now.
// An empty result with a nil error means "no new data".
type PriceSource interface {
	Name() string
	FetchBars(ctx context.Context, sym Symbol, start time.Time) ([]RawBar, error)
}

// AppendResult reports the outcome of a dedup-then-append.
type AppendResult struct {
	Inserted   int
	Duplicates int
}

// BronzeStore is the append-only raw observation store.
type BronzeStore interface {
	// MaxTimestamp returns the latest bar timestamp for ticker; ok is false
	// when the ticker has no rows.
	MaxTimestamp(ctx context.Context, ticker string) (ts time.Time, ok bool, err error)

	// AppendRaw drops bars whose (timestamp, ticker) already exists and
	// appends the rest in one transaction.
	AppendRaw(ctx context.Context, bars []RawBar) (AppendResult, error)

	// RawTickers lists the distinct tickers present in Bronze.
	RawTickers(ctx context.Context) ([]string, error)

	// ReadRaw returns ticker's bars with trade date >= from (zero = all),
	// ordered by timestamp ascending.
	ReadRaw(ctx context.Context, ticker string, from time.Time) ([]RawBar, error)

	// BronzeWatermark returns the latest trade date per ticker.
	BronzeWatermark(ctx context.Context) (Watermark, error)
}

// MergeResult reports how many rows a merge inserted vs. updated.
type MergeResult struct {
	Inserted int
	Updated  int
}

// Total returns the number of rows the merge touched.
func (m MergeResult) Total() int { return m.Inserted + m.Updated }

// SilverStore holds one DailyBar per (trade date, ticker).
type SilverStore interface {
	SilverWatermark(ctx context.Context) (Watermark, error)
	SilverTickers(ctx context.Context) ([]string, error)

	// ReadSilver returns ticker's rows with from <= trade date < to, ordered
	// by trade date. A zero bound is open.
	ReadSilver(ctx context.Context, ticker string, from, to time.Time) ([]DailyBar, error)

	// UpsertSilver matches on (trade_date, ticker), updating or inserting,
	// atomically for the whole batch.
	UpsertSilver(ctx context.Context, rows []DailyBar) (MergeResult, error)

	// ResetSilver deletes every Silver row.
	ResetSilver(ctx context.Context) error
}

// GoldStore holds the append-only serving rows.
type GoldStore interface {
	GoldWatermark(ctx context.Context) (Watermark, error)

	// InsertGold inserts rows whose key is not present, atomically; it never
	// updates an existing row.
	InsertGold(ctx context.Context, rows []GoldRow) (MergeResult, error)

	// ReadGold returns rows with from <= trade date <= to for the tickers
	// (all tickers when empty), ordered by ticker then trade date.
	ReadGold(ctx context.Context, tickers []string, from, to time.Time) ([]GoldRow, error)

	// ResetGold deletes every Gold row.
	ResetGold(ctx context.Context) error
}

// WatermarkSink receives a stage watermark after each committed merge.
type WatermarkSink interface {
	PublishWatermark(ctx context.Context, wm Watermark) error
}
