package sqlite

import (
	"context"
	"fmt"
	"log"
	"time"

	"ohlcv-pipeline/internal/model"
)

const silverColumns = `trade_date, ticker, open, high, low, close, total_volume, ingested_at, daily_return,
	ema_12, ema_26, macd_line, macd_signal, macd_histogram,
	bb_middle, bb_upper, bb_lower, bb_width, vma_20, volume_ratio`

// SilverWatermark returns the latest committed trade date per ticker.
func (s *Store) SilverWatermark(ctx context.Context) (model.Watermark, error) {
	return s.watermark(ctx, model.StageSilver, "silver_daily")
}

// SilverTickers lists the distinct Silver tickers.
func (s *Store) SilverTickers(ctx context.Context) ([]string, error) {
	return s.distinctTickers(ctx, "silver_daily")
}

// ReadSilver returns ticker's rows with from <= trade_date < to, ordered by
// trade date. A zero bound is open.
func (s *Store) ReadSilver(ctx context.Context, ticker string, from, to time.Time) ([]model.DailyBar, error) {
	query := `SELECT ` + silverColumns + ` FROM silver_daily WHERE ticker = ?`
	args := []any{ticker}
	if !from.IsZero() {
		query += ` AND trade_date >= ?`
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += ` AND trade_date < ?`
		args = append(args, formatDate(to))
	}
	query += ` ORDER BY trade_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query silver %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []model.DailyBar
	for rows.Next() {
		var d model.DailyBar
		var date string
		var ingested int64
		if err := rows.Scan(
			&date, &d.Ticker, &d.Open, &d.High, &d.Low, &d.Close, &d.Volume, &ingested, &d.DailyReturn,
			&d.EMA12, &d.EMA26, &d.MACDLine, &d.MACDSignal, &d.MACDHistogram,
			&d.BBMiddle, &d.BBUpper, &d.BBLower, &d.BBWidth, &d.VMA20, &d.VolumeRatio,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan silver: %w", err)
		}
		if d.TradeDate, err = parseDate(date); err != nil {
			return nil, err
		}
		d.IngestedAt = unixMilli(ingested)
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertSilver merges rows on (trade_date, ticker): matched rows are updated
// in place, the rest inserted. The whole batch commits or none of it does.
func (s *Store) UpsertSilver(ctx context.Context, rows []model.DailyBar) (model.MergeResult, error) {
	var res model.MergeResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite begin silver: %w", err)
	}

	exists, err := tx.PrepareContext(ctx, `SELECT COUNT(*) FROM silver_daily WHERE trade_date = ? AND ticker = ?`)
	if err != nil {
		tx.Rollback()
		return res, fmt.Errorf("sqlite prepare silver lookup: %w", err)
	}
	defer exists.Close()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO silver_daily (`+silverColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trade_date, ticker) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			total_volume = excluded.total_volume,
			ingested_at = excluded.ingested_at,
			daily_return = excluded.daily_return,
			ema_12 = excluded.ema_12,
			ema_26 = excluded.ema_26,
			macd_line = excluded.macd_line,
			macd_signal = excluded.macd_signal,
			macd_histogram = excluded.macd_histogram,
			bb_middle = excluded.bb_middle,
			bb_upper = excluded.bb_upper,
			bb_lower = excluded.bb_lower,
			bb_width = excluded.bb_width,
			vma_20 = excluded.vma_20,
			volume_ratio = excluded.volume_ratio
	`)
	if err != nil {
		tx.Rollback()
		return res, fmt.Errorf("sqlite prepare silver upsert: %w", err)
	}
	defer upsert.Close()

	for _, d := range rows {
		date := formatDate(d.TradeDate)

		var n int
		if err := exists.QueryRowContext(ctx, date, d.Ticker).Scan(&n); err != nil {
			tx.Rollback()
			return model.MergeResult{}, fmt.Errorf("sqlite silver lookup %s: %w", d.Key(), err)
		}

		if _, err := upsert.ExecContext(ctx,
			date, d.Ticker, d.Open, d.High, d.Low, d.Close, d.Volume, d.IngestedAt.UnixMilli(), d.DailyReturn,
			d.EMA12, d.EMA26, d.MACDLine, d.MACDSignal, d.MACDHistogram,
			d.BBMiddle, d.BBUpper, d.BBLower, d.BBWidth, d.VMA20, d.VolumeRatio,
		); err != nil {
			tx.Rollback()
			return model.MergeResult{}, fmt.Errorf("sqlite silver upsert %s: %w", d.Key(), err)
		}

		if n > 0 {
			res.Updated++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.MergeResult{}, fmt.Errorf("sqlite commit silver: %w", err)
	}
	return res, nil
}

// ResetSilver deletes every Silver row.
func (s *Store) ResetSilver(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM silver_daily`); err != nil {
		return fmt.Errorf("sqlite reset silver: %w", err)
	}
	log.Printf("[sqlite] silver_daily truncated")
	return nil
}
