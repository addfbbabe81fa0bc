package sqlite

import (
	"context"
	"fmt"
	"log"
	"time"

	"ohlcv-pipeline/internal/model"
)

const goldColumns = silverColumns + `, rsi_14, ma_20, ma_50, cumulative_return`

// GoldWatermark returns the latest committed trade date per ticker.
func (s *Store) GoldWatermark(ctx context.Context) (model.Watermark, error) {
	return s.watermark(ctx, model.StageGold, "gold_daily")
}

// InsertGold inserts rows whose (trade_date, ticker) is absent, atomically.
// Existing rows are never touched; the count of skipped rows is logged.
func (s *Store) InsertGold(ctx context.Context, rows []model.GoldRow) (model.MergeResult, error) {
	var res model.MergeResult
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("sqlite begin gold: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO gold_daily (`+goldColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return res, fmt.Errorf("sqlite prepare gold: %w", err)
	}
	defer stmt.Close()

	skipped := 0
	for _, g := range rows {
		d := &g.DailyBar
		r, err := stmt.ExecContext(ctx,
			formatDate(d.TradeDate), d.Ticker, d.Open, d.High, d.Low, d.Close, d.Volume, d.IngestedAt.UnixMilli(), d.DailyReturn,
			d.EMA12, d.EMA26, d.MACDLine, d.MACDSignal, d.MACDHistogram,
			d.BBMiddle, d.BBUpper, d.BBLower, d.BBWidth, d.VMA20, d.VolumeRatio,
			g.RSI14, g.MA20, g.MA50, g.CumulativeReturn,
		)
		if err != nil {
			tx.Rollback()
			return model.MergeResult{}, fmt.Errorf("sqlite insert gold %s: %w", d.Key(), err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			tx.Rollback()
			return model.MergeResult{}, fmt.Errorf("sqlite rows affected: %w", err)
		}
		if n == 0 {
			skipped++
			continue
		}
		res.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return model.MergeResult{}, fmt.Errorf("sqlite commit gold: %w", err)
	}
	if skipped > 0 {
		log.Printf("[sqlite] gold: %d rows already present, left unchanged", skipped)
	}
	return res, nil
}

// ReadGold returns rows with from <= trade_date <= to for tickers (all when
// empty), ordered by ticker then trade date. A zero bound is open.
func (s *Store) ReadGold(ctx context.Context, tickers []string, from, to time.Time) ([]model.GoldRow, error) {
	query := `SELECT ` + goldColumns + ` FROM gold_daily WHERE 1 = 1`
	var args []any
	if len(tickers) > 0 {
		query += ` AND ticker IN (` + placeholders(len(tickers)) + `)`
		for _, t := range tickers {
			args = append(args, t)
		}
	}
	if !from.IsZero() {
		query += ` AND trade_date >= ?`
		args = append(args, formatDate(from))
	}
	if !to.IsZero() {
		query += ` AND trade_date <= ?`
		args = append(args, formatDate(to))
	}
	query += ` ORDER BY ticker ASC, trade_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query gold: %w", err)
	}
	defer rows.Close()

	var out []model.GoldRow
	for rows.Next() {
		var g model.GoldRow
		d := &g.DailyBar
		var date string
		var ingested int64
		if err := rows.Scan(
			&date, &d.Ticker, &d.Open, &d.High, &d.Low, &d.Close, &d.Volume, &ingested, &d.DailyReturn,
			&d.EMA12, &d.EMA26, &d.MACDLine, &d.MACDSignal, &d.MACDHistogram,
			&d.BBMiddle, &d.BBUpper, &d.BBLower, &d.BBWidth, &d.VMA20, &d.VolumeRatio,
			&g.RSI14, &g.MA20, &g.MA50, &g.CumulativeReturn,
		); err != nil {
			return nil, fmt.Errorf("sqlite scan gold: %w", err)
		}
		if d.TradeDate, err = parseDate(date); err != nil {
			return nil, err
		}
		d.IngestedAt = unixMilli(ingested)
		out = append(out, g)
	}
	return out, rows.Err()
}

// ResetGold deletes every Gold row.
func (s *Store) ResetGold(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM gold_daily`); err != nil {
		return fmt.Errorf("sqlite reset gold: %w", err)
	}
	log.Printf("[sqlite] gold_daily truncated")
	return nil
}

// ResetAll deletes Silver and Gold rows in one transaction.
func (s *Store) ResetAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin reset: %w", err)
	}
	for _, table := range []string{"silver_daily", "gold_daily"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite reset %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit reset: %w", err)
	}
	log.Printf("[sqlite] silver_daily and gold_daily truncated")
	return nil
}
