package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ohlcv-pipeline/internal/model"
)

// MaxTimestamp returns the latest stored bar timestamp for ticker.
func (s *Store) MaxTimestamp(ctx context.Context, ticker string) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM bronze_raw WHERE ticker = ?`, ticker,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite max ts %s: %w", ticker, err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// AppendRaw deduplicates bars on (timestamp, ticker), first within the batch
// and then against stored rows, and appends the new ones in one transaction.
func (s *Store) AppendRaw(ctx context.Context, bars []model.RawBar) (model.AppendResult, error) {
	var res model.AppendResult
	if len(bars) == 0 {
		return res, nil
	}

	seen := make(map[model.BarKey]struct{}, len(bars))
	unique := make([]model.RawBar, 0, len(bars))
	for _, b := range bars {
		k := b.Key()
		if _, dup := seen[k]; dup {
			res.Duplicates++
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.AppendResult{}, fmt.Errorf("sqlite begin bronze: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO bronze_raw (ts, ticker, trade_date, open, high, low, close, volume, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return model.AppendResult{}, fmt.Errorf("sqlite prepare bronze: %w", err)
	}
	defer stmt.Close()

	for _, b := range unique {
		r, err := stmt.ExecContext(ctx,
			b.Timestamp.Unix(), b.Ticker, formatDate(b.Timestamp),
			b.Open, b.High, b.Low, b.Close, b.Volume, b.IngestedAt.UnixMilli(),
		)
		if err != nil {
			tx.Rollback()
			return model.AppendResult{}, fmt.Errorf("sqlite insert bronze %s: %w", b.Ticker, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			tx.Rollback()
			return model.AppendResult{}, fmt.Errorf("sqlite rows affected: %w", err)
		}
		if n == 0 {
			res.Duplicates++
		} else {
			res.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return model.AppendResult{}, fmt.Errorf("sqlite commit bronze: %w", err)
	}
	return res, nil
}

// RawTickers lists the distinct Bronze tickers.
func (s *Store) RawTickers(ctx context.Context) ([]string, error) {
	return s.distinctTickers(ctx, "bronze_raw")
}

// ReadRaw returns ticker's bars with trade date >= from (zero = all), ordered
// by timestamp.
func (s *Store) ReadRaw(ctx context.Context, ticker string, from time.Time) ([]model.RawBar, error) {
	query := `
		SELECT ts, ticker, open, high, low, close, volume, ingested_at
		FROM bronze_raw
		WHERE ticker = ?`
	args := []any{ticker}
	if !from.IsZero() {
		query += ` AND trade_date >= ?`
		args = append(args, formatDate(from))
	}
	query += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bronze %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []model.RawBar
	for rows.Next() {
		var b model.RawBar
		var ts, ingested int64
		if err := rows.Scan(&ts, &b.Ticker, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &ingested); err != nil {
			return nil, fmt.Errorf("sqlite scan bronze: %w", err)
		}
		b.Timestamp = time.Unix(ts, 0).UTC()
		b.IngestedAt = unixMilli(ingested)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// BronzeWatermark returns the latest trade date per ticker in Bronze.
func (s *Store) BronzeWatermark(ctx context.Context) (model.Watermark, error) {
	return s.watermark(ctx, model.StageBronze, "bronze_raw")
}
