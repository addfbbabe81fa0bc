// Package sqlite implements the Bronze, Silver and Gold tables on a single
// SQLite database. Every multi-row write runs in one transaction, so a stage
// either commits all of its rows or none of them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ohlcv-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the store.
type Config struct {
	DBPath string // path to the SQLite file, e.g. "data/pipeline.db", or ":memory:"
}

// Store is a single-connection SQLite store. Writes serialize on the one
// connection, which is what keeps stage merges from interleaving.
type Store struct {
	db   *sql.DB
	path string
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (or creates) the database with WAL mode and ensures the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.DBPath != ":memory:" {
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite create dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; also keeps a :memory: database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db, path: cfg.DBPath}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bronze_raw (
			ts          INTEGER NOT NULL,
			ticker      TEXT    NOT NULL,
			trade_date  TEXT    NOT NULL,
			open        REAL    NOT NULL,
			high        REAL    NOT NULL,
			low         REAL    NOT NULL,
			close       REAL    NOT NULL,
			volume      INTEGER NOT NULL,
			ingested_at INTEGER NOT NULL,
			PRIMARY KEY (ts, ticker)
		);
		CREATE INDEX IF NOT EXISTS idx_bronze_ticker_date ON bronze_raw (ticker, trade_date);

		CREATE TABLE IF NOT EXISTS silver_daily (
			trade_date     TEXT    NOT NULL,
			ticker         TEXT    NOT NULL,
			open           REAL    NOT NULL,
			high           REAL    NOT NULL,
			low            REAL    NOT NULL,
			close          REAL    NOT NULL,
			total_volume   INTEGER NOT NULL,
			ingested_at    INTEGER NOT NULL,
			daily_return   REAL    NOT NULL,
			ema_12         REAL,
			ema_26         REAL,
			macd_line      REAL,
			macd_signal    REAL,
			macd_histogram REAL,
			bb_middle      REAL,
			bb_upper       REAL,
			bb_lower       REAL,
			bb_width       REAL,
			vma_20         REAL,
			volume_ratio   REAL,
			PRIMARY KEY (trade_date, ticker)
		);

		CREATE TABLE IF NOT EXISTS gold_daily (
			trade_date        TEXT    NOT NULL,
			ticker            TEXT    NOT NULL,
			open              REAL    NOT NULL,
			high              REAL    NOT NULL,
			low               REAL    NOT NULL,
			close             REAL    NOT NULL,
			total_volume      INTEGER NOT NULL,
			ingested_at       INTEGER NOT NULL,
			daily_return      REAL    NOT NULL,
			ema_12            REAL,
			ema_26            REAL,
			macd_line         REAL,
			macd_signal       REAL,
			macd_histogram    REAL,
			bb_middle         REAL,
			bb_upper          REAL,
			bb_lower          REAL,
			bb_width          REAL,
			vma_20            REAL,
			volume_ratio      REAL,
			rsi_14            REAL,
			ma_20             REAL,
			ma_50             REAL,
			cumulative_return REAL    NOT NULL,
			PRIMARY KEY (trade_date, ticker)
		);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── helpers ──

func formatDate(t time.Time) string {
	return model.DateOf(t).Format(model.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite parse trade_date %q: %w", s, err)
	}
	return t, nil
}

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// watermark reads MAX(trade_date) per ticker from table.
func (s *Store) watermark(ctx context.Context, stage model.Stage, table string) (model.Watermark, error) {
	wm := model.EmptyWatermark(stage)
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, MAX(trade_date) FROM `+table+` GROUP BY ticker`)
	if err != nil {
		return wm, fmt.Errorf("sqlite %s watermark: %w", stage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ticker string
		var date sql.NullString
		if err := rows.Scan(&ticker, &date); err != nil {
			return wm, fmt.Errorf("sqlite scan %s watermark: %w", stage, err)
		}
		if !date.Valid {
			continue
		}
		d, err := parseDate(date.String)
		if err != nil {
			return wm, err
		}
		wm.Tickers[ticker] = d
	}
	return wm, rows.Err()
}

func (s *Store) distinctTickers(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM `+table+` ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("sqlite %s tickers: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite scan %s ticker: %w", table, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Counts returns the row count of each stage table.
func (s *Store) Counts(ctx context.Context) (map[model.Stage]int64, error) {
	tables := map[model.Stage]string{
		model.StageBronze: "bronze_raw",
		model.StageSilver: "silver_daily",
		model.StageGold:   "gold_daily",
	}
	out := make(map[model.Stage]int64, len(tables))
	for stage, table := range tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite count %s: %w", table, err)
		}
		out[stage] = n
	}
	return out, nil
}
