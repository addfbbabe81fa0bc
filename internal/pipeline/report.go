package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"ohlcv-pipeline/internal/model"
)

// StageReport summarizes one stage run.
type StageReport struct {
	Stage     model.Stage
	Tickers   int
	RowsIn    int // rows read from the upstream layer
	Computed  int // rows produced by the indicator pass
	Inserted  int
	Updated   int
	Before    model.Watermark
	Watermark model.Watermark // committed watermark read back after the merge
	Elapsed   time.Duration
}

// RowsOut is the number of rows the merge wrote.
func (r StageReport) RowsOut() int { return r.Inserted + r.Updated }

func (r StageReport) String() string {
	return fmt.Sprintf("%s: %d tickers, %d rows in, %d inserted, %d updated, watermark %s → %s",
		r.Stage, r.Tickers, r.RowsIn, r.Inserted, r.Updated, r.Before, r.Watermark)
}

// LogAttrs returns the report as slog attributes.
func (r StageReport) LogAttrs() []any {
	return []any{
		slog.String("stage", string(r.Stage)),
		slog.Int("tickers", r.Tickers),
		slog.Int("rows_in", r.RowsIn),
		slog.Int("computed", r.Computed),
		slog.Int("rows_out", r.RowsOut()),
		slog.Int("inserted", r.Inserted),
		slog.Int("updated", r.Updated),
		slog.String("watermark_before", r.Before.String()),
		slog.String("watermark", r.Watermark.String()),
		slog.String("state", string(r.Watermark.State())),
		slog.Duration("elapsed", r.Elapsed),
	}
}
