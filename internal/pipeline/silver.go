package pipeline

import (
	"context"
	"fmt"
	"time"

	"ohlcv-pipeline/internal/aggregate"
	"ohlcv-pipeline/internal/indicator"
	"ohlcv-pipeline/internal/logger"
	"ohlcv-pipeline/internal/model"
)

// RunSilver derives daily bars and the shared indicator columns from Bronze
// and upserts them into Silver.
//
// For each ticker the stage re-derives days from (wm(ticker) − 1 day)
// onward, prepends the Silver rows before that point so every window sees
// its full trailing history, and upserts rows dated on or after wm(ticker).
// The boundary day is rewritten so a close that arrived late replaces the
// partial one. A ticker absent from wm is processed from its first bar.
// All tickers merge in one transaction; on error nothing is written.
func (p *Pipeline) RunSilver(ctx context.Context, wm model.Watermark) (StageReport, error) {
	started := time.Now()
	rep := StageReport{Stage: model.StageSilver, Before: wm}

	tickers, err := p.store.RawTickers(ctx)
	if err != nil {
		return p.fail(ctx, rep, fmt.Errorf("list bronze tickers: %w", err))
	}

	var out []model.DailyBar
	for _, ticker := range tickers {
		rows, in, err := p.silverTicker(ctx, ticker, wm)
		if err != nil {
			return p.fail(ctx, rep, err)
		}
		rep.RowsIn += in
		rep.Computed += len(rows)
		if len(rows) > 0 {
			rep.Tickers++
		}
		out = append(out, rows...)
	}

	res, err := p.store.UpsertSilver(ctx, out)
	if err != nil {
		return p.fail(ctx, rep, fmt.Errorf("silver merge: %w", err))
	}
	rep.Inserted = res.Inserted
	rep.Updated = res.Updated
	rep.Watermark = p.commit(ctx, model.StageSilver)
	rep.Elapsed = time.Since(started)

	p.metrics.ObserveMerge(string(rep.Stage), rep.RowsIn, rep.Inserted, rep.Updated, rep.Elapsed)
	logger.From(ctx).Info("silver stage committed", rep.LogAttrs()...)
	return rep, nil
}

// silverTicker returns the rows to upsert for one ticker and the number of
// raw bars read.
func (p *Pipeline) silverTicker(ctx context.Context, ticker string, wm model.Watermark) ([]model.DailyBar, int, error) {
	boundary, incremental := wm.For(ticker)
	var from time.Time
	if incremental {
		from = boundary.AddDate(0, 0, -1)
	}

	raw, err := p.store.ReadRaw(ctx, ticker, from)
	if err != nil {
		return nil, 0, fmt.Errorf("read bronze %s: %w", ticker, err)
	}
	days := aggregate.Daily(raw)
	if len(days) == 0 {
		return nil, len(raw), nil
	}

	var series []model.DailyBar
	if incremental {
		history, err := p.store.ReadSilver(ctx, ticker, time.Time{}, days[0].TradeDate)
		if err != nil {
			return nil, len(raw), fmt.Errorf("read silver history %s: %w", ticker, err)
		}
		series = make([]model.DailyBar, 0, len(history)+len(days))
		for i := range history {
			series = append(series, history[i].BasePrices())
		}
	}
	series = append(series, days...)

	computed, err := indicator.Compute(series)
	if err != nil {
		return nil, len(raw), fmt.Errorf("silver indicators %s: %w", ticker, err)
	}

	rows := indicator.SilverColumns(computed)
	if incremental {
		rows = since(rows, boundary)
	}
	return rows, len(raw), nil
}

// since keeps rows dated on or after d.
func since(rows []model.DailyBar, d time.Time) []model.DailyBar {
	for i := range rows {
		if !rows[i].TradeDate.Before(d) {
			return rows[i:]
		}
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, rep StageReport, err error) (StageReport, error) {
	p.metrics.ObserveFailure(string(rep.Stage))
	logger.From(ctx).Error("stage aborted, nothing committed",
		"stage", string(rep.Stage), "error", err)
	rep.Watermark = rep.Before
	return rep, err
}
