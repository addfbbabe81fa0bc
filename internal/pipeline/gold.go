package pipeline

import (
	"context"
	"fmt"
	"time"

	"ohlcv-pipeline/internal/indicator"
	"ohlcv-pipeline/internal/logger"
	"ohlcv-pipeline/internal/model"
)

// RunGold recomputes the full indicator set over each ticker's Silver
// history and inserts the rows dated strictly after wm(ticker). Gold is
// insert-only: a finalized (trade_date, ticker) row is never rewritten.
// All tickers insert in one transaction; on error nothing is written.
func (p *Pipeline) RunGold(ctx context.Context, wm model.Watermark) (StageReport, error) {
	started := time.Now()
	rep := StageReport{Stage: model.StageGold, Before: wm}

	tickers, err := p.store.SilverTickers(ctx)
	if err != nil {
		return p.fail(ctx, rep, fmt.Errorf("list silver tickers: %w", err))
	}

	var out []model.GoldRow
	for _, ticker := range tickers {
		history, err := p.store.ReadSilver(ctx, ticker, time.Time{}, time.Time{})
		if err != nil {
			return p.fail(ctx, rep, fmt.Errorf("read silver %s: %w", ticker, err))
		}
		rep.RowsIn += len(history)

		series := make([]model.DailyBar, len(history))
		for i := range history {
			series[i] = history[i].BasePrices()
		}
		rows, err := indicator.Compute(series)
		if err != nil {
			return p.fail(ctx, rep, fmt.Errorf("gold indicators %s: %w", ticker, err))
		}
		rep.Computed += len(rows)

		if last, ok := wm.For(ticker); ok {
			rows = after(rows, last)
		}
		if len(rows) > 0 {
			rep.Tickers++
		}
		out = append(out, rows...)
	}

	res, err := p.store.InsertGold(ctx, out)
	if err != nil {
		return p.fail(ctx, rep, fmt.Errorf("gold merge: %w", err))
	}
	rep.Inserted = res.Inserted
	rep.Watermark = p.commit(ctx, model.StageGold)
	rep.Elapsed = time.Since(started)

	p.metrics.ObserveMerge(string(rep.Stage), rep.RowsIn, rep.Inserted, 0, rep.Elapsed)
	logger.From(ctx).Info("gold stage committed", rep.LogAttrs()...)
	return rep, nil
}

// after keeps rows dated strictly after d.
func after(rows []model.GoldRow, d time.Time) []model.GoldRow {
	for i := range rows {
		if rows[i].TradeDate.After(d) {
			return rows[i:]
		}
	}
	return nil
}
