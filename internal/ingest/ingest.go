// Package ingest runs the Bronze stage: fetch each symbol from its price
// source starting at the last stored timestamp and append the new bars.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ohlcv-pipeline/internal/calendar"
	"ohlcv-pipeline/internal/logger"
	"ohlcv-pipeline/internal/metrics"
	"ohlcv-pipeline/internal/model"
)

// Config holds ingestion settings.
type Config struct {
	LookbackMonths int // default window when a ticker has no rows
	Concurrency    int // max symbols fetched at once
}

// Ingestor fetches and appends raw bars.
type Ingestor struct {
	cfg     Config
	store   model.BronzeStore
	src     model.PriceSource
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Ingestor. m may be nil.
func New(cfg Config, store model.BronzeStore, src model.PriceSource, m *metrics.Metrics) *Ingestor {
	if cfg.LookbackMonths <= 0 {
		cfg.LookbackMonths = 6
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Ingestor{cfg: cfg, store: store, src: src, metrics: m, now: time.Now}
}

// SymbolResult is the outcome for one symbol.
type SymbolResult struct {
	Ticker     string
	Source     string
	Start      time.Time
	Fetched    int
	Inserted   int
	Duplicates int
	Err        error

	// Provisional is set for equities fetched while the regular session is
	// still open. Bars dated today's session are partial and are held back
	// until a run after the close; Held counts them.
	Provisional bool
	Held        int
}

// Report summarizes an ingestion run.
type Report struct {
	Symbols    []SymbolResult
	Fetched    int
	Inserted   int
	Duplicates int
	Held       int
	Failed     int
	Elapsed    time.Duration
}

// Failures returns the symbols that errored.
func (r Report) Failures() []SymbolResult {
	var out []SymbolResult
	for _, s := range r.Symbols {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// StartBoundary returns where fetching resumes for sym: the latest stored
// timestamp (inclusive) or now minus the lookback window when the ticker has
// no rows. Equity boundaries are expressed in US/Eastern.
func (i *Ingestor) StartBoundary(ctx context.Context, sym model.Symbol) (time.Time, error) {
	ts, ok, err := i.store.MaxTimestamp(ctx, sym.Ticker)
	if err != nil {
		return time.Time{}, fmt.Errorf("max timestamp %s: %w", sym.Ticker, err)
	}
	if !ok {
		return calendar.LookbackStart(i.now(), i.cfg.LookbackMonths, sym.Class), nil
	}
	return calendar.Boundary(ts, sym.Class), nil
}

// ValidateBoundary rejects a boundary that is unset or in the machine's
// local zone, whose meaning changes with the host.
func ValidateBoundary(start time.Time) error {
	if start.IsZero() || start.Location() == time.Local {
		return model.ErrNaiveBoundary
	}
	return nil
}

// Run ingests every symbol. A failure for one symbol is logged and recorded
// in the report; it never stops the others. The returned error is non-nil
// only for an empty symbol list or a cancelled context.
func (i *Ingestor) Run(ctx context.Context, syms []model.Symbol) (Report, error) {
	if len(syms) == 0 {
		return Report{}, model.ErrNoSymbols
	}
	log := logger.From(ctx).With(slog.String("stage", string(model.StageBronze)))
	started := time.Now()

	var mu sync.Mutex
	results := make([]SymbolResult, 0, len(syms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Concurrency)
	for _, sym := range syms {
		sym := sym
		g.Go(func() error {
			res := i.ingestOne(gctx, sym)
			if res.Err != nil {
				log.Warn("symbol skipped",
					slog.String("ticker", res.Ticker),
					slog.String("source", res.Source),
					slog.Any("error", res.Err))
			} else {
				log.Info("symbol ingested",
					slog.String("ticker", res.Ticker),
					slog.String("source", res.Source),
					slog.String("start", res.Start.Format(time.RFC3339)),
					slog.Int("fetched", res.Fetched),
					slog.Int("inserted", res.Inserted),
					slog.Int("duplicates", res.Duplicates),
					slog.Bool("provisional", res.Provisional))
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(a, b int) bool { return results[a].Ticker < results[b].Ticker })
	rep := Report{Symbols: results, Elapsed: time.Since(started)}
	for _, r := range results {
		rep.Fetched += r.Fetched
		rep.Inserted += r.Inserted
		rep.Duplicates += r.Duplicates
		rep.Held += r.Held
		if r.Err != nil {
			rep.Failed++
		}
	}
	i.metrics.ObserveMerge(string(model.StageBronze), rep.Fetched, rep.Inserted, 0, rep.Elapsed)
	i.metrics.ObserveDuplicates(rep.Duplicates)

	log.Info("bronze ingestion finished",
		slog.Int("symbols", len(syms)),
		slog.Int("rows_in", rep.Fetched),
		slog.Int("inserted", rep.Inserted),
		slog.Int("duplicates", rep.Duplicates),
		slog.Int("held", rep.Held),
		slog.Int("failed", rep.Failed),
		slog.Duration("elapsed", rep.Elapsed))

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, sym model.Symbol) SymbolResult {
	res := SymbolResult{Ticker: sym.Ticker, Source: string(sym.Class)}
	if src, ok := i.src.(interface {
		SourceFor(model.AssetClass) (model.PriceSource, bool)
	}); ok {
		if s, found := src.SourceFor(sym.Class); found {
			res.Source = s.Name()
		}
	}

	start, err := i.StartBoundary(ctx, sym)
	if err != nil {
		res.Err = err
		return res
	}
	if err := ValidateBoundary(start); err != nil {
		res.Err = fmt.Errorf("%s: %w", sym.Ticker, err)
		return res
	}
	res.Start = start
	now := i.now()
	res.Provisional = sym.Class == model.Equity && !calendar.IsSessionClosed(now)

	bars, err := i.src.FetchBars(ctx, sym, start)
	i.metrics.ObserveFetch(res.Source, len(bars), err)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fetched = len(bars)
	if len(bars) == 0 {
		return res
	}

	today := now.In(calendar.Eastern).Format("2006-01-02")
	valid := bars[:0]
	for _, b := range bars {
		if !b.Valid() {
			continue
		}
		if res.Provisional && b.Timestamp.In(calendar.Eastern).Format("2006-01-02") == today {
			res.Held++
			continue
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return res
	}

	ar, err := i.store.AppendRaw(ctx, valid)
	if err != nil {
		res.Err = fmt.Errorf("append %s: %w", sym.Ticker, err)
		return res
	}
	res.Inserted = ar.Inserted
	res.Duplicates = ar.Duplicates
	return res
}
