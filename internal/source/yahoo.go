package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"ohlcv-pipeline/internal/model"
)

// barIter is the part of *chart.Iter the Yahoo source reads.
type barIter interface {
	Next() bool
	Bar() *finance.ChartBar
	Err() error
}

// YahooConfig configures the Yahoo Finance source.
type YahooConfig struct {
	Timeout time.Duration
	Retry   RetryConfig
}

// Yahoo fetches daily equity bars from the Yahoo Finance chart API.
type Yahoo struct {
	retry RetryConfig
	fetch func(*chart.Params) barIter
	now   func() time.Time
}

// NewYahoo creates the equity source. The timeout applies to the shared
// finance-go HTTP client.
func NewYahoo(cfg YahooConfig) *Yahoo {
	if cfg.Timeout > 0 {
		finance.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	}
	return &Yahoo{
		retry: cfg.Retry,
		fetch: func(p *chart.Params) barIter { return chart.Get(p) },
		now:   time.Now,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// FetchBars returns daily bars for sym stamped at or after start.
func (y *Yahoo) FetchBars(ctx context.Context, sym model.Symbol, start time.Time) ([]model.RawBar, error) {
	end := y.now()
	ingestedAt := end.UTC()

	var bars []model.RawBar
	err := WithRetry(ctx, y.retry, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		params := &chart.Params{
			Symbol:   sym.ProviderID(),
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}
		iter := y.fetch(params)

		bars = bars[:0]
		for iter.Next() {
			b := iter.Bar()
			if b == nil {
				continue
			}
			raw := model.RawBar{
				Timestamp:  time.Unix(int64(b.Timestamp), 0).UTC(),
				Ticker:     sym.Ticker,
				Open:       b.Open.InexactFloat64(),
				High:       b.High.InexactFloat64(),
				Low:        b.Low.InexactFloat64(),
				Close:      b.Close.InexactFloat64(),
				Volume:     int64(b.Volume),
				IngestedAt: ingestedAt,
			}
			if !raw.Valid() {
				continue // Yahoo pads holidays and halts with empty rows
			}
			bars = append(bars, raw)
		}
		if err := iter.Err(); err != nil {
			return classifyYahoo(sym.Ticker, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", sym.Ticker, err)
	}
	return keepFrom(bars, start), nil
}

// classifyYahoo treats unknown-symbol responses as permanent and everything
// else from the chart endpoint as worth retrying.
func classifyYahoo(ticker string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "delisted") {
		return fmt.Errorf("symbol %s: %w", ticker, err)
	}
	return transient(err)
}
