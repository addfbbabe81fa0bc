package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/shopspring/decimal"

	"ohlcv-pipeline/internal/model"
)

type fakeIter struct {
	bars []*finance.ChartBar
	pos  int
	err  error
}

func (f *fakeIter) Next() bool {
	if f.pos >= len(f.bars) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeIter) Bar() *finance.ChartBar { return f.bars[f.pos-1] }
func (f *fakeIter) Err() error             { return f.err }

func chartBar(ts time.Time, o, h, l, c float64, v int) *finance.ChartBar {
	return &finance.ChartBar{
		Open:      decimal.NewFromFloat(o),
		High:      decimal.NewFromFloat(h),
		Low:       decimal.NewFromFloat(l),
		Close:     decimal.NewFromFloat(c),
		AdjClose:  decimal.NewFromFloat(c),
		Volume:    v,
		Timestamp: int(ts.Unix()),
	}
}

func newTestYahoo(fn func(*chart.Params) barIter) *Yahoo {
	return &Yahoo{
		retry: fastRetry(2),
		fetch: fn,
		now:   func() time.Time { return time.Date(2026, 3, 6, 22, 0, 0, 0, time.UTC) },
	}
}

func TestYahoo_ConvertsAndFilters(t *testing.T) {
	start := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)
	var gotSymbol string
	y := newTestYahoo(func(p *chart.Params) barIter {
		gotSymbol = p.Symbol
		return &fakeIter{bars: []*finance.ChartBar{
			chartBar(time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), 10, 11, 9, 10.5, 1000), // before start
			chartBar(start, 10.5, 12, 10, 11.25, 2000),
			chartBar(time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC), 0, 0, 0, 0, 0), // empty padding row
			chartBar(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC), 11, 13, 11, 12.75, 3000),
		}}
	})

	bars, err := y.FetchBars(context.Background(), model.Symbol{Ticker: "AAPL", Class: model.Equity}, start)
	if err != nil {
		t.Fatal(err)
	}
	if gotSymbol != "AAPL" {
		t.Errorf("requested symbol %q", gotSymbol)
	}
	if len(bars) != 2 {
		t.Fatalf("bars=%d, want 2", len(bars))
	}
	b := bars[0]
	if !b.Timestamp.Equal(start) || b.Ticker != "AAPL" || b.Close != 11.25 || b.High != 12 || b.Volume != 2000 {
		t.Errorf("converted bar: %+v", b)
	}
	if !b.IngestedAt.Equal(y.now()) {
		t.Errorf("ingested_at=%v", b.IngestedAt)
	}
}

func TestYahoo_RetriesTransient(t *testing.T) {
	calls := 0
	y := newTestYahoo(func(*chart.Params) barIter {
		calls++
		if calls == 1 {
			return &fakeIter{err: errors.New("connection reset by peer")}
		}
		return &fakeIter{bars: []*finance.ChartBar{
			chartBar(time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC), 1, 1, 1, 1, 1),
		}}
	})
	bars, err := y.FetchBars(context.Background(), model.Symbol{Ticker: "MSFT"}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 || len(bars) != 1 {
		t.Fatalf("calls=%d bars=%d", calls, len(bars))
	}
}

func TestYahoo_UnknownSymbolIsPermanent(t *testing.T) {
	calls := 0
	y := newTestYahoo(func(*chart.Params) barIter {
		calls++
		return &fakeIter{err: errors.New("No data found, symbol may be delisted")}
	})
	_, err := y.FetchBars(context.Background(), model.Symbol{Ticker: "NOPE"}, time.Time{})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 || IsTransient(err) {
		t.Fatalf("calls=%d transient=%v, want one permanent failure", calls, IsTransient(err))
	}
}

func TestYahoo_EmptyIsNotAnError(t *testing.T) {
	y := newTestYahoo(func(*chart.Params) barIter { return &fakeIter{} })
	bars, err := y.FetchBars(context.Background(), model.Symbol{Ticker: "AAPL"}, time.Time{})
	if err != nil || len(bars) != 0 {
		t.Fatalf("bars=%v err=%v", bars, err)
	}
}
