package source

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"ohlcv-pipeline/internal/model"
)

// CoinGecko's free tier serves at most a year of daily points.
const (
	minChartDays = 1
	maxChartDays = 365
)

// CoinGeckoConfig configures the crypto source.
type CoinGeckoConfig struct {
	BaseURL      string // e.g. "https://api.coingecko.com/api/v3"
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration

	// OnRetry is called for every retried request (optional, for metrics).
	OnRetry func()
}

// CoinGecko fetches daily crypto closes from the market_chart endpoint.
// The endpoint has no intraday OHLC, so open, high and low equal the close.
type CoinGecko struct {
	client *resty.Client
	now    func() time.Time
}

// marketChart is the market_chart response: [unix_ms, value] pairs.
type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// NewCoinGecko creates the crypto source. 5xx, 429 and transport errors
// are retried with exponential backoff between RetryWait and RetryMaxWait.
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return IsTransient(err)
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if cfg.OnRetry != nil {
		client.AddRetryHook(func(*resty.Response, error) { cfg.OnRetry() })
	}
	return &CoinGecko{client: client, now: time.Now}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// ChartDays returns the days parameter covering start..now, clamped to
// what the endpoint serves.
func ChartDays(start, now time.Time) int {
	days := int(now.Sub(start).Hours()/24) + 1
	if days < minChartDays {
		return minChartDays
	}
	if days > maxChartDays {
		return maxChartDays
	}
	return days
}

// FetchBars returns daily bars for sym stamped at or after start.
func (c *CoinGecko) FetchBars(ctx context.Context, sym model.Symbol, start time.Time) ([]model.RawBar, error) {
	now := c.now()
	var chart marketChart

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", sym.ProviderID()).
		SetQueryParams(map[string]string{
			"vs_currency": "usd",
			"days":        strconv.Itoa(ChartDays(start, now)),
			"interval":    "daily",
		}).
		SetResult(&chart).
		Get("/coins/{id}/market_chart")
	if err != nil {
		if IsTransient(err) {
			return nil, fmt.Errorf("coingecko %s: %w", sym.Ticker, transient(err))
		}
		return nil, fmt.Errorf("coingecko %s: %w", sym.Ticker, err)
	}
	if resp.IsError() {
		return nil, &StatusError{Source: "coingecko " + sym.Ticker, Status: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}

	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, v := range chart.TotalVolumes {
		volumes[int64(v[0])] = v[1]
	}

	ingestedAt := now.UTC()
	bars := make([]model.RawBar, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		ms := int64(p[0])
		price := p[1]
		bars = append(bars, model.RawBar{
			Timestamp:  time.UnixMilli(ms).UTC(),
			Ticker:     sym.Ticker,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     int64(math.Round(volumes[ms])),
			IngestedAt: ingestedAt,
		})
	}
	return keepFrom(bars, start), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
