package indicator

import (
	"fmt"
	"time"

	"ohlcv-pipeline/internal/model"
)

// Calculator holds the live indicator windows for one ticker.
type Calculator struct {
	ticker    string
	lastDate  time.Time
	prevClose float64
	seen      int
	cumReturn float64

	macd   *MACD
	bb     *Bollinger
	volume *VolumeRatio
	rsi    *RSI
	ma20   *SMA
	ma50   *SMA
}

// NewCalculator creates an empty calculator for ticker.
func NewCalculator(ticker string) *Calculator {
	return &Calculator{
		ticker: ticker,
		macd:   NewMACD(FastPeriod, SlowPeriod, SignalPeriod),
		bb:     NewBollinger(BollingerPeriod, BollingerK),
		volume: NewVolumeRatio(VolumePeriod),
		rsi:    NewRSI(RSIPeriod),
		ma20:   NewSMA("ma", MAShortPeriod),
		ma50:   NewSMA("ma", MALongPeriod),
	}
}

// Seen returns how many rows the calculator has consumed.
func (c *Calculator) Seen() int { return c.seen }

// Next consumes the ticker's next daily bar and returns it with daily_return,
// cumulative_return and every indicator column filled. Bars must arrive in
// strictly ascending trade-date order.
func (c *Calculator) Next(bar model.DailyBar) (model.GoldRow, error) {
	if bar.Ticker != c.ticker {
		return model.GoldRow{}, fmt.Errorf("indicator: bar for %s fed to %s calculator", bar.Ticker, c.ticker)
	}
	if c.seen > 0 && !bar.TradeDate.After(c.lastDate) {
		return model.GoldRow{}, fmt.Errorf("indicator: %s out of order: %s after %s",
			c.ticker, bar.TradeDate.Format(model.DateLayout), c.lastDate.Format(model.DateLayout))
	}

	row := model.GoldRow{DailyBar: bar.BasePrices()}

	if c.seen > 0 && c.prevClose != 0 {
		row.DailyReturn = (bar.Close - c.prevClose) / c.prevClose
	}
	c.cumReturn += row.DailyReturn
	row.CumulativeReturn = c.cumReturn

	c.macd.Update(bar.Close)
	c.bb.Update(bar.Close)
	c.volume.Update(float64(bar.Volume))
	c.rsi.Update(row.DailyReturn)
	c.ma20.Update(bar.Close)
	c.ma50.Update(bar.Close)

	m := c.macd.Reading()
	row.EMA12 = m.Fast
	row.EMA26 = m.Slow
	row.MACDLine = m.Line
	row.MACDSignal = m.Signal
	row.MACDHistogram = m.Histogram

	b := c.bb.Bands()
	row.BBMiddle = b.Middle
	row.BBUpper = b.Upper
	row.BBLower = b.Lower
	row.BBWidth = b.Width

	row.VMA20 = c.volume.Average()
	row.VolumeRatio = c.volume.Value()

	row.RSI14 = c.rsi.Value()
	row.MA20 = c.ma20.Value()
	row.MA50 = c.ma50.Value()

	c.prevClose = bar.Close
	c.lastDate = bar.TradeDate
	c.seen++
	return row, nil
}

// Engine computes indicators for many tickers at once, one Calculator per
// ticker, so no window is ever shared across tickers.
// Not safe for concurrent use.
type Engine struct {
	state map[string]*Calculator
}

// NewEngine creates an engine with no ticker state.
func NewEngine() *Engine {
	return &Engine{state: make(map[string]*Calculator, 16)}
}

// Process routes bar to its ticker's calculator, creating it on first use.
func (e *Engine) Process(bar model.DailyBar) (model.GoldRow, error) {
	calc, ok := e.state[bar.Ticker]
	if !ok {
		calc = NewCalculator(bar.Ticker)
		e.state[bar.Ticker] = calc
	}
	return calc.Next(bar)
}

// ProcessSeries feeds bars in order and returns one row per bar. Bars of
// different tickers may be interleaved; each ticker's bars must ascend.
func (e *Engine) ProcessSeries(bars []model.DailyBar) ([]model.GoldRow, error) {
	out := make([]model.GoldRow, 0, len(bars))
	for _, b := range bars {
		row, err := e.Process(b)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Reset drops all state for ticker.
func (e *Engine) Reset(ticker string) {
	delete(e.state, ticker)
}

// Tickers returns how many tickers have state.
func (e *Engine) Tickers() int { return len(e.state) }

// Compute runs a fresh engine over bars; a convenience for one-shot use.
func Compute(bars []model.DailyBar) ([]model.GoldRow, error) {
	return NewEngine().ProcessSeries(bars)
}

// SilverColumns projects computed rows onto the Silver schema.
func SilverColumns(rows []model.GoldRow) []model.DailyBar {
	out := make([]model.DailyBar, len(rows))
	for i := range rows {
		out[i] = rows[i].DailyBar
	}
	return out
}
