// Package source fetches daily OHLCV bars from external market-data
// providers: Yahoo Finance for equities and CoinGecko for crypto.
package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"ohlcv-pipeline/internal/model"
)

// ErrTransient marks failures worth retrying: network errors, 5xx and 429.
var ErrTransient = errors.New("transient source error")

// StatusError is a non-2xx provider response.
type StatusError struct {
	Source string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Source, e.Status, e.Body)
}

// Is makes errors.Is(err, ErrTransient) true for 5xx and 429 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrTransient && (e.Status == 429 || e.Status >= 500)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// transient wraps err so IsTransient reports true.
func transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Router dispatches each symbol to the source for its asset class.
type Router struct {
	sources map[model.AssetClass]model.PriceSource
}

// NewRouter creates a router; a class without a source fails its fetches.
func NewRouter(sources map[model.AssetClass]model.PriceSource) *Router {
	return &Router{sources: sources}
}

func (r *Router) Name() string { return "router" }

// FetchBars implements model.PriceSource.
func (r *Router) FetchBars(ctx context.Context, sym model.Symbol, start time.Time) ([]model.RawBar, error) {
	src, ok := r.sources[sym.Class]
	if !ok {
		return nil, fmt.Errorf("no source for %s (%s)", sym.Ticker, sym.Class)
	}
	return src.FetchBars(ctx, sym, start)
}

// SourceFor returns the source serving class, if any.
func (r *Router) SourceFor(class model.AssetClass) (model.PriceSource, bool) {
	src, ok := r.sources[class]
	return src, ok
}

// keepFrom drops bars stamped before start.
func keepFrom(bars []model.RawBar, start time.Time) []model.RawBar {
	if start.IsZero() {
		return bars
	}
	out := bars[:0]
	for _, b := range bars {
		if !b.Timestamp.Before(start) {
			out = append(out, b)
		}
	}
	return out
}
