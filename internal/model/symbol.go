package model

import "strings"

// AssetClass selects the price source used for a symbol.
type AssetClass string

const (
	Equity AssetClass = "equity"
	Crypto AssetClass = "crypto"
)

// Symbol is a tracked instrument.
type Symbol struct {
	Ticker   string     `json:"ticker"`    // stored ticker, e.g. "AAPL", "BTC"
	Class    AssetClass `json:"class"`     // equity | crypto
	SourceID string     `json:"source_id"` // provider id, e.g. "bitcoin"; defaults to Ticker
}

// ProviderID returns the identifier the price source expects.
func (s Symbol) ProviderID() string {
	if s.SourceID != "" {
		return s.SourceID
	}
	return s.Ticker
}

// ParseSymbols parses "AAPL,AMZN" (equities) or "bitcoin:BTC,ethereum:ETH"
// (crypto, provider id before the colon) into symbols of the given class.
func ParseSymbols(list string, class AssetClass) []Symbol {
	var out []Symbol
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sym := Symbol{Class: class}
		if id, ticker, ok := strings.Cut(p, ":"); ok {
			sym.SourceID = strings.TrimSpace(id)
			sym.Ticker = strings.ToUpper(strings.TrimSpace(ticker))
		} else {
			sym.Ticker = strings.ToUpper(p)
		}
		if sym.Ticker == "" {
			continue
		}
		out = append(out, sym)
	}
	return out
}

// Tickers returns the tickers of syms in order.
func Tickers(syms []Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Ticker
	}
	return out
}
