// Package quotes fetches market prices and daily candles from external
// providers. Providers are capability-equivalent behind the Source
// interface and are tried in configured order; only when every provider is
// exhausted does the caller see a terminal ErrNoData.
package quotes

import (
	"context"
	"errors"
	"log"

	"github.com/rustyeddy/tradecoach/market"
)

var (
	// ErrNoData means every configured provider failed; it is terminal and
	// maps to a not-found response at the transport.
	ErrNoData = errors.New("no market data available")

	// ErrRateLimited marks a provider refusal that the next provider in the
	// chain may still satisfy.
	ErrRateLimited = errors.New("provider rate limited")
)

// Source supplies fill prices and candle history for a symbol.
type Source interface {
	// Name identifies the provider in logs.
	Name() string
	// Quote returns the latest price for symbol.
	Quote(ctx context.Context, symbol string) (market.Quote, error)
	// Candles returns up to days of most-recent daily candles, oldest first.
	Candles(ctx context.Context, symbol string, days int) ([]market.Candle, error)
}

// Chain tries each source in order. A failing source is logged and skipped,
// never fatal, so a flaky primary degrades to the fallback transparently.
type Chain struct {
	sources []Source
}

func NewChain(sources ...Source) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	for _, s := range c.sources {
		q, err := s.Quote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		log.Printf("quotes: %s quote %s: %v", s.Name(), symbol, err)
	}
	return market.Quote{}, ErrNoData
}

func (c *Chain) Candles(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	for _, s := range c.sources {
		cs, err := s.Candles(ctx, symbol, days)
		if err == nil && len(cs) > 0 {
			return cs, nil
		}
		if err == nil {
			err = ErrNoData
		}
		log.Printf("quotes: %s candles %s: %v", s.Name(), symbol, err)
	}
	return nil, ErrNoData
}
