package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradecoach/market"
)

// Yahoo Finance v8 chart provider (cached).

var ErrYahooNoResult = errors.New("yahoo: no result")

type Yahoo struct {
	baseURL string
	cli     *http.Client
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

type cachedQuote struct {
	quote   market.Quote
	fetched time.Time
}

func NewYahoo(ttl time.Duration) *Yahoo {
	return &Yahoo{
		baseURL: "https://query2.finance.yahoo.com",
		cli:     &http.Client{Timeout: 8 * time.Second},
		ttl:     ttl,
		cache:   make(map[string]cachedQuote),
	}
}

func (p *Yahoo) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

func (p *Yahoo) fetch(ctx context.Context, symbol, interval, rng string) (yahooChart, error) {
	var raw yahooChart

	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s", p.baseURL, symbol, interval, rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return raw, err
	}
	req.Header.Set("User-Agent", "tradecoach/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return raw, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return raw, fmt.Errorf("yahoo http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return raw, err
	}
	if len(raw.Chart.Result) == 0 {
		return raw, ErrYahooNoResult
	}
	return raw, nil
}

func (p *Yahoo) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Quote{}, ErrNoData
	}

	p.mu.RLock()
	if c, ok := p.cache[symbol]; ok && time.Since(c.fetched) < p.ttl {
		p.mu.RUnlock()
		return c.quote, nil
	}
	p.mu.RUnlock()

	raw, err := p.fetch(ctx, symbol, "1m", "1d")
	if err != nil {
		return market.Quote{}, err
	}

	r := raw.Chart.Result[0]
	price := r.Meta.RegularMarketPrice
	asOf := time.Unix(r.Meta.RegularMarketTime, 0)

	// Fallback: last non-zero close if meta missing.
	if (price <= 0 || r.Meta.RegularMarketTime == 0) && len(r.Timestamp) > 0 &&
		len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Close) == len(r.Timestamp) {
		for i := len(r.Timestamp) - 1; i >= 0; i-- {
			if c := r.Indicators.Quote[0].Close[i]; c > 0 {
				price = c
				asOf = time.Unix(r.Timestamp[i], 0)
				break
			}
		}
	}

	if price <= 0 {
		return market.Quote{}, ErrYahooNoResult
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	q := market.Quote{Symbol: symbol, Price: price, Time: asOf}

	p.mu.Lock()
	p.cache[symbol] = cachedQuote{quote: q, fetched: time.Now()}
	p.mu.Unlock()

	return q, nil
}

func (p *Yahoo) Candles(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoData
	}

	rng := "3mo"
	switch {
	case days <= 5:
		rng = "5d"
	case days <= 30:
		rng = "1mo"
	case days <= 90:
		rng = "3mo"
	default:
		rng = "1y"
	}

	raw, err := p.fetch(ctx, symbol, "1d", rng)
	if err != nil {
		return nil, err
	}

	r := raw.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 || len(r.Timestamp) == 0 {
		return nil, ErrYahooNoResult
	}
	q := r.Indicators.Quote[0]

	var out []market.Candle
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] <= 0 {
			continue
		}
		c := market.Candle{Time: time.Unix(ts, 0), Close: q.Close[i]}
		if i < len(q.Open) {
			c.Open = q.Open[i]
		}
		if i < len(q.High) {
			c.High = q.High[i]
		}
		if i < len(q.Low) {
			c.Low = q.Low[i]
		}
		if i < len(q.Volume) {
			c.Volume = q.Volume[i]
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrYahooNoResult
	}
	if len(out) > days && days > 0 {
		out = out[len(out)-days:]
	}
	return out, nil
}
