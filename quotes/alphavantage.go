package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradecoach/market"
)

// Alpha Vantage GLOBAL_QUOTE / TIME_SERIES_DAILY provider (cached).
//
// The free tier answers rate-limit refusals with a 200 plus a "Note" or
// "Information" field, so those are detected and reported as ErrRateLimited
// rather than parsed as quotes.

type AlphaVantage struct {
	apiKey  string
	baseURL string
	cli     *http.Client
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cachedQuote
}

func NewAlphaVantage(apiKey string, ttl time.Duration) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co",
		cli:     &http.Client{Timeout: 8 * time.Second},
		ttl:     ttl,
		cache:   make(map[string]cachedQuote),
	}
}

func (p *AlphaVantage) Name() string { return "alphavantage" }

func (p *AlphaVantage) get(ctx context.Context, params url.Values) (map[string]json.RawMessage, error) {
	params.Set("apikey", p.apiKey)
	u := fmt.Sprintf("%s/query?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tradecoach/1.0")

	resp, err := p.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alphavantage http %d", resp.StatusCode)
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	if _, ok := raw["Note"]; ok {
		return nil, ErrRateLimited
	}
	if _, ok := raw["Information"]; ok {
		return nil, ErrRateLimited
	}
	return raw, nil
}

func (p *AlphaVantage) Quote(ctx context.Context, symbol string) (market.Quote, error) {
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

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	raw, err := p.get(ctx, params)
	if err != nil {
		return market.Quote{}, err
	}

	var gq map[string]string
	if err := json.Unmarshal(raw["Global Quote"], &gq); err != nil || len(gq) == 0 {
		return market.Quote{}, fmt.Errorf("alphavantage: no quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(gq["05. price"], 64)
	if err != nil || price <= 0 {
		return market.Quote{}, fmt.Errorf("alphavantage: bad price for %s", symbol)
	}

	asOf := time.Now()
	if d := gq["07. latest trading day"]; d != "" {
		if t, e := time.Parse("2006-01-02", d); e == nil {
			asOf = t
		}
	}

	q := market.Quote{Symbol: symbol, Price: price, Time: asOf}

	p.mu.Lock()
	p.cache[symbol] = cachedQuote{quote: q, fetched: time.Now()}
	p.mu.Unlock()

	return q, nil
}

func (p *AlphaVantage) Candles(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrNoData
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "compact")

	raw, err := p.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(raw["Time Series (Daily)"], &series); err != nil || len(series) == 0 {
		return nil, fmt.Errorf("alphavantage: no series for %s", symbol)
	}

	out := make([]market.Candle, 0, len(series))
	for day, fields := range series {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		c := market.Candle{Time: t}
		c.Open, _ = strconv.ParseFloat(fields["1. open"], 64)
		c.High, _ = strconv.ParseFloat(fields["2. high"], 64)
		c.Low, _ = strconv.ParseFloat(fields["3. low"], 64)
		c.Close, _ = strconv.ParseFloat(fields["4. close"], 64)
		v, _ := strconv.ParseInt(fields["5. volume"], 10, 64)
		c.Volume = v
		if c.Close > 0 {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("alphavantage: empty series for %s", symbol)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	if days > 0 && len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}
