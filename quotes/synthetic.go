package quotes

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/rustyeddy/tradecoach/market"
)

// Synthetic generates a deterministic random-walk price series per symbol.
//
// It exists so the service can be exercised offline; it is a development
// capability only and must never sit in a production chain. Build refuses
// to include it unless explicitly allowed.
type Synthetic struct {
	base       float64
	volatility float64
}

func NewSynthetic() *Synthetic {
	return &Synthetic{base: 150.0, volatility: 0.02}
}

func (p *Synthetic) Name() string { return "synthetic" }

// seed derives a stable per-symbol seed so repeated requests for the same
// symbol return the same series.
func seed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64())
}

func (p *Synthetic) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	cs, err := p.Candles(ctx, symbol, 180)
	if err != nil {
		return market.Quote{}, err
	}
	last := cs[len(cs)-1]
	return market.Quote{Symbol: symbol, Price: last.Close, Time: last.Time}, nil
}

func (p *Synthetic) Candles(_ context.Context, symbol string, days int) ([]market.Candle, error) {
	if days <= 0 {
		days = 180
	}

	rng := rand.New(rand.NewSource(seed(symbol)))
	price := p.base
	end := time.Now().UTC().Truncate(24 * time.Hour)

	out := make([]market.Candle, 0, days)
	for i := 0; i < days; i++ {
		drift := 0.0002
		price *= 1 + rng.NormFloat64()*p.volatility + drift
		out = append(out, market.Candle{
			Time:   end.Add(time.Duration(i-days+1) * 24 * time.Hour),
			Open:   price * (1 + rng.Float64()*0.02 - 0.01),
			High:   price * (1 + rng.Float64()*0.02),
			Low:    price * (1 - rng.Float64()*0.02),
			Close:  price,
			Volume: 50_000_000 + rng.Int63n(100_000_000),
		})
	}
	return out, nil
}
