// Package metrics derives read-only portfolio analytics: current valuation
// of open positions and win/loss statistics over the trade history. Pure
// computation; quote lookups happen in the caller.
package metrics

import "github.com/rustyeddy/tradecoach/ledger"

// PositionValue is one position marked to the latest known price.
type PositionValue struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	PnL          float64 `json:"pnl"`
	PnLPercent   float64 `json:"pnl_percent"`
}

// Valuation summarizes the whole portfolio at current prices.
type Valuation struct {
	Cash           float64         `json:"cash"`
	PositionsValue float64         `json:"positions_value"`
	TotalValue     float64         `json:"total_value"`
	Positions      []PositionValue `json:"positions"`
}

// Value marks every position to prices[symbol]. A symbol with no quote
// falls back to its average price, so an unreachable provider degrades the
// valuation instead of failing it.
func Value(state ledger.PortfolioState, prices map[string]float64) Valuation {
	v := Valuation{Cash: state.Cash, Positions: []PositionValue{}}

	for _, p := range state.Positions {
		price, ok := prices[p.Symbol]
		if !ok || price <= 0 {
			price = p.AvgPrice
		}

		pv := PositionValue{
			Symbol:       p.Symbol,
			Quantity:     p.Quantity,
			AvgPrice:     p.AvgPrice,
			CurrentPrice: price,
			Value:        p.Quantity * price,
			PnL:          (price - p.AvgPrice) * p.Quantity,
		}
		if cost := p.AvgPrice * p.Quantity; cost > 0 {
			pv.PnLPercent = pv.PnL / cost * 100
		}

		v.PositionsValue += pv.Value
		v.Positions = append(v.Positions, pv)
	}

	v.TotalValue = v.Cash + v.PositionsValue
	return v
}

// TradeStats aggregates realized results over a trade history.
type TradeStats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
}

// Stats pairs each sell against the oldest unmatched buy of the same symbol
// (FIFO) and scores the pair by its realized P&L. Unmatched buys are open
// positions and score nothing.
func Stats(history []ledger.Trade) TradeStats {
	s := TradeStats{TotalTrades: len(history)}

	type lot struct {
		price    float64
		quantity float64
	}
	open := map[string][]lot{}

	for _, t := range history {
		switch t.Side {
		case ledger.SideBuy:
			open[t.Symbol] = append(open[t.Symbol], lot{price: t.Price, quantity: t.Quantity})
		case ledger.SideSell:
			lots := open[t.Symbol]
			if len(lots) == 0 {
				continue
			}
			buy := lots[0]
			open[t.Symbol] = lots[1:]

			qty := t.Quantity
			if buy.quantity < qty {
				qty = buy.quantity
			}
			pnl := (t.Price - buy.price) * qty
			s.TotalPnL += pnl
			if pnl > 0 {
				s.WinningTrades++
			} else if pnl < 0 {
				s.LosingTrades++
			}
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	return s
}
