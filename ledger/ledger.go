// Package ledger implements the portfolio accounting core: cash balance,
// average-cost positions, and an append-only trade history.
//
// Apply is a pure function from (state, trade intent) to (new state | error).
// It performs no I/O, never mutates its input, and enforces the solvency and
// inventory invariants; persistence and fill pricing belong to the caller.
package ledger

import "errors"

// Ledger failures are terminal for the call and leave the input state
// untouched. The transport maps all three to client-error responses.
var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidSide        = errors.New("invalid side")
)

// Side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Trade is an immutable history record of one applied paper trade.
type Trade struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Time     string  `json:"time"`
}

// Position is a per-symbol holding. Quantity is never negative; when it
// reaches exactly zero the average price is reset so a later buy starts a
// fresh basis.
type Position struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	AvgPrice float64 `json:"avg_price"`
}

// PortfolioState is the full persisted portfolio: cash, positions keyed by
// symbol, and ordered trade history. The JSON shape round-trips with
// previously stored data and must not change.
type PortfolioState struct {
	Cash      float64    `json:"cash"`
	Positions []Position `json:"positions"`
	History   []Trade    `json:"history"`
}

// NewState returns a fresh portfolio with the given starting cash.
func NewState(cash float64) PortfolioState {
	return PortfolioState{
		Cash:      cash,
		Positions: []Position{},
		History:   []Trade{},
	}
}

// Position returns the holding for symbol, or false if none exists.
func (s PortfolioState) Position(symbol string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Symbol == symbol {
			return p, true
		}
	}
	return Position{}, false
}

// clone deep-copies the state so Apply can work copy-on-write.
func (s PortfolioState) clone() PortfolioState {
	out := PortfolioState{
		Cash:      s.Cash,
		Positions: make([]Position, len(s.Positions)),
		History:   make([]Trade, len(s.History), len(s.History)+1),
	}
	copy(out.Positions, s.Positions)
	copy(out.History, s.History)
	return out
}

// ensurePosition finds the index of symbol's position, appending a fresh
// zero-quantity one if absent. A sell against a symbol never held therefore
// behaves as selling from a zero-quantity position.
func ensurePosition(positions []Position, symbol string) ([]Position, int) {
	for i, p := range positions {
		if p.Symbol == symbol {
			return positions, i
		}
	}
	positions = append(positions, Position{Symbol: symbol})
	return positions, len(positions) - 1
}

// Apply executes one paper trade against state and returns the updated
// state. The input state is never modified; on error it is returned
// unchanged so callers can safely retry with a corrected request.
//
// Buys fail with ErrInsufficientFunds when cost exceeds cash (no partial
// fills, no margin). Sells fail with ErrInsufficientShares when quantity
// exceeds the held amount (no shorting). Quantity and price are expected to
// be positive; the ledger is the last line of defense for the cash and
// inventory invariants, not input sanitization.
func Apply(state PortfolioState, symbol string, side Side, quantity, price float64, timestamp string) (PortfolioState, error) {
	switch side {
	case SideBuy:
		cost := quantity * price
		if cost > state.Cash {
			return state, ErrInsufficientFunds
		}
		next := state.clone()
		next.Cash -= cost

		var i int
		next.Positions, i = ensurePosition(next.Positions, symbol)
		pos := &next.Positions[i]

		newQty := pos.Quantity + quantity
		// Guard the denominator; newQty is positive on any valid buy but a
		// degenerate near-zero quantity must not divide to Inf.
		denom := newQty
		if denom < 1e-9 {
			denom = 1e-9
		}
		pos.AvgPrice = (pos.AvgPrice*pos.Quantity + price*quantity) / denom
		pos.Quantity = newQty

		next.History = append(next.History, Trade{
			Symbol: symbol, Side: side, Quantity: quantity, Price: price, Time: timestamp,
		})
		return next, nil

	case SideSell:
		pos, _ := state.Position(symbol)
		if quantity > pos.Quantity {
			return state, ErrInsufficientShares
		}
		next := state.clone()
		next.Cash += quantity * price

		var i int
		next.Positions, i = ensurePosition(next.Positions, symbol)
		p := &next.Positions[i]
		p.Quantity -= quantity
		if p.Quantity == 0 {
			// Flat: clear the stale basis so the next buy starts fresh.
			p.AvgPrice = 0
		}

		next.History = append(next.History, Trade{
			Symbol: symbol, Side: side, Quantity: quantity, Price: price, Time: timestamp,
		})
		return next, nil

	default:
		return state, ErrInvalidSide
	}
}
