// Package market defines the quote and candle types shared by the quote
// providers, the indicator calculations, and the API layer.
package market

import "time"

// Quote is the latest known price for a symbol, used as the fill price for
// paper trades.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Time   time.Time `json:"time"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Snapshot is the latest candle annotated with the indicators the coach and
// critic agents reason about.
type Snapshot struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Close  float64   `json:"close"`
	RSI    float64   `json:"rsi"`
	EMA20  float64   `json:"ema20"`
	EMA50  float64   `json:"ema50"`
}

// Closes extracts the close series from candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
