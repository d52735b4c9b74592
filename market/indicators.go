package market

import "errors"

// Indicator periods match what the coach UI and critique prompts expect.
const (
	RSIPeriod  = 14
	EMAShort   = 20
	EMALong    = 50
	rsiNeutral = 50.0
)

var ErrNoCandles = errors.New("no candles")

// EMA computes an exponential moving average over the close series.
//
// The first close seeds the average (simple, deterministic); subsequent
// values apply alpha = 2/(period+1). With fewer closes than the period the
// result is still defined, just under-warmed.
func EMA(closes []float64, period int) float64 {
	if len(closes) == 0 || period <= 0 {
		return 0
	}
	alpha := 2.0 / float64(period+1)
	value := closes[0]
	for _, x := range closes[1:] {
		value = alpha*x + (1.0-alpha)*value
	}
	return value
}

// RSI computes the relative strength index over the close series using
// Wilder smoothing. With fewer than period+1 closes there is not enough
// movement to measure, so it returns the neutral 50.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return rsiNeutral
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return rsiNeutral
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// NewSnapshot builds the indicator view of the most recent candle.
func NewSnapshot(symbol string, candles []Candle) (Snapshot, error) {
	if len(candles) == 0 {
		return Snapshot{}, ErrNoCandles
	}
	closes := Closes(candles)
	last := candles[len(candles)-1]
	return Snapshot{
		Symbol: symbol,
		Time:   last.Time,
		Close:  last.Close,
		RSI:    RSI(closes, RSIPeriod),
		EMA20:  EMA(closes, EMAShort),
		EMA50:  EMA(closes, EMALong),
	}, nil
}
