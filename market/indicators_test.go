package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMASeedsWithFirstClose(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100, EMA([]float64{100}, 20), 1e-9)
	assert.Zero(t, EMA(nil, 20))
}

func TestEMARecurrence(t *testing.T) {
	t.Parallel()

	// period 3 => alpha 0.5; 10, 20, 30 -> 10, 15, 22.5
	got := EMA([]float64{10, 20, 30}, 3)
	assert.InDelta(t, 22.5, got, 1e-9)
}

func TestEMAConstantSeries(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 100)
	for i := range closes {
		closes[i] = 42
	}
	assert.InDelta(t, 42, EMA(closes, EMALong), 1e-9)
}

func TestRSINeutralWhenShort(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 50, RSI([]float64{1, 2, 3}, RSIPeriod), 1e-9)
	assert.InDelta(t, 50, RSI(nil, RSIPeriod), 1e-9)
}

func TestRSIExtremes(t *testing.T) {
	t.Parallel()

	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = float64(100 + i)
		down[i] = float64(100 - i)
	}
	assert.InDelta(t, 100, RSI(up, RSIPeriod), 1e-9)
	assert.InDelta(t, 0, RSI(down, RSIPeriod), 1e-9)
}

func TestRSIFlatSeriesIsNeutral(t *testing.T) {
	t.Parallel()

	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	assert.InDelta(t, 50, RSI(flat, RSIPeriod), 1e-9)
}

func TestNewSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	var candles []Candle
	for i := 0; i < 60; i++ {
		candles = append(candles, Candle{
			Time:  now.Add(time.Duration(i-60) * 24 * time.Hour),
			Close: 100 + float64(i)*0.5,
		})
	}

	snap, err := NewSnapshot("AAPL", candles)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", snap.Symbol)
	assert.InDelta(t, candles[len(candles)-1].Close, snap.Close, 1e-9)
	assert.Greater(t, snap.RSI, 50.0, "steady uptrend reads overbought")
	assert.Greater(t, snap.EMA20, snap.EMA50, "short EMA leads in an uptrend")

	_, err = NewSnapshot("AAPL", nil)
	assert.ErrorIs(t, err, ErrNoCandles)
}
