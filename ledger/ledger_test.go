package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ts = "2024-01-02T15:04:05Z"

func TestBuyUpdatesCashAndPosition(t *testing.T) {
	t.Parallel()

	state := NewState(1000)

	next, err := Apply(state, "X", SideBuy, 2, 100, ts)
	require.NoError(t, err)

	assert.InDelta(t, 800, next.Cash, 1e-9)
	pos, ok := next.Position("X")
	require.True(t, ok)
	assert.InDelta(t, 2, pos.Quantity, 1e-9)
	assert.InDelta(t, 100, pos.AvgPrice, 1e-9)
	require.Len(t, next.History, 1)
	assert.Equal(t, Trade{Symbol: "X", Side: SideBuy, Quantity: 2, Price: 100, Time: ts}, next.History[0])
}

func TestAverageCostBlendsAcrossBuys(t *testing.T) {
	t.Parallel()

	state := NewState(1000)

	state, err := Apply(state, "X", SideBuy, 2, 100, ts)
	require.NoError(t, err)
	state, err = Apply(state, "X", SideBuy, 2, 200, ts)
	require.NoError(t, err)

	assert.InDelta(t, 400, state.Cash, 1e-9)
	pos, _ := state.Position("X")
	assert.InDelta(t, 4, pos.Quantity, 1e-9)
	// (2*100 + 2*200) / 4
	assert.InDelta(t, 150, pos.AvgPrice, 1e-9)
}

func TestSellToFlatResetsBasis(t *testing.T) {
	t.Parallel()

	state := NewState(1000)
	state, _ = Apply(state, "X", SideBuy, 2, 100, ts)
	state, _ = Apply(state, "X", SideBuy, 2, 200, ts)

	state, err := Apply(state, "X", SideSell, 4, 150, ts)
	require.NoError(t, err)

	assert.InDelta(t, 1000, state.Cash, 1e-9)
	pos, ok := state.Position("X")
	require.True(t, ok)
	assert.Zero(t, pos.Quantity)
	assert.Zero(t, pos.AvgPrice)
	assert.Len(t, state.History, 3)

	// A fresh buy starts a new basis at the fill price.
	state, err = Apply(state, "X", SideBuy, 1, 250, ts)
	require.NoError(t, err)
	pos, _ = state.Position("X")
	assert.InDelta(t, 250, pos.AvgPrice, 1e-9)
}

func TestPartialSellKeepsBasis(t *testing.T) {
	t.Parallel()

	state := NewState(1000)
	state, _ = Apply(state, "X", SideBuy, 4, 100, ts)

	state, err := Apply(state, "X", SideSell, 1, 120, ts)
	require.NoError(t, err)

	pos, _ := state.Position("X")
	assert.InDelta(t, 3, pos.Quantity, 1e-9)
	assert.InDelta(t, 100, pos.AvgPrice, 1e-9)
	assert.InDelta(t, 720, state.Cash, 1e-9)
}

func TestInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	state := NewState(100)

	got, err := Apply(state, "X", SideBuy, 1, 150, ts)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, state, got)
	assert.InDelta(t, 100, got.Cash, 1e-9)
	assert.Empty(t, got.History)
}

func TestSellWithoutPositionFailsInsufficientShares(t *testing.T) {
	t.Parallel()

	// A sell against a symbol never held behaves as selling from a
	// zero-quantity position: any positive quantity fails.
	state := NewState(1000)

	got, err := Apply(state, "Y", SideSell, 1, 50, ts)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, state, got)
	_, ok := got.Position("Y")
	assert.False(t, ok)
}

func TestOversellFailsInsufficientShares(t *testing.T) {
	t.Parallel()

	state := NewState(1000)
	state, _ = Apply(state, "X", SideBuy, 2, 100, ts)

	got, err := Apply(state, "X", SideSell, 3, 100, ts)
	assert.ErrorIs(t, err, ErrInsufficientShares)
	assert.Equal(t, state, got)
}

func TestInvalidSide(t *testing.T) {
	t.Parallel()

	state := NewState(1000)

	got, err := Apply(state, "X", Side("hold"), 1, 100, ts)
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Equal(t, state, got)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	state := NewState(1000)
	state, _ = Apply(state, "X", SideBuy, 2, 100, ts)

	before := state.clone()

	_, err := Apply(state, "X", SideBuy, 1, 200, ts)
	require.NoError(t, err)
	assert.Equal(t, before, state)

	_, err = Apply(state, "X", SideSell, 1, 200, ts)
	require.NoError(t, err)
	assert.Equal(t, before, state)
}

// TestInvariantsOverSequence walks a mixed sequence of trades and checks the
// solvency and inventory invariants after every successful application.
func TestInvariantsOverSequence(t *testing.T) {
	t.Parallel()

	type step struct {
		symbol string
		side   Side
		qty    float64
		price  float64
	}
	steps := []step{
		{"AAPL", SideBuy, 3, 150},
		{"MSFT", SideBuy, 1, 300},
		{"AAPL", SideSell, 2, 160},
		{"AAPL", SideBuy, 5, 155},
		{"MSFT", SideSell, 1, 310},
		{"AAPL", SideSell, 6, 140},
	}

	state := NewState(2000)
	histLen := 0
	for i, st := range steps {
		next, err := Apply(state, st.symbol, st.side, st.qty, st.price, ts)
		require.NoError(t, err, "step %d", i)

		assert.GreaterOrEqual(t, next.Cash, 0.0, "cash after step %d", i)
		for _, p := range next.Positions {
			assert.GreaterOrEqual(t, p.Quantity, 0.0, "qty of %s after step %d", p.Symbol, i)
		}
		assert.Len(t, next.History, histLen+1, "history grows by one per trade")
		histLen++
		state = next
	}
}

func TestAverageCostRoundTrip(t *testing.T) {
	t.Parallel()

	state := NewState(1000)

	state, err := Apply(state, "X", SideBuy, 2, 100, ts)
	require.NoError(t, err)
	assert.InDelta(t, 800, state.Cash, 1e-9)

	state, err = Apply(state, "X", SideBuy, 2, 200, ts)
	require.NoError(t, err)
	assert.InDelta(t, 400, state.Cash, 1e-9)
	pos, _ := state.Position("X")
	assert.InDelta(t, 4, pos.Quantity, 1e-9)
	assert.InDelta(t, 150, pos.AvgPrice, 1e-9)

	state, err = Apply(state, "X", SideSell, 4, 150, ts)
	require.NoError(t, err)
	assert.InDelta(t, 1000, state.Cash, 1e-9)
	pos, _ = state.Position("X")
	assert.Zero(t, pos.Quantity)
	assert.Zero(t, pos.AvgPrice)
	assert.Len(t, state.History, 3)
}
