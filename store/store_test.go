package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecoach/ledger"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	db, err := NewSQLite(filepath.Join(t.TempDir(), "coach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Store{"file": fs, "sqlite": db}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, _, err := s.LoadState(ctx, "u1")
			assert.ErrorIs(t, err, ErrNotFound)

			state := ledger.NewState(500)
			state, err = ledger.Apply(state, "AAPL", ledger.SideBuy, 2, 100, "2024-01-02T00:00:00Z")
			require.NoError(t, err)

			require.NoError(t, s.SaveState(ctx, "u1", state, 0))

			got, version, err := s.LoadState(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, int64(1), version)
			assert.Equal(t, state, got)
		})
	}
}

func TestSaveStateVersionConflict(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.SaveState(ctx, "u1", ledger.NewState(500), 0))

			// Creating twice is an error.
			assert.ErrorIs(t, s.SaveState(ctx, "u1", ledger.NewState(500), 0), ErrExists)

			// Two writers read version 1; the second save loses.
			st, v, err := s.LoadState(ctx, "u1")
			require.NoError(t, err)
			require.NoError(t, s.SaveState(ctx, "u1", st, v))
			assert.ErrorIs(t, s.SaveState(ctx, "u1", st, v), ErrVersionConflict)

			// Saving a user that was never created reports not found.
			assert.ErrorIs(t, s.SaveState(ctx, "ghost", st, 3), ErrNotFound)
		})
	}
}

func TestFileStoreReadsUnversionedState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	// A data file from before versioning: the bare state object, no envelope.
	legacy := `{
		"cash": 350.0,
		"positions": [{"symbol": "AAPL", "quantity": 2, "avg_price": 100}],
		"history": [{"symbol": "AAPL", "side": "buy", "quantity": 2, "price": 100, "time": "2024-01-02T00:00:00Z"}]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "portfolios", "u1.json"), []byte(legacy), 0o644))

	ctx := context.Background()

	state, version, err := fs.LoadState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, 350.0, state.Cash)
	require.Len(t, state.Positions, 1)
	assert.Equal(t, "AAPL", state.Positions[0].Symbol)

	// The portfolio exists, so creating it again must fail and a save
	// against the read version must succeed.
	assert.ErrorIs(t, fs.SaveState(ctx, "u1", state, 0), ErrExists)

	next, err := ledger.Apply(state, "AAPL", ledger.SideSell, 1, 120, "2024-01-03T00:00:00Z")
	require.NoError(t, err)
	require.NoError(t, fs.SaveState(ctx, "u1", next, version))

	got, version, err := fs.LoadState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, next, got)
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			u := User{
				ID:           "01HTESTUSER",
				Email:        "kim@example.com",
				DisplayName:  "kim",
				PasswordHash: "$2a$10$fakehash",
				CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			require.NoError(t, s.CreateUser(ctx, u))

			assert.ErrorIs(t, s.CreateUser(ctx, u), ErrExists)

			byEmail, err := s.UserByEmail(ctx, "KIM@example.com")
			require.NoError(t, err)
			assert.Equal(t, u.ID, byEmail.ID)
			assert.Equal(t, u.PasswordHash, byEmail.PasswordHash)

			byID, err := s.UserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, u.Email, byID.Email)

			_, err = s.UserByID(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.UserByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPortfolioLifecycle(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, _, err := s.PortfolioByID(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			p := Portfolio{
				ID:             "01HPORTONE",
				UserID:         "u1",
				Name:           "Growth",
				InitialValue:   1000,
				TrackedSymbols: []string{"AAPL"},
				CreatedAt:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				State:          ledger.NewState(1000),
			}
			require.NoError(t, s.CreatePortfolio(ctx, p))
			assert.ErrorIs(t, s.CreatePortfolio(ctx, p), ErrExists)

			got, version, err := s.PortfolioByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), version)
			assert.Equal(t, p.Name, got.Name)
			assert.Equal(t, p.TrackedSymbols, got.TrackedSymbols)
			assert.Equal(t, 1000.0, got.State.Cash)

			p2 := p
			p2.ID = "01HPORTTWO"
			p2.Name = "Income"
			p2.CreatedAt = p.CreatedAt.Add(time.Hour)
			require.NoError(t, s.CreatePortfolio(ctx, p2))

			other := p
			other.ID = "01HPORTELSE"
			other.UserID = "u2"
			require.NoError(t, s.CreatePortfolio(ctx, other))

			list, err := s.PortfoliosByUser(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "Growth", list[0].Name)
			assert.Equal(t, "Income", list[1].Name)

			list, err = s.PortfoliosByUser(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestUpdatePortfolioVersionCheck(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p := Portfolio{
				ID:        "01HPORTCAS",
				UserID:    "u1",
				Name:      "Growth",
				CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				State:     ledger.NewState(1000),
			}
			require.NoError(t, s.CreatePortfolio(ctx, p))

			got, v, err := s.PortfolioByID(ctx, p.ID)
			require.NoError(t, err)

			traded, err := ledger.Apply(got.State, "AAPL", ledger.SideBuy, 2, 100, "2024-01-03T00:00:00Z")
			require.NoError(t, err)
			got.State = traded
			require.NoError(t, s.UpdatePortfolio(ctx, got, v))

			// A writer holding the old version loses.
			assert.ErrorIs(t, s.UpdatePortfolio(ctx, got, v), ErrVersionConflict)

			after, v2, err := s.PortfolioByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), v2)
			assert.Equal(t, 800.0, after.State.Cash)

			ghost := p
			ghost.ID = "01HPORTGONE"
			assert.ErrorIs(t, s.UpdatePortfolio(ctx, ghost, 1), ErrNotFound)
		})
	}
}

func TestDeletePortfolio(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			p := Portfolio{ID: "01HPORTDEL", UserID: "u1", Name: "Scratch", State: ledger.NewState(100)}
			require.NoError(t, s.CreatePortfolio(ctx, p))
			require.NoError(t, s.DeletePortfolio(ctx, p.ID))

			_, _, err := s.PortfolioByID(ctx, p.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeletePortfolio(ctx, p.ID), ErrNotFound)
		})
	}
}

func TestSetDefaultPortfolio(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			u := User{
				ID:           "01HDEFUSER",
				Email:        "pat@example.com",
				DisplayName:  "pat",
				PasswordHash: "$2a$10$fakehash",
				CreatedAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			require.NoError(t, s.CreateUser(ctx, u))

			require.NoError(t, s.SetDefaultPortfolio(ctx, u.ID, "01HPORTONE"))

			got, err := s.UserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "01HPORTONE", got.DefaultPortfolioID)

			// Clearing the default.
			require.NoError(t, s.SetDefaultPortfolio(ctx, u.ID, ""))
			got, err = s.UserByID(ctx, u.ID)
			require.NoError(t, err)
			assert.Empty(t, got.DefaultPortfolioID)

			assert.ErrorIs(t, s.SetDefaultPortfolio(ctx, "missing", "x"), ErrNotFound)
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, s.Ping(context.Background()))
		})
	}
}
