// Package store persists user records and portfolio states.
//
// Two backends exist: a JSON file-per-user directory for local development
// and a SQLite database. Portfolio saves are version-checked so two
// concurrent trades on the same user cannot silently drop one another's
// effect; the loser of a conflicting save gets ErrVersionConflict and re-reads.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/tradecoach/ledger"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
)

// User is an account record. PasswordHash is a bcrypt hash and never leaves
// the store/auth boundary.
type User struct {
	ID                 string    `json:"user_id"`
	Email              string    `json:"email"`
	DisplayName        string    `json:"display_name"`
	DefaultPortfolioID string    `json:"default_portfolio_id,omitempty"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
}

// Portfolio is a named portfolio with its own cash, positions and watchlist.
// A user may hold several; one of them is the user's default.
type Portfolio struct {
	ID             string                `json:"portfolio_id"`
	UserID         string                `json:"user_id"`
	Name           string                `json:"portfolio_name"`
	InitialValue   float64               `json:"initial_value"`
	TrackedSymbols []string              `json:"tracked_symbols"`
	CreatedAt      time.Time             `json:"created_at"`
	State          ledger.PortfolioState `json:"state"`
}

// Store owns the durable copy of every portfolio and user record.
type Store interface {
	// LoadState returns the portfolio and its current version.
	LoadState(ctx context.Context, userID string) (ledger.PortfolioState, int64, error)
	// SaveState writes state if the stored version still equals expect.
	// expect 0 creates the portfolio and fails with ErrExists if one is
	// already present; otherwise a stale expect fails with
	// ErrVersionConflict.
	SaveState(ctx context.Context, userID string, state ledger.PortfolioState, expect int64) error

	CreateUser(ctx context.Context, u User) error
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	// SetDefaultPortfolio records which portfolio the user works in. An
	// empty portfolioID clears the default.
	SetDefaultPortfolio(ctx context.Context, userID, portfolioID string) error

	CreatePortfolio(ctx context.Context, p Portfolio) error
	// PortfolioByID returns the portfolio and its current version.
	PortfolioByID(ctx context.Context, id string) (Portfolio, int64, error)
	// PortfoliosByUser returns the user's portfolios, oldest first.
	PortfoliosByUser(ctx context.Context, userID string) ([]Portfolio, error)
	// UpdatePortfolio writes p under the same version discipline as
	// SaveState, except that a portfolio must already exist.
	UpdatePortfolio(ctx context.Context, p Portfolio, expect int64) error
	DeletePortfolio(ctx context.Context, id string) error

	// Ping reports backend health for the health endpoint.
	Ping(ctx context.Context) error
	Close() error
}
