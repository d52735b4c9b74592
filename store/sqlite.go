package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradecoach/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	display_name TEXT NOT NULL,
	default_portfolio_id TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolios (
	user_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	state TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS portfolio_records (
	portfolio_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	record TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_portfolio_records_user ON portfolio_records (user_id, created_at);
`

// SQLiteStore persists users and portfolios in a single SQLite database.
// The portfolio state is stored as its canonical JSON; version bumps are
// guarded by a WHERE version=? check so concurrent writers cannot overwrite
// each other.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadState(ctx context.Context, userID string) (ledger.PortfolioState, int64, error) {
	var (
		version int64
		raw     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, state FROM portfolios WHERE user_id = ?`, userID,
	).Scan(&version, &raw)
	if err == sql.ErrNoRows {
		return ledger.PortfolioState{}, 0, ErrNotFound
	}
	if err != nil {
		return ledger.PortfolioState{}, 0, err
	}

	var state ledger.PortfolioState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return ledger.PortfolioState{}, 0, fmt.Errorf("decode portfolio %s: %w", userID, err)
	}
	return state, version, nil
}

func (s *SQLiteStore) SaveState(ctx context.Context, userID string, state ledger.PortfolioState, expect int64) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if expect == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO portfolios (user_id, version, state, updated_at) VALUES (?, 1, ?, ?)`,
			userID, string(raw), now,
		)
		if err != nil && strings.Contains(err.Error(), "UNIQUE") {
			return ErrExists
		}
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE portfolios SET version = ?, state = ?, updated_at = ? WHERE user_id = ? AND version = ?`,
		expect+1, string(raw), now, userID, expect,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or someone saved first; disambiguate.
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM portfolios WHERE user_id = ?`, userID,
		).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) CreatePortfolio(ctx context.Context, p Portfolio) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO portfolio_records (portfolio_id, user_id, version, record, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?)`,
		p.ID, p.UserID, string(raw), p.CreatedAt, time.Now().UTC(),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrExists
	}
	return err
}

func (s *SQLiteStore) PortfolioByID(ctx context.Context, id string) (Portfolio, int64, error) {
	var (
		version int64
		raw     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, record FROM portfolio_records WHERE portfolio_id = ?`, id,
	).Scan(&version, &raw)
	if err == sql.ErrNoRows {
		return Portfolio{}, 0, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, 0, err
	}

	var p Portfolio
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Portfolio{}, 0, fmt.Errorf("decode portfolio record %s: %w", id, err)
	}
	return p, version, nil
}

func (s *SQLiteStore) PortfoliosByUser(ctx context.Context, userID string) ([]Portfolio, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM portfolio_records WHERE user_id = ? ORDER BY created_at, portfolio_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Portfolio
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var p Portfolio
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdatePortfolio(ctx context.Context, p Portfolio, expect int64) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE portfolio_records SET version = ?, record = ?, updated_at = ? WHERE portfolio_id = ? AND version = ?`,
		expect+1, string(raw), time.Now().UTC(), p.ID, expect,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM portfolio_records WHERE portfolio_id = ?`, p.ID,
		).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM portfolio_records WHERE portfolio_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetDefaultPortfolio(ctx context.Context, userID, portfolioID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET default_portfolio_id = ? WHERE user_id = ?`, portfolioID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, email, display_name, default_portfolio_id, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.DisplayName, u.DefaultPortfolioID, u.PasswordHash, u.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return ErrExists
	}
	return err
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, default_portfolio_id, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT user_id, email, display_name, default_portfolio_id, password_hash, created_at FROM users WHERE user_id = ?`, id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.DefaultPortfolioID, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
