package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/tradecoach/ledger"
)

// FileStore keeps one JSON file per user under a data directory. It is meant
// for local development; versions are enforced under a process-wide lock, so
// it is only safe with a single service instance.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// stateEnvelope wraps the portfolio JSON with its version. The embedded
// state keeps the exact {cash, positions, history} shape on disk.
type stateEnvelope struct {
	Version int64                 `json:"version"`
	State   ledger.PortfolioState `json:"state"`
}

type userRecord struct {
	User
	PasswordHash string `json:"password_hash"`
}

// portfolioEnvelope versions a named portfolio the way stateEnvelope
// versions the per-user state.
type portfolioEnvelope struct {
	Version   int64     `json:"version"`
	Portfolio Portfolio `json:"portfolio"`
}

func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"portfolios", "portfolio_records", "users"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) statePath(userID string) string {
	return filepath.Join(s.dir, "portfolios", filepath.Base(userID)+".json")
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.dir, "portfolio_records", filepath.Base(id)+".json")
}

func (s *FileStore) userPath(id string) string {
	return filepath.Join(s.dir, "users", filepath.Base(id)+".json")
}

func (s *FileStore) LoadState(_ context.Context, userID string) (ledger.PortfolioState, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadStateLocked(userID)
}

func (s *FileStore) loadStateLocked(userID string) (ledger.PortfolioState, int64, error) {
	data, err := os.ReadFile(s.statePath(userID))
	if os.IsNotExist(err) {
		return ledger.PortfolioState{}, 0, ErrNotFound
	}
	if err != nil {
		return ledger.PortfolioState{}, 0, err
	}

	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ledger.PortfolioState{}, 0, fmt.Errorf("decode portfolio %s: %w", userID, err)
	}
	if env.Version == 0 {
		// Files written before versioning hold the bare
		// {cash, positions, history} object. Read them as version 1;
		// the next save rewrites them under the envelope.
		var state ledger.PortfolioState
		if err := json.Unmarshal(data, &state); err != nil {
			return ledger.PortfolioState{}, 0, fmt.Errorf("decode portfolio %s: %w", userID, err)
		}
		return state, 1, nil
	}
	return env.State, env.Version, nil
}

func (s *FileStore) SaveState(_ context.Context, userID string, state ledger.PortfolioState, expect int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.loadStateLocked(userID)
	switch {
	case err == ErrNotFound:
		if expect != 0 {
			return ErrNotFound
		}
	case err != nil:
		return err
	case expect == 0:
		return ErrExists
	case current != expect:
		return ErrVersionConflict
	}

	data, err := json.MarshalIndent(stateEnvelope{Version: expect + 1, State: state}, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename keeps a crash from leaving a torn file behind.
	tmp := s.statePath(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.statePath(userID))
}

func (s *FileStore) CreatePortfolio(_ context.Context, p Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(p.ID)); err == nil {
		return ErrExists
	}
	return s.writePortfolioLocked(p, 1)
}

func (s *FileStore) PortfolioByID(_ context.Context, id string) (Portfolio, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolioLocked(id)
}

func (s *FileStore) portfolioLocked(id string) (Portfolio, int64, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if os.IsNotExist(err) {
		return Portfolio{}, 0, ErrNotFound
	}
	if err != nil {
		return Portfolio{}, 0, err
	}

	var env portfolioEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Portfolio{}, 0, fmt.Errorf("decode portfolio record %s: %w", id, err)
	}
	return env.Portfolio, env.Version, nil
}

func (s *FileStore) PortfoliosByUser(_ context.Context, userID string) ([]Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, "portfolio_records"))
	if err != nil {
		return nil, err
	}

	var out []Portfolio
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		p, _, err := s.portfolioLocked(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) UpdatePortfolio(_ context.Context, p Portfolio, expect int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.portfolioLocked(p.ID)
	if err != nil {
		return err
	}
	if current != expect {
		return ErrVersionConflict
	}
	return s.writePortfolioLocked(p, expect+1)
}

func (s *FileStore) writePortfolioLocked(p Portfolio, version int64) error {
	data, err := json.MarshalIndent(portfolioEnvelope{Version: version, Portfolio: p}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.recordPath(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.recordPath(p.ID))
}

func (s *FileStore) DeletePortfolio(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(id)); os.IsNotExist(err) {
		return ErrNotFound
	}
	return os.Remove(s.recordPath(id))
}

func (s *FileStore) SetDefaultPortfolio(_ context.Context, userID, portfolioID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.readUser(s.userPath(userID))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	u.DefaultPortfolioID = portfolioID
	data, err := json.MarshalIndent(userRecord{User: u, PasswordHash: u.PasswordHash}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.userPath(userID), data, 0o600)
}

func (s *FileStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.userByEmailLocked(u.Email); err == nil {
		return ErrExists
	}
	if _, err := os.Stat(s.userPath(u.ID)); err == nil {
		return ErrExists
	}

	data, err := json.MarshalIndent(userRecord{User: u, PasswordHash: u.PasswordHash}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.userPath(u.ID), data, 0o600)
}

func (s *FileStore) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByEmailLocked(email)
}

func (s *FileStore) userByEmailLocked(email string) (User, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "users"))
	if err != nil {
		return User{}, err
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		u, err := s.readUser(filepath.Join(s.dir, "users", e.Name()))
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *FileStore) UserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.readUser(s.userPath(id))
	if os.IsNotExist(err) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *FileStore) readUser(path string) (User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return User{}, err
	}
	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return User{}, err
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return u, nil
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) Close() error { return nil }
