package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/tradecoach/agent"
	"github.com/rustyeddy/tradecoach/auth"
	"github.com/rustyeddy/tradecoach/internal/id"
	"github.com/rustyeddy/tradecoach/journal"
	"github.com/rustyeddy/tradecoach/ledger"
	"github.com/rustyeddy/tradecoach/market"
	"github.com/rustyeddy/tradecoach/metrics"
	"github.com/rustyeddy/tradecoach/quotes"
	"github.com/rustyeddy/tradecoach/store"
)

const (
	candleDays    = 90
	recentCandles = 30
)

// GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		storeStatus = "unreachable"
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"store":    storeStatus,
		"version":  s.deps.Version,
		"uptime_s": time.Since(s.startedAt).Seconds(),
	})
}

type authResponse struct {
	User  store.User `json:"user"`
	Token string     `json:"token"`
}

// POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := s.deps.Auth.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		s.writeError(w, http.StatusConflict, "email already registered")
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

// POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	case err != nil:
		log.Printf("api: login: %v", err)
		s.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}

// GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, currentUser(r))
}

// POST /api/init
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cash float64 `json:"cash"`
	}
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Cash < 0 {
		s.writeError(w, http.StatusBadRequest, "cash must not be negative")
		return
	}
	if req.Cash == 0 {
		req.Cash = s.deps.InitialCash
	}

	u := currentUser(r)
	state := ledger.NewState(req.Cash)

	err := s.deps.Store.SaveState(r.Context(), u.ID, state, 0)
	switch {
	case errors.Is(err, store.ErrExists):
		s.writeError(w, http.StatusConflict, "portfolio already initialized")
		return
	case err != nil:
		log.Printf("api: init portfolio: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not create portfolio")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id":   u.ID,
		"portfolio": state,
	})
}

// POST /api/paper_trade
func (s *Server) handlePaperTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string  `json:"symbol"`
		Side     string  `json:"side"`
		Quantity float64 `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Quantity <= 0 {
		s.writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	u := currentUser(r)
	ctx := r.Context()

	q, err := s.deps.Quotes.Quote(ctx, req.Symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrNoData) {
			s.writeError(w, http.StatusNotFound, "no quote for symbol "+req.Symbol)
			return
		}
		log.Printf("api: quote %s: %v", req.Symbol, err)
		s.writeError(w, http.StatusBadGateway, "quote lookup failed")
		return
	}

	ts := time.Now().UTC().Format(time.RFC3339)

	// One reload on a concurrent write, then give up with 409.
	var next ledger.PortfolioState
	for attempt := 0; ; attempt++ {
		state, version, err := s.deps.Store.LoadState(ctx, u.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "portfolio not initialized")
				return
			}
			log.Printf("api: load portfolio: %v", err)
			s.writeError(w, http.StatusInternalServerError, "could not load portfolio")
			return
		}

		next, err = ledger.Apply(state, req.Symbol, ledger.Side(req.Side), req.Quantity, q.Price, ts)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		err = s.deps.Store.SaveState(ctx, u.ID, next, version)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt == 0 {
			continue
		}
		if errors.Is(err, store.ErrVersionConflict) {
			s.writeError(w, http.StatusConflict, "portfolio changed concurrently, retry")
			return
		}
		log.Printf("api: save portfolio: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not save portfolio")
		return
	}

	if err := s.deps.Journal.Record(journal.Record{
		ID:        id.New(),
		UserID:    u.ID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     q.Price,
		CashAfter: next.Cash,
		Time:      ts,
	}); err != nil {
		log.Printf("api: journal trade: %v", err)
	}

	trade := next.History[len(next.History)-1]
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trade":     trade,
		"portfolio": next,
	})
}

// GET /api/portfolio/{userID}
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	u := currentUser(r)
	if userID != u.ID {
		s.writeError(w, http.StatusForbidden, "not your portfolio")
		return
	}

	state, _, err := s.deps.Store.LoadState(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "portfolio not initialized")
			return
		}
		log.Printf("api: load portfolio: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not load portfolio")
		return
	}

	// A position whose quote fails is valued at its average price.
	prices := map[string]float64{}
	for _, p := range state.Positions {
		q, err := s.deps.Quotes.Quote(r.Context(), p.Symbol)
		if err != nil {
			log.Printf("api: quote %s for valuation: %v", p.Symbol, err)
			continue
		}
		prices[p.Symbol] = q.Price
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"portfolio": state,
		"valuation": metrics.Value(state, prices),
		"stats":     metrics.Stats(state.History),
	})
}

// GET /api/market/{symbol}
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	snap, candles, err := s.snapshot(r, symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrNoData) || errors.Is(err, market.ErrNoCandles) {
			s.writeError(w, http.StatusNotFound, "no market data for symbol "+symbol)
			return
		}
		log.Printf("api: market %s: %v", symbol, err)
		s.writeError(w, http.StatusBadGateway, "market data lookup failed")
		return
	}

	if len(candles) > recentCandles {
		candles = candles[len(candles)-recentCandles:]
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"candles":  candles,
	})
}

func (s *Server) snapshot(r *http.Request, symbol string) (market.Snapshot, []market.Candle, error) {
	candles, err := s.deps.Quotes.Candles(r.Context(), symbol, candleDays)
	if err != nil {
		return market.Snapshot{}, nil, err
	}
	snap, err := market.NewSnapshot(symbol, candles)
	if err != nil {
		return market.Snapshot{}, nil, err
	}
	return snap, candles, nil
}

func (s *Server) writeAgentResult(w http.ResponseWriter, text string, err error) {
	if err != nil {
		if errors.Is(err, agent.ErrUnavailable) {
			s.writeError(w, http.StatusServiceUnavailable, "coach is unavailable, try again later")
			return
		}
		log.Printf("api: agent: %v", err)
		s.writeError(w, http.StatusInternalServerError, "coaching failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

// POST /api/coach
func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string `json:"query"`
		UserLevel string `json:"user_level"`
		FocusArea string `json:"focus_area"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	text, err := s.deps.Coach.Coach(r.Context(), req.Query, req.UserLevel, req.FocusArea)
	s.writeAgentResult(w, text, err)
}

// POST /api/critique
func (s *Server) handleCritique(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Action string `json:"action"`
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.Action == "" {
		s.writeError(w, http.StatusBadRequest, "symbol and action are required")
		return
	}

	snap, _, err := s.snapshot(r, req.Symbol)
	if err != nil {
		if errors.Is(err, quotes.ErrNoData) || errors.Is(err, market.ErrNoCandles) {
			s.writeError(w, http.StatusNotFound, "no market data for symbol "+req.Symbol)
			return
		}
		log.Printf("api: critique %s: %v", req.Symbol, err)
		s.writeError(w, http.StatusBadGateway, "market data lookup failed")
		return
	}

	text, err := s.deps.Coach.Critique(r.Context(), req.Symbol, req.Action, req.Reason, snap)
	s.writeAgentResult(w, text, err)
}

// POST /api/plan
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Goal      string   `json:"goal"`
		RiskLevel string   `json:"risk_level"`
		Symbols   []string `json:"symbols"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Goal == "" {
		s.writeError(w, http.StatusBadRequest, "goal is required")
		return
	}

	text, err := s.deps.Coach.Plan(r.Context(), req.Goal, req.RiskLevel, req.Symbols)
	s.writeAgentResult(w, text, err)
}
