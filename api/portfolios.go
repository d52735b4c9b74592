package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/tradecoach/agent"
	"github.com/rustyeddy/tradecoach/internal/id"
	"github.com/rustyeddy/tradecoach/journal"
	"github.com/rustyeddy/tradecoach/ledger"
	"github.com/rustyeddy/tradecoach/market"
	"github.com/rustyeddy/tradecoach/metrics"
	"github.com/rustyeddy/tradecoach/quotes"
	"github.com/rustyeddy/tradecoach/store"
)

const defaultTradeLimit = 50

// portfolioForRequest loads the portfolio in the URL and enforces ownership.
// On failure it writes the error response and reports false.
func (s *Server) portfolioForRequest(w http.ResponseWriter, r *http.Request) (store.Portfolio, int64, bool) {
	pid := chi.URLParam(r, "portfolioID")

	p, version, err := s.deps.Store.PortfolioByID(r.Context(), pid)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "portfolio not found")
		return store.Portfolio{}, 0, false
	}
	if err != nil {
		log.Printf("api: load portfolio record %s: %v", pid, err)
		s.writeError(w, http.StatusInternalServerError, "could not load portfolio")
		return store.Portfolio{}, 0, false
	}
	if p.UserID != currentUser(r).ID {
		s.writeError(w, http.StatusForbidden, "not your portfolio")
		return store.Portfolio{}, 0, false
	}
	return p, version, true
}

// GET /api/portfolios
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Store.PortfoliosByUser(r.Context(), currentUser(r).ID)
	if err != nil {
		log.Printf("api: list portfolios: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not list portfolios")
		return
	}
	if list == nil {
		list = []store.Portfolio{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolios": list})
}

// POST /api/portfolios
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string   `json:"portfolio_name"`
		InitialValue   float64  `json:"initial_value"`
		TrackedSymbols []string `json:"tracked_symbols"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "portfolio_name is required")
		return
	}
	if req.InitialValue < 0 {
		s.writeError(w, http.StatusBadRequest, "initial_value must not be negative")
		return
	}
	if req.InitialValue == 0 {
		req.InitialValue = s.deps.InitialCash
	}

	symbols := make([]string, 0, len(req.TrackedSymbols))
	for _, sym := range req.TrackedSymbols {
		symbols = append(symbols, strings.ToUpper(sym))
	}

	u := currentUser(r)
	p := store.Portfolio{
		ID:             id.New(),
		UserID:         u.ID,
		Name:           req.Name,
		InitialValue:   req.InitialValue,
		TrackedSymbols: symbols,
		CreatedAt:      time.Now().UTC(),
		State:          ledger.NewState(req.InitialValue),
	}
	if err := s.deps.Store.CreatePortfolio(r.Context(), p); err != nil {
		log.Printf("api: create portfolio: %v", err)
		s.writeError(w, http.StatusInternalServerError, "could not create portfolio")
		return
	}

	// A user's first portfolio becomes their default.
	if u.DefaultPortfolioID == "" {
		if err := s.deps.Store.SetDefaultPortfolio(r.Context(), u.ID, p.ID); err != nil {
			log.Printf("api: set default portfolio: %v", err)
		}
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"portfolio": p})
}

// GET /api/portfolios/{portfolioID}
func (s *Server) handlePortfolioDetail(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	prices := map[string]float64{}
	for _, pos := range p.State.Positions {
		q, err := s.deps.Quotes.Quote(r.Context(), pos.Symbol)
		if err != nil {
			log.Printf("api: quote %s for valuation: %v", pos.Symbol, err)
			continue
		}
		prices[pos.Symbol] = q.Price
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": p,
		"valuation": metrics.Value(p.State, prices),
		"stats":     metrics.Stats(p.State.History),
	})
}

// DELETE /api/portfolios/{portfolioID}
func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	if err := s.deps.Store.DeletePortfolio(r.Context(), p.ID); err != nil {
		log.Printf("api: delete portfolio %s: %v", p.ID, err)
		s.writeError(w, http.StatusInternalServerError, "could not delete portfolio")
		return
	}

	// Deleting the default leaves the user without one.
	if u := currentUser(r); u.DefaultPortfolioID == p.ID {
		if err := s.deps.Store.SetDefaultPortfolio(r.Context(), u.ID, ""); err != nil {
			log.Printf("api: clear default portfolio: %v", err)
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// PUT /api/portfolios/{portfolioID}/activate
func (s *Server) handleActivatePortfolio(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	if err := s.deps.Store.SetDefaultPortfolio(r.Context(), currentUser(r).ID, p.ID); err != nil {
		log.Printf("api: activate portfolio %s: %v", p.ID, err)
		s.writeError(w, http.StatusInternalServerError, "could not activate portfolio")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "portfolio_id": p.ID})
}

// GET /api/portfolios/{portfolioID}/symbols
func (s *Server) handleTrackedSymbols(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}
	symbols := p.TrackedSymbols
	if symbols == nil {
		symbols = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

// POST /api/portfolios/{portfolioID}/symbols
func (s *Server) handleAddSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	p, version, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	symbol := strings.ToUpper(req.Symbol)
	tracked := false
	for _, sym := range p.TrackedSymbols {
		if sym == symbol {
			tracked = true
			break
		}
	}
	if !tracked {
		p.TrackedSymbols = append(p.TrackedSymbols, symbol)
		if !s.updatePortfolio(w, r, p, version) {
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolio": p})
}

// DELETE /api/portfolios/{portfolioID}/symbols/{symbol}
func (s *Server) handleRemoveSymbol(w http.ResponseWriter, r *http.Request) {
	p, version, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	kept := p.TrackedSymbols[:0]
	removed := false
	for _, sym := range p.TrackedSymbols {
		if sym == symbol {
			removed = true
			continue
		}
		kept = append(kept, sym)
	}
	if removed {
		p.TrackedSymbols = kept
		if !s.updatePortfolio(w, r, p, version) {
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolio": p})
}

func (s *Server) updatePortfolio(w http.ResponseWriter, r *http.Request, p store.Portfolio, version int64) bool {
	err := s.deps.Store.UpdatePortfolio(r.Context(), p, version)
	switch {
	case err == nil:
		return true
	case errors.Is(err, store.ErrVersionConflict):
		s.writeError(w, http.StatusConflict, "portfolio changed concurrently, retry")
	default:
		log.Printf("api: update portfolio %s: %v", p.ID, err)
		s.writeError(w, http.StatusInternalServerError, "could not update portfolio")
	}
	return false
}

// POST /api/portfolios/{portfolioID}/trades
func (s *Server) handlePortfolioTrade(w http.ResponseWriter, r *http.Request) {
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
	req.Symbol = strings.ToUpper(req.Symbol)

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

	var p store.Portfolio
	for attempt := 0; ; attempt++ {
		var (
			version int64
			ok      bool
		)
		p, version, ok = s.portfolioForRequest(w, r)
		if !ok {
			return
		}

		next, err := ledger.Apply(p.State, req.Symbol, ledger.Side(req.Side), req.Quantity, q.Price, ts)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.State = next

		err = s.deps.Store.UpdatePortfolio(ctx, p, version)
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
		log.Printf("api: save portfolio %s: %v", p.ID, err)
		s.writeError(w, http.StatusInternalServerError, "could not save portfolio")
		return
	}

	if err := s.deps.Journal.Record(journal.Record{
		ID:        id.New(),
		UserID:    p.UserID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     q.Price,
		CashAfter: p.State.Cash,
		Time:      ts,
	}); err != nil {
		log.Printf("api: journal trade: %v", err)
	}

	trade := p.State.History[len(p.State.History)-1]
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trade":     trade,
		"portfolio": p,
	})
}

// GET /api/portfolios/{portfolioID}/trades
func (s *Server) handlePortfolioTrades(w http.ResponseWriter, r *http.Request) {
	p, _, ok := s.portfolioForRequest(w, r)
	if !ok {
		return
	}

	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	limit := defaultTradeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	// Newest first.
	trades := []ledger.Trade{}
	for i := len(p.State.History) - 1; i >= 0 && len(trades) < limit; i-- {
		t := p.State.History[i]
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		trades = append(trades, t)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": trades,
		"count":  len(trades),
	})
}

// POST /api/trade-analysis
func (s *Server) handleTradeAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Idea string `json:"idea"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Idea == "" {
		s.writeError(w, http.StatusBadRequest, "idea is required")
		return
	}

	// Market context is best-effort: an unreachable provider degrades the
	// analysis, it does not fail it.
	var snap *market.Snapshot
	if symbol := agent.DetectSymbol(req.Idea); symbol != "" {
		got, _, err := s.snapshot(r, symbol)
		if err != nil {
			log.Printf("api: trade analysis context %s: %v", symbol, err)
		} else {
			snap = &got
		}
	}

	a, err := s.deps.Coach.Analyze(r.Context(), req.Idea, snap)
	if err != nil {
		if errors.Is(err, agent.ErrUnavailable) {
			s.writeError(w, http.StatusServiceUnavailable, "coach is unavailable, try again later")
			return
		}
		log.Printf("api: trade analysis: %v", err)
		s.writeError(w, http.StatusInternalServerError, "trade analysis failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"analysis": a})
}
