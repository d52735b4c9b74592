// Package api is the HTTP transport. It wires the auth, ledger, quotes,
// metrics and agent packages behind a chi router and owns the mapping from
// domain errors to HTTP status codes.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rustyeddy/tradecoach/agent"
	"github.com/rustyeddy/tradecoach/auth"
	"github.com/rustyeddy/tradecoach/journal"
	"github.com/rustyeddy/tradecoach/quotes"
	"github.com/rustyeddy/tradecoach/store"
)

// Deps carries everything the handlers need. All fields are required except
// Journal, which defaults to a no-op.
type Deps struct {
	Store       store.Store
	Auth        *auth.Service
	Quotes      quotes.Source
	Coach       *agent.Service
	Journal     journal.Journal
	InitialCash float64
	Version     string
}

// Server is the HTTP API for the paper trading coach.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	deps       Deps
	startedAt  time.Time
}

// NewServer creates an API server bound to addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}

	s := &Server{
		deps:      deps,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/auth/me", s.handleMe)
			r.Post("/init", s.handleInit)
			r.Post("/paper_trade", s.handlePaperTrade)
			r.Get("/portfolio/{userID}", s.handlePortfolio)
			r.Get("/market/{symbol}", s.handleMarket)
			r.Post("/coach", s.handleCoach)
			r.Post("/critique", s.handleCritique)
			r.Post("/plan", s.handlePlan)
			r.Post("/trade-analysis", s.handleTradeAnalysis)

			r.Route("/portfolios", func(r chi.Router) {
				r.Get("/", s.handlePortfolios)
				r.Post("/", s.handleCreatePortfolio)
				r.Route("/{portfolioID}", func(r chi.Router) {
					r.Get("/", s.handlePortfolioDetail)
					r.Delete("/", s.handleDeletePortfolio)
					r.Put("/activate", s.handleActivatePortfolio)
					r.Get("/symbols", s.handleTrackedSymbols)
					r.Post("/symbols", s.handleAddSymbol)
					r.Delete("/symbols/{symbol}", s.handleRemoveSymbol)
					r.Get("/trades", s.handlePortfolioTrades)
					r.Post("/trades", s.handlePortfolioTrade)
				})
			})
		})
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	log.Printf("api server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type ctxKey int

const userKey ctxKey = 0

// requireAuth resolves the Bearer token to a user and stores it on the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		u, err := s.deps.Auth.UserFromToken(r.Context(), token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) store.User {
	u, _ := r.Context().Value(userKey).(store.User)
	return u
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
