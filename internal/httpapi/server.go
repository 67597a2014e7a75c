// Package httpapi wires the HTTP surface of the wallet service.
// It keeps handlers thin, delegating ledger rules to the service layer.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/service/backup"
	"fintrack/internal/service/dashboard"
	"fintrack/internal/service/wallet"
)

// Store is the storage surface the API needs: the wallet repository and
// transaction beginner, the dashboard reads and the system-wide backup
// surface. Both the memory and postgres stores satisfy it.
type Store interface {
	wallet.Repo
	wallet.TxBeginner
	dashboard.Repo
	backup.Store
}

// Server wires handlers and middleware using Chi.
type Server struct {
	walletSvc wallet.Service
	dashSvc   dashboard.Service
	backupSvc backup.Service
	store     Store
	log       *slog.Logger
	rt        *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(store Store, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		walletSvc: wallet.New(store, store),
		dashSvc:   dashboard.New(store),
		backupSvc: backup.New(store),
		store:     store,
		log:       logger,
		rt:        r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Balances (v1)
	s.rt.Get("/v1/balances", s.getBalances)
	// Transactions (v1)
	s.rt.Post("/v1/transactions", s.postTransaction)
	s.rt.Get("/v1/transactions", s.listTransactions)
	s.rt.Patch("/v1/transactions/{id}", s.patchTransaction)
	s.rt.Delete("/v1/transactions/{id}", s.deleteTransaction)
	// Exchanges (v1)
	s.rt.Post("/v1/exchanges", s.postExchange)
	s.rt.Get("/v1/exchanges", s.listExchanges)
	s.rt.Patch("/v1/exchanges/{id}", s.patchExchange)
	s.rt.Delete("/v1/exchanges/{id}", s.deleteExchange)
	// Dashboard (v1)
	s.rt.Get("/v1/dashboard", s.getDashboard)
	// Admin (v1)
	s.rt.Get("/v1/admin/backup", s.getBackup)
	s.rt.Post("/v1/admin/restore", s.postRestore)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
