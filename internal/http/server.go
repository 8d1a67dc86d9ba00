package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"expensed/internal/auth"
	"expensed/internal/middleware/authn"
	"expensed/internal/middleware/ratelimit"
	"expensed/internal/middleware/security"
	"expensed/internal/middleware/trace"
	"expensed/internal/services"
	"expensed/internal/storage"

	"github.com/go-chi/chi/v5"
)

// Server exposes the expense API over HTTP.
type Server struct {
	expenses *services.ExpenseService
	users    *services.UserService
	storage  *storage.SQLiteRepository
	limiter  *ratelimit.Limiter
	server   *http.Server
}

// Options carries the wiring the server needs beyond its services.
type Options struct {
	Port              string
	TokenIssuer       *auth.TokenIssuer
	RequestsPerMinute int
}

func NewServer(expenses *services.ExpenseService, users *services.UserService, repo *storage.SQLiteRepository, opts Options) *Server {
	s := &Server{
		expenses: expenses,
		users:    users,
		storage:  repo,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
		}),
	}

	s.server = &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      s.routes(opts.TokenIssuer),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(issuer *auth.TokenIssuer) http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(nil)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r.Use(tracer.Handler)
	r.Use(headers.Handler)
	r.Use(s.limiter.Handler)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(authn.Middleware(issuer))
				r.Get("/me", s.handleMe)
			})
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Use(authn.Middleware(issuer))

			r.Get("/", s.handleListExpenses)
			r.Post("/", s.handleCreateExpense)
			r.Get("/analytics/summary", s.handleSummary)
			r.Get("/{id}", s.handleGetExpense)
			r.Put("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz additionally checks that the store answers.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.storage.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Shutdown()
	return s.server.Shutdown(ctx)
}
