package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fengq/loanbook/internal/adapter/http/handler"
	"github.com/fengq/loanbook/internal/adapter/http/middleware"
	"github.com/fengq/loanbook/internal/infrastructure/auth"
	"github.com/fengq/loanbook/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Logger           zerolog.Logger
	OrderHandler     *handler.OrderHandler
	LedgerHandler    *handler.LedgerHandler
	ReportHandler    *handler.ReportHandler
	AdminHandler     *handler.AdminHandler
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	JWTManager       *auth.JWTManager
	RateLimiter      *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.OrderHandler.Create)
			r.Get("/", cfg.OrderHandler.List)
			r.Get("/{id}", cfg.OrderHandler.Get)
			r.Post("/{id}/interest", cfg.LedgerHandler.Interest)
			r.Post("/{id}/principal", cfg.LedgerHandler.ReducePrincipal)
			r.Post("/{id}/settlement", cfg.LedgerHandler.Settlement)
			r.Post("/{id}/state", cfg.LedgerHandler.ChangeState)
			r.Post("/{id}/complete", cfg.LedgerHandler.Complete)
			r.Post("/{id}/breach-end", cfg.LedgerHandler.CompleteBreach)
		})

		// Chats
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/order", cfg.OrderHandler.Active)
			r.Get("/history", cfg.OrderHandler.History)
			r.Post("/undo", cfg.LedgerHandler.Undo)
		})

		// Expenses
		r.Post("/expenses", cfg.LedgerHandler.Expense)
		r.Get("/expenses", cfg.ReportHandler.Expenses)

		// Reports; the raw income log needs the admin token when auth
		// is configured, the aggregates do not.
		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", cfg.ReportHandler.Summary)
			r.Get("/surplus", cfg.ReportHandler.Surplus)
			r.Get("/daily", cfg.ReportHandler.Daily)
			r.Get("/groups", cfg.ReportHandler.Groups)
			r.Group(func(r chi.Router) {
				if cfg.JWTManager != nil {
					r.Use(middleware.Auth(cfg.JWTManager))
					r.Use(middleware.RequireAdmin)
				}
				r.Get("/income", cfg.ReportHandler.Income)
			})
		})

		// Maintenance, admin token required when auth is configured
		r.Route("/admin", func(r chi.Router) {
			if cfg.JWTManager != nil {
				r.Use(middleware.Auth(cfg.JWTManager))
				r.Use(middleware.RequireAdmin)
			}
			r.Post("/rebuild", cfg.AdminHandler.Rebuild)
			r.Get("/consistency", cfg.AdminHandler.Consistency)
		})
	})

	return r
}
