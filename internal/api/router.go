package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/prediction-backend/internal/api/handlers"
	"github.com/baharkarakas/prediction-backend/internal/auth"
	"github.com/baharkarakas/prediction-backend/internal/cache"
	"github.com/baharkarakas/prediction-backend/internal/config"
	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/middleware"
	repo "github.com/baharkarakas/prediction-backend/internal/repository"
	"github.com/baharkarakas/prediction-backend/internal/services"
)

type RouterDeps struct {
	Cfg         config.Config
	TM          *auth.TokenManager
	Store       repo.Store
	Balances    *services.BalanceService
	Commitments *services.CommitmentService
	Resolutions *services.ResolutionService
	MarketCache *cache.MarketCache // nil when Redis is not configured
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	authHandler := handlers.NewAuthHandler(d.TM, d.Store.Users())
	tokens := handlers.NewTokensHandler(d.Balances, d.Commitments)
	markets := handlers.NewMarketsHandler(d.Store, d.Commitments, d.MarketCache)
	admin := handlers.NewAdminHandler(d.Resolutions)
	authMW := middleware.NewAuthMiddleware(d.TM)

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/login", authHandler.Login)

		// ---------- tokens & commitments ----------
		r.Post("/tokens/purchase", tokens.Purchase)
		r.Post("/tokens/commit", tokens.Commit)
		r.Get("/tokens/balance", tokens.Balance)
		r.Get("/tokens/transactions", tokens.Transactions)
		r.Get("/commitments", tokens.UserCommitments)

		// ---------- markets ----------
		r.Get("/markets/{id}", markets.Get)
		r.Get("/markets/{id}/commitments", markets.Commitments)

		// ---------- admin ----------
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMW.Auth, middleware.RequireAdmin)
			r.Post("/markets/{id}/resolve", admin.Resolve)
			r.Post("/markets/{id}/cancel", admin.Cancel)
			r.Post("/markets/{id}/resolution/rollback", admin.RollbackResolution)
			r.Get("/markets/{id}/payout-preview", admin.PayoutPreview)
		})
	})

	return r
}
