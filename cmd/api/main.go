package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/prediction-backend/internal/api"
	"github.com/baharkarakas/prediction-backend/internal/auth"
	"github.com/baharkarakas/prediction-backend/internal/cache"
	"github.com/baharkarakas/prediction-backend/internal/config"
	"github.com/baharkarakas/prediction-backend/internal/db"
	"github.com/baharkarakas/prediction-backend/internal/logger"
	"github.com/baharkarakas/prediction-backend/internal/metrics"
	"github.com/baharkarakas/prediction-backend/internal/repository/postgres"
	"github.com/baharkarakas/prediction-backend/internal/services"
	"github.com/baharkarakas/prediction-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	store := postgres.NewStore(pool)
	wp := worker.NewPool(4)
	defer wp.Stop()

	balanceSvc := services.NewBalanceService(store)
	rollbackSvc := services.NewRollbackService(store, balanceSvc, wp)
	commitmentSvc := services.NewCommitmentService(store, balanceSvc, rollbackSvc)
	resolutionSvc := services.NewResolutionService(store, balanceSvc, rollbackSvc, services.StoreAdminChecker{Store: store})

	tm := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, 15*time.Minute)

	var marketCache *cache.MarketCache
	if cfg.RedisAddr != "" {
		marketCache = cache.NewMarketCache(cfg.RedisAddr)
	}

	metrics.Init()
	r := api.NewRouter(api.RouterDeps{
		Cfg:         cfg,
		TM:          tm,
		Store:       store,
		Balances:    balanceSvc,
		Commitments: commitmentSvc,
		Resolutions: resolutionSvc,
		MarketCache: marketCache,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
