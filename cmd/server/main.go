package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/fengq/loanbook/internal/adapter/http"
	"github.com/fengq/loanbook/internal/adapter/http/handler"
	"github.com/fengq/loanbook/internal/adapter/http/middleware"
	postgresRepo "github.com/fengq/loanbook/internal/adapter/repository/postgres"
	redisRepo "github.com/fengq/loanbook/internal/adapter/repository/redis"
	"github.com/fengq/loanbook/internal/infrastructure/auth"
	"github.com/fengq/loanbook/internal/infrastructure/config"
	"github.com/fengq/loanbook/internal/infrastructure/logger"
	"github.com/fengq/loanbook/internal/infrastructure/metrics"
	"github.com/fengq/loanbook/internal/infrastructure/postgres"
	"github.com/fengq/loanbook/internal/infrastructure/redis"
	"github.com/fengq/loanbook/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Logger = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "loanbook"})

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, path); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	orderRepo := postgresRepo.NewOrderRepository(pool)
	recordRepo := postgresRepo.NewRecordRepository(pool)
	snapshotRepo := postgresRepo.NewSnapshotRepository(pool)
	historyRepo := postgresRepo.NewHistoryRepository(pool)
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	// Initialize use cases
	ledgerUC := usecase.NewLedgerUseCase(txManager, orderRepo, recordRepo, snapshotRepo, historyRepo, idGen, cache)
	undoUC := usecase.NewUndoUseCase(txManager, orderRepo, recordRepo, snapshotRepo, historyRepo, idGen, cache)
	orderUC := usecase.NewOrderUseCase(orderRepo, historyRepo)
	reportUC := usecase.NewReportUseCase(snapshotRepo, recordRepo, cache)
	rebuildUC := usecase.NewRebuildUseCase(txManager, orderRepo, recordRepo, snapshotRepo)

	m := metrics.New()
	go observeDBConnections(ctx, pool, m)

	// The rebuild replays every log in one transaction, so it is the
	// call most likely to hit a serialization failure under load.
	admin := &retryingAdmin{
		inner:   rebuildUC,
		retrier: postgresRepo.NewRetrier(log.Logger),
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	go cleanupRateLimiter(ctx, rateLimiter)

	// Maintenance endpoints stay open when no secret is configured.
	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Logger:           log.Logger,
		OrderHandler:     handler.NewOrderHandler(ledgerUC, orderUC, m),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC, undoUC, m),
		ReportHandler:    handler.NewReportHandler(reportUC),
		AdminHandler:     handler.NewAdminHandler(admin, m),
		HealthHandler:    handler.NewHealthHandler(pool, redisPinger{redisClient}),
		IdempotencyStore: idempotencyStore,
		JWTManager:       jwtManager,
		RateLimiter:      rateLimiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// retryingAdmin retries the maintenance operations on transient
// database failures before giving up.
type retryingAdmin struct {
	inner   handler.AdminService
	retrier *postgresRepo.Retrier
}

func (a *retryingAdmin) Rebuild(ctx context.Context) error {
	return a.retrier.Retry(ctx, func() error {
		return a.inner.Rebuild(ctx)
	})
}

func (a *retryingAdmin) VerifyConsistency(ctx context.Context) (*usecase.ConsistencyReport, error) {
	var report *usecase.ConsistencyReport
	err := a.retrier.Retry(ctx, func() error {
		var err error
		report, err = a.inner.VerifyConsistency(ctx)
		return err
	})
	return report, err
}

func cleanupRateLimiter(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupIdle(time.Hour)
		}
	}
}

// redisPinger adapts the redis client to the health check interface.
type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func observeDBConnections(ctx context.Context, pool *pgxpool.Pool, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(pool.Stat().TotalConns()))
		}
	}
}
