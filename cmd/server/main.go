package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/api"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/service"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/events"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/handler"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/identity"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/logger"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/middleware"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/telemetry"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	appLogger := logger.New(cfg)

	appLogger.Info("🚀 [Go] Starting auth service...",
		"environment", cfg.AppEnv,
		"token_store", cfg.TokenStore,
	)

	// 3. Connect to Database
	if err := database.ConnectDatabase(cfg, appLogger); err != nil {
		appLogger.Error("❌ Failed to connect to database", "error", err)
		os.Exit(1)
	}

	db := database.GetDatabase()

	// 4. Initialize Redis Client
	redisClient, err := database.NewRedisClient(cfg, appLogger)
	if err != nil {
		if cfg.TokenStore == config.StoreRedis {
			appLogger.Error("❌ Redis is required for the configured token store", "error", err)
			os.Exit(1)
		}
		appLogger.Warn("⚠️ Failed to connect to Redis", "error", err)
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	// 5. Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := selectTokenStore(cfg, db, redisClient, appLogger)

	// 6. Security events and metrics
	publisher := selectPublisher(cfg, appLogger)
	defer publisher.Close()

	shutdownMetrics, err := telemetry.Setup(context.Background(), cfg)
	if err != nil {
		appLogger.Error("❌ Failed to set up metrics export", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(ctx); err != nil {
			appLogger.Error("❌ Failed to flush metrics", "error", err)
		}
	}()
	if cfg.MetricsEnabled && cfg.MetricsEndpoint != "" {
		appLogger.Info("📈 [Go] Exporting metrics over OTLP", "endpoint", cfg.MetricsEndpoint)
	}

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		appLogger.Error("❌ Failed to register metrics", "error", err)
		os.Exit(1)
	}

	// 7. Initialize Services
	signer, err := token.NewSigner(token.Config{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	}, nil)
	if err != nil {
		appLogger.Error("❌ Failed to create token signer", "error", err)
		os.Exit(1)
	}

	tokenService := service.NewTokenService(
		refreshTokenRepo,
		signer,
		token.NewHasher([]byte(cfg.TokenHashKey)),
		service.TokenServiceConfig{RevokeAllOnReuse: cfg.RevokeAllOnReuse},
		appLogger,
		service.WithMetrics(metrics),
		service.WithPublisher(publisher),
	)
	authService := service.NewAuthService(userRepo, tokenService, publisher, appLogger)
	external := identity.SelectExternal(cfg, userRepo, appLogger)

	// 8. Background cleanup
	pool := worker.NewPool(appLogger)
	pool.SubmitWithTimeout(30*time.Second, func(ctx context.Context) {
		if _, err := tokenService.CleanupExpiredRefreshTokens(ctx); err != nil {
			appLogger.Warn("⚠️ [Go] Startup cleanup failed", "error", err)
		}
	})
	pool.Every("refresh-token-cleanup", cfg.CleanupInterval, func(ctx context.Context) error {
		_, err := tokenService.CleanupExpiredRefreshTokens(ctx)
		return err
	})

	// 9. Initialize Handlers & Middleware
	authHandler := handler.NewAuthHandler(authService, external, cfg.IsProduction(), appLogger)
	authMiddleware := middleware.NewAuthMiddleware(authService, appLogger)

	var rateLimiter middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute, appLogger)
	} else {
		rateLimiter = middleware.NewNoOpRateLimiter(appLogger)
	}

	r := api.SetupRouter(cfg, authHandler, authMiddleware, rateLimiter, appLogger)

	// 10. Start HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ApiServicePort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("🌍 [Go] HTTP Server running on port...", "port", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("❌ HTTP Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	appLogger.Info("🛑 [Go] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("❌ HTTP Server shutdown failed", "error", err)
	}

	pool.Shutdown(shutdownTimeout)
}

func selectTokenStore(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *slog.Logger) repository.RefreshTokenRepository {
	if cfg.TokenStore == config.StoreRedis {
		logger.Info("💾 [Go] Refresh tokens stored in Redis")
		return database.NewRedisTokenStore(redisClient, logger)
	}
	logger.Info("💾 [Go] Refresh tokens stored in PostgreSQL")
	return repository.NewRefreshTokenRepository(db)
}

func selectPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("📣 [Go] No Kafka brokers configured, security events go to the log")
		return events.NewLogPublisher(logger)
	}
	logger.Info("📣 [Go] Publishing security events to Kafka",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.SecurityEventsTopic,
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.SecurityEventsTopic, logger)
}
