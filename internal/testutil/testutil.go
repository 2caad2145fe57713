package testutil

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
)

const (
	AccessSecret  = "access-secret-for-tests-0001"
	RefreshSecret = "refresh-secret-for-tests-0002"
)

// TestLogger discards everything below error level
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestConfig returns a valid configuration for tests
func TestConfig() *config.Config {
	return &config.Config{
		AppEnv:             "test",
		LogLevel:           slog.LevelError,
		TokenStore:         config.StorePostgres,
		JWTAccessSecret:    AccessSecret,
		JWTRefreshSecret:   RefreshSecret,
		JWTAccessTTL:       "15m",
		JWTRefreshTTL:      "7d",
		CleanupInterval:    time.Hour,
		RateLimitPerMinute: 100,
		GoogleCallbackURL:  "http://localhost:8080/api/v1/auth/google/callback",
	}
}

// SetupTestDB creates a new in-memory SQLite database with the schema applied
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupMiniRedis starts an in-process Redis server and a client for it
func SetupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at now, truncated to whole seconds in UTC
func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC().Truncate(time.Second)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewSigner builds a signer from TestConfig reading time from clock
func NewSigner(t *testing.T, clock *Clock) *token.Signer {
	t.Helper()

	cfg := TestConfig()
	signer, err := token.NewSigner(token.Config{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL(),
		RefreshTTL:    cfg.RefreshTokenTTL(),
	}, clock.Now)
	require.NoError(t, err)
	return signer
}
