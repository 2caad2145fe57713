package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Token store drivers
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// MinSecretLength is the shortest signing secret accepted at startup.
const MinSecretLength = 16

type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	LogLevelName   string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogLevel       slog.Level
	ApiServicePort string   `env:"API_SERVICE_PORT" envDefault:"8080"`
	CORSOrigins    []string `env:"CORS_ORIGIN" envSeparator:","`

	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"db"`
	PostgreSQLPort     int64  `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"shopmetrics_user"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"shopmetrics_password"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"shopmetrics_db"`

	RedisHost     string `env:"REDIS_HOST" envDefault:"redis"`
	RedisPort     int64  `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int64  `env:"REDIS_DATABASE" envDefault:"0"`

	TokenStore         string        `env:"TOKEN_STORE" envDefault:"postgres"`
	JWTAccessSecret    string        `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret   string        `env:"JWT_REFRESH_SECRET"`
	JWTAccessTTL       string        `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	JWTRefreshTTL      string        `env:"JWT_REFRESH_TTL" envDefault:"7d"`
	TokenHashKey       string        `env:"TOKEN_HASH_KEY"`
	RevokeAllOnReuse   bool          `env:"REVOKE_ALL_ON_REUSE" envDefault:"false"`
	CleanupInterval    time.Duration `env:"TOKEN_CLEANUP_INTERVAL" envDefault:"1h"`
	RateLimitPerMinute int64         `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`

	GoogleClientID      string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL   string `env:"GOOGLE_CALLBACK_URL" envDefault:"http://localhost:8080/api/v1/auth/google/callback"`
	GoogleOAuthDisabled bool   `env:"GOOGLE_OAUTH_DISABLED" envDefault:"false"`

	KafkaBrokers        []string `env:"KAFKA_BROKERS" envSeparator:","`
	SecurityEventsTopic string   `env:"SECURITY_EVENTS_TOPIC" envDefault:"auth.security-events"`

	// Metrics export is opt-in: an empty endpoint keeps the no-op provider.
	MetricsEndpoint string        `env:"OTEL_METRICS_ENDPOINT"`
	MetricsEnabled  bool          `env:"OTEL_METRICS_ENABLED" envDefault:"true"`
	MetricsInterval time.Duration `env:"OTEL_METRICS_INTERVAL" envDefault:"30s"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the deployment contract for secrets and token lifetimes.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTAccessSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_SECRET must be at least %d characters", MinSecretLength))
	}
	if len(c.JWTRefreshSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d characters", MinSecretLength))
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if ParseTTL(c.JWTAccessTTL) <= 0 {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TTL %q is not a valid duration", c.JWTAccessTTL))
	}
	if ParseTTL(c.JWTRefreshTTL) <= 0 {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_TTL %q is not a valid duration", c.JWTRefreshTTL))
	}
	switch c.TokenStore {
	case StorePostgres, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE %q is not supported", c.TokenStore))
	}
	for _, origin := range c.CORSOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("CORS_ORIGIN %q must start with http:// or https://", origin))
		}
	}

	return errors.Join(errs...)
}

// AccessTokenTTL returns the parsed access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return ParseTTL(c.JWTAccessTTL)
}

// RefreshTokenTTL returns the parsed refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return ParseTTL(c.JWTRefreshTTL)
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.AppEnv) == "production"
}

// GoogleOAuthEnabled reports whether the Google identity provider can be used.
func (c *Config) GoogleOAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && !c.GoogleOAuthDisabled
}

// PostgresDSN builds the connection string shared by gorm and the migrate tool.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		c.PostgreSQLHost,
		c.PostgreSQLUser,
		c.PostgreSQLPassword,
		c.PostgreSQLDatabase,
		c.PostgreSQLPort,
	)
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
