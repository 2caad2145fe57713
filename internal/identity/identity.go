package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
)

// ExternalProvider turns a third-party authorization code into a local user.
type ExternalProvider interface {
	Name() string
	Enabled() bool
	AuthCodeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*models.User, error)
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SelectExternal picks the external provider once at startup.
func SelectExternal(cfg *config.Config, users repository.UserRepository, logger *slog.Logger) ExternalProvider {
	if !cfg.GoogleOAuthEnabled() {
		logger.Warn("⚠️ [Identity] Google OAuth disabled",
			"client_id_set", cfg.GoogleClientID != "",
			"client_secret_set", cfg.GoogleClientSecret != "",
			"disabled_flag", cfg.GoogleOAuthDisabled,
		)
		return NewDisabledProvider()
	}

	logger.Info("✅ [Identity] Google OAuth enabled", "callback_url", cfg.GoogleCallbackURL)
	return NewGoogleProvider(cfg, users, logger)
}

// NewState returns an opaque value for the OAuth state parameter.
func NewState() string {
	return uuid.NewString()
}

// CheckState compares the state echoed by the provider with the one issued.
func CheckState(expected, got string) error {
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// DisabledProvider rejects every external login.
type DisabledProvider struct{}

func NewDisabledProvider() *DisabledProvider {
	return &DisabledProvider{}
}

func (DisabledProvider) Name() string  { return "disabled" }
func (DisabledProvider) Enabled() bool { return false }

func (DisabledProvider) AuthCodeURL(state string) (string, error) {
	return "", ErrProviderDisabled
}

func (DisabledProvider) Exchange(ctx context.Context, code string) (*models.User, error) {
	return nil, ErrProviderDisabled
}

// Identity errors
var (
	ErrProviderDisabled   = errors.New("identity provider is not configured")
	ErrStateMismatch      = errors.New("oauth state mismatch")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingEmail       = errors.New("identity provider returned no verified email")
)
