package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleOption customises a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoint points the provider at alternative OAuth and userinfo URLs.
func WithGoogleEndpoint(endpoint oauth2.Endpoint, userInfoURL string) GoogleOption {
	return func(p *GoogleProvider) {
		p.oauth.Endpoint = endpoint
		p.userInfoURL = userInfoURL
	}
}

// GoogleProvider signs users in with Google OpenID Connect.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	users       repository.UserRepository
	logger      *slog.Logger
}

func NewGoogleProvider(cfg *config.Config, users repository.UserRepository, logger *slog.Logger, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleCallbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
		users:       users,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) Name() string  { return "google" }
func (p *GoogleProvider) Enabled() bool { return true }

func (p *GoogleProvider) AuthCodeURL(state string) (string, error) {
	return p.oauth.AuthCodeURL(state), nil
}

// Exchange trades code for a Google profile and returns the matching local
// user, creating one on first sign-in.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*models.User, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		p.logger.Warn("⚠️ [Identity] Google code exchange failed", "error", err)
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := p.fetchUserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}
	if info.Email == "" || !info.EmailVerified {
		return nil, ErrMissingEmail
	}
	info.Email = NormalizeEmail(info.Email)

	user, err := p.users.FindByEmail(ctx, info.Email)
	switch {
	case err == nil:
		if user.GoogleID == nil {
			user.GoogleID = &info.Sub
			if err := p.users.Update(ctx, user); err != nil {
				return nil, err
			}
			p.logger.Info("🔗 [Identity] Linked Google account", "user_id", user.ID)
		}
		return user, nil
	case errors.Is(err, repository.ErrUserNotFound):
	default:
		return nil, err
	}

	user = &models.User{
		Email:    info.Email,
		GoogleID: &info.Sub,
	}
	if info.Name != "" {
		user.Name = &info.Name
	}
	if err := p.users.Create(ctx, user); err != nil {
		p.logger.Error("❌ [Identity] Failed to create Google user", "email", info.Email, "error", err)
		return nil, err
	}

	p.logger.Info("✅ [Identity] Created user from Google profile", "user_id", user.ID)
	return user, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}
