package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/events"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/identity"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/password"
)

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Signup(ctx context.Context, email, plaintext string, name *string) (*models.User, *TokenPair, error)
	Login(ctx context.Context, email, plaintext string) (*models.User, *TokenPair, error)
	LoginWithProvider(ctx context.Context, provider identity.ExternalProvider, code string) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	ValidateAccessToken(accessToken string) (string, error)
}

type authService struct {
	userRepo  repository.UserRepository
	tokens    TokenService
	passwords *identity.PasswordProvider
	publisher events.Publisher
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service instance
func NewAuthService(
	userRepo repository.UserRepository,
	tokens TokenService,
	publisher events.Publisher,
	logger *slog.Logger,
) AuthService {
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &authService{
		userRepo:  userRepo,
		tokens:    tokens,
		passwords: identity.NewPasswordProvider(userRepo, logger),
		publisher: publisher,
		logger:    logger,
	}
}

func (s *authService) Signup(ctx context.Context, email, plaintext string, name *string) (*models.User, *TokenPair, error) {
	email = identity.NormalizeEmail(email)
	s.logger.Info("📝 [AuthService] Signup attempt", "email", email)

	// Check if email already exists
	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.Error("❌ [AuthService] Database error", "error", err)
		return nil, nil, err
	}
	if existingUser != nil {
		s.logger.Warn("⚠️ [AuthService] Email already registered", "email", email)
		return nil, nil, ErrEmailAlreadyExists
	}

	hashed, err := password.Hash(plaintext)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to hash password", "error", err)
		return nil, nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: &hashed,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, nil, ErrEmailAlreadyExists
		}
		s.logger.Error("❌ [AuthService] Failed to create user", "error", err)
		return nil, nil, err
	}

	tokens, err := s.tokens.IssueTokens(ctx, user.ID)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to generate tokens", "error", err)
		return nil, nil, err
	}

	s.logger.Info("✅ [AuthService] User signed up successfully", "user_id", user.ID)
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, email, plaintext string) (*models.User, *TokenPair, error) {
	email = identity.NormalizeEmail(email)
	s.logger.Info("🔐 [AuthService] Login attempt", "email", email)

	user, err := s.passwords.Authenticate(ctx, email, plaintext)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, nil, ErrInvalidCredentials
		}
		s.logger.Error("❌ [AuthService] Database error", "error", err)
		return nil, nil, err
	}

	tokens, err := s.tokens.IssueTokens(ctx, user.ID)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to generate tokens", "error", err)
		return nil, nil, err
	}

	s.logger.Info("✅ [AuthService] User logged in successfully", "user_id", user.ID)
	return user, tokens, nil
}

func (s *authService) LoginWithProvider(ctx context.Context, provider identity.ExternalProvider, code string) (*models.User, *TokenPair, error) {
	s.logger.Info("🌐 [AuthService] External login attempt", "provider", provider.Name())

	user, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	tokens, err := s.tokens.IssueTokens(ctx, user.ID)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to generate tokens", "error", err)
		return nil, nil, err
	}

	s.logger.Info("✅ [AuthService] External login succeeded", "provider", provider.Name(), "user_id", user.ID)
	return user, tokens, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	s.logger.Info("🔄 [AuthService] Token refresh attempt")
	return s.tokens.RotateRefresh(ctx, refreshToken)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	s.logger.Info("👋 [AuthService] Logout attempt")
	return s.tokens.RevokeRefreshToken(ctx, refreshToken)
}

func (s *authService) LogoutAll(ctx context.Context, userID string) error {
	s.logger.Info("👋 [AuthService] Logout everywhere", "user_id", userID)

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	event := events.SecurityEvent{
		Type:       events.TypeLogoutAll,
		UserID:     userID,
		RevokedAll: true,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("❌ [AuthService] Failed to publish logout event", "user_id", userID, "error", err)
	}
	return nil
}

func (s *authService) ValidateAccessToken(accessToken string) (string, error) {
	return s.tokens.VerifyAccess(accessToken)
}

// Service errors
var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = identity.ErrInvalidCredentials
)
