package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/events"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/telemetry"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/token"
)

// TokenService issues, rotates and revokes credential pairs
type TokenService interface {
	IssueTokens(ctx context.Context, userID string) (*TokenPair, error)
	RotateRefresh(ctx context.Context, rawRefresh string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, rawRefresh string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	VerifyAccess(accessToken string) (string, error)
	CleanupExpiredRefreshTokens(ctx context.Context) (int64, error)
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// TokenID is the id of the refresh token record (its jti)
	TokenID   string
	ExpiresIn int64
}

// TokenServiceConfig holds rotation policy knobs.
type TokenServiceConfig struct {
	// RevokeAllOnReuse revokes every token of the user when a rotated
	// token is presented again.
	RevokeAllOnReuse bool
}

// TokenServiceOption customises a token service.
type TokenServiceOption func(*tokenService)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *tokenService) {
		s.now = now
	}
}

// WithMetrics records lifecycle transitions on m.
func WithMetrics(m *telemetry.Metrics) TokenServiceOption {
	return func(s *tokenService) {
		s.metrics = m
	}
}

// WithPublisher sends security events to p.
func WithPublisher(p events.Publisher) TokenServiceOption {
	return func(s *tokenService) {
		s.publisher = p
	}
}

type tokenService struct {
	repo      repository.RefreshTokenRepository
	signer    *token.Signer
	hasher    *token.Hasher
	cfg       TokenServiceConfig
	logger    *slog.Logger
	now       func() time.Time
	metrics   *telemetry.Metrics
	publisher events.Publisher
}

// NewTokenService creates a new token service instance
func NewTokenService(
	repo repository.RefreshTokenRepository,
	signer *token.Signer,
	hasher *token.Hasher,
	cfg TokenServiceConfig,
	logger *slog.Logger,
	opts ...TokenServiceOption,
) TokenService {
	s := &tokenService{
		repo:   repo,
		signer: signer,
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(logger)
	}
	return s
}

func (s *tokenService) IssueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	accessToken, err := s.signer.SignAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	tokenID := uuid.NewString()
	refreshToken, err := s.signer.SignRefresh(userID, tokenID)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	now := s.now().UTC()
	record := &models.RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		TokenHash: s.hasher.Hash(refreshToken),
		ExpiresAt: now.Add(s.signer.RefreshTTL()),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		s.logger.Error("❌ [TokenService] Failed to store refresh token", "user_id", userID, "error", err)
		return nil, err
	}

	s.metrics.TokenIssued(ctx)
	s.logger.Debug("🎟️ [TokenService] Issued token pair", "user_id", userID, "token_id", tokenID)

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenID:      tokenID,
		ExpiresIn:    int64(s.signer.AccessTTL().Seconds()),
	}, nil
}

func (s *tokenService) RotateRefresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if _, err := s.signer.VerifyRefresh(rawRefresh); err != nil {
		s.logger.Warn("⚠️ [TokenService] Refresh token failed verification", "error", err)
		return nil, ErrInvalidToken
	}

	record, err := s.repo.FindByHash(ctx, s.hasher.Hash(rawRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Warn("⚠️ [TokenService] Refresh token not on record")
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	now := s.now().UTC()

	if record.IsExpired(now) {
		s.logger.Warn("⚠️ [TokenService] Refresh token expired", "token_id", record.ID)
		return nil, ErrInvalidToken
	}

	if record.IsRotated() {
		return nil, s.handleReuse(ctx, record, now)
	}

	if record.Revoked {
		s.logger.Warn("⚠️ [TokenService] Refresh token revoked", "token_id", record.ID)
		return nil, ErrInvalidToken
	}

	if err := s.repo.ClaimForRotation(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrTokenNotActive) || errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Warn("⚠️ [TokenService] Lost rotation race", "token_id", record.ID)
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	tokens, err := s.IssueTokens(ctx, record.UserID)
	if err != nil {
		s.logger.Error("❌ [TokenService] Failed to issue successor tokens", "token_id", record.ID, "error", err)
		return nil, err
	}

	// The old record is already claimed; a missing successor link only
	// weakens reuse detection for it.
	if err := s.repo.MarkRotated(ctx, record.ID, tokens.TokenID); err != nil {
		s.logger.Error("❌ [TokenService] Failed to link successor token",
			"token_id", record.ID,
			"successor_id", tokens.TokenID,
			"error", err,
		)
	}

	s.metrics.TokenRotated(ctx)
	s.logger.Info("🔄 [TokenService] Refresh token rotated",
		"user_id", record.UserID,
		"token_id", record.ID,
		"successor_id", tokens.TokenID,
	)
	return tokens, nil
}

// handleReuse reacts to a rotated token being presented again.
func (s *tokenService) handleReuse(ctx context.Context, record *models.RefreshToken, now time.Time) error {
	s.logger.Warn("🚨 [TokenService] Refresh token reuse detected",
		"user_id", record.UserID,
		"token_id", record.ID,
		"rotated_to", *record.RotatedTo,
	)

	if err := s.repo.MarkRevoked(ctx, record.ID); err != nil {
		s.logger.Error("❌ [TokenService] Failed to revoke reused token", "token_id", record.ID, "error", err)
	}

	if s.cfg.RevokeAllOnReuse {
		count, err := s.repo.RevokeAllForUser(ctx, record.UserID)
		if err != nil {
			s.logger.Error("❌ [TokenService] Failed to revoke token family", "user_id", record.UserID, "error", err)
		} else {
			s.metrics.TokensRevoked(ctx, "all", count)
		}
	}

	s.metrics.ReuseDetected(ctx)
	event := events.SecurityEvent{
		Type:       events.TypeRefreshTokenReuse,
		UserID:     record.UserID,
		TokenID:    record.ID,
		RevokedAll: s.cfg.RevokeAllOnReuse,
		OccurredAt: now,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("❌ [TokenService] Failed to publish reuse event", "token_id", record.ID, "error", err)
	}

	return ErrReuseDetected
}

func (s *tokenService) RevokeRefreshToken(ctx context.Context, rawRefresh string) error {
	record, err := s.repo.FindByHash(ctx, s.hasher.Hash(rawRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			s.logger.Warn("⚠️ [TokenService] Token not found for revocation")
		}
		return err
	}

	if err := s.repo.MarkRevoked(ctx, record.ID); err != nil {
		return err
	}

	s.metrics.TokensRevoked(ctx, "single", 1)
	s.logger.Info("👋 [TokenService] Refresh token revoked", "user_id", record.UserID, "token_id", record.ID)
	return nil
}

func (s *tokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	count, err := s.repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("❌ [TokenService] Failed to revoke user tokens", "user_id", userID, "error", err)
		return err
	}

	s.metrics.TokensRevoked(ctx, "all", count)
	s.logger.Info("👋 [TokenService] Revoked all refresh tokens", "user_id", userID, "count", count)
	return nil
}

func (s *tokenService) VerifyAccess(accessToken string) (string, error) {
	claims, err := s.signer.VerifyAccess(accessToken)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (s *tokenService) CleanupExpiredRefreshTokens(ctx context.Context) (int64, error) {
	removed, err := s.repo.DeleteExpiredBefore(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("❌ [TokenService] Cleanup failed", "error", err)
		return 0, err
	}

	s.metrics.TokensSwept(ctx, removed)
	if removed > 0 {
		s.logger.Info("🧹 [TokenService] Removed expired refresh tokens", "count", removed)
	}
	return removed, nil
}

// Token errors
var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrReuseDetected = errors.New("refresh token reuse detected")
)
