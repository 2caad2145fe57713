package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
)

// RefreshTokenRepository is the persistence contract of the rotation engine.
// Every conditional update must be atomic for a single record.
type RefreshTokenRepository interface {
	// Insert persists a new record; ErrConflict when the id or hash exists.
	Insert(ctx context.Context, token *models.RefreshToken) error
	// FindByHash returns the record for a token hash or ErrTokenNotFound.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// MarkRevoked sets revoked=true. Idempotent.
	MarkRevoked(ctx context.Context, id string) error
	// ClaimForRotation flips revoked false->true only while the record is
	// unrotated and unexpired at now; ErrTokenNotActive otherwise.
	ClaimForRotation(ctx context.Context, id string, now time.Time) error
	// MarkRotated records the successor once; ErrAlreadyRotated afterwards.
	MarkRotated(ctx context.Context, id, successorID string) error
	// RevokeAllForUser revokes every non-revoked record of the user.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	// DeleteExpiredBefore removes records with expires_at < before.
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository instance
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Insert(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *refreshTokenRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&refreshToken).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &refreshToken, nil
}

func (r *refreshTokenRepository) MarkRevoked(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Update("revoked", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *refreshTokenRepository) ClaimForRotation(ctx context.Context, id string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ? AND rotated_to IS NULL AND expires_at > ?", id, false, now).
		Update("revoked", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotActive
	}
	return nil
}

func (r *refreshTokenRepository) MarkRotated(ctx context.Context, id, successorID string) error {
	result := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND rotated_to IS NULL", id).
		Updates(map[string]interface{}{
			"rotated_to": successorID,
			"revoked":    true,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyRotated
	}
	return nil
}

func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	return result.RowsAffected, result.Error
}

func (r *refreshTokenRepository) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}

// isUniqueConstraintError recognises duplicate key failures from both the
// translated gorm error and raw driver messages.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "UNIQUE constraint failed")
}

// Repository errors
var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrTokenNotActive = errors.New("token is no longer active")
	ErrAlreadyRotated = errors.New("token already rotated")
	ErrConflict       = errors.New("token id or hash already exists")
)
