package models

import (
	"time"
)

// RefreshToken is the persisted record of an issued refresh token.
// Only the hash of the raw token is stored.
type RefreshToken struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false;index" json:"revoked"`
	RotatedTo *string   `gorm:"type:uuid" json:"rotated_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// IsExpired reports whether the record is past its expiry at now.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// IsRotated reports whether the record was consumed by a rotation.
func (t *RefreshToken) IsRotated() bool {
	return t.RotatedTo != nil && *t.RotatedTo != ""
}

// IsActive reports whether the record can still be exchanged.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Revoked && !t.IsRotated() && !t.IsExpired(now)
}
