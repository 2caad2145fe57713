package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes access tokens from refresh tokens inside the claims.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Signer errors
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// Claims is the payload carried by both token kinds.
type Claims struct {
	Kind Kind `json:"type"`
	jwt.RegisteredClaims
}

// Config holds the secrets and lifetimes used by the Signer.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Signer issues and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Signer struct {
	cfg Config
	now func() time.Time
}

// NewSigner validates cfg and returns a Signer that reads time from now.
// A nil now falls back to time.Now.
func NewSigner(cfg Config, now func() time.Time) (*Signer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("signing secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{cfg: cfg, now: now}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *Signer) AccessTTL() time.Duration {
	return s.cfg.AccessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (s *Signer) RefreshTTL() time.Duration {
	return s.cfg.RefreshTTL
}

// SignAccess returns a short-lived access token for userID.
func (s *Signer) SignAccess(userID string) (string, error) {
	return s.sign(userID, "", KindAccess, s.cfg.AccessSecret, s.cfg.AccessTTL)
}

// SignRefresh returns a refresh token for userID carrying tokenID as its jti.
func (s *Signer) SignRefresh(userID, tokenID string) (string, error) {
	return s.sign(userID, tokenID, KindRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL)
}

// VerifyAccess checks signature, expiry and kind of an access token.
func (s *Signer) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, KindAccess, s.cfg.AccessSecret)
}

// VerifyRefresh checks signature, expiry and kind of a refresh token.
func (s *Signer) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verify(tokenString, KindRefresh, s.cfg.RefreshSecret)
}

func (s *Signer) sign(userID, tokenID string, kind Kind, secret []byte, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("subject is required")
	}

	now := s.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *Signer) verify(tokenString string, kind Kind, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if claims.Kind != kind || claims.Subject == "" {
		return nil, fmt.Errorf("%w: unexpected token kind %q", ErrInvalidSignature, claims.Kind)
	}
	return claims, nil
}
