package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher derives the lookup key stored for a raw refresh token.
// With an empty key it is plain SHA-256; otherwise HMAC-SHA256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed by key, which may be empty.
func NewHasher(key []byte) *Hasher {
	return &Hasher{key: key}
}

// Hash returns the lowercase hex digest of raw.
func (h *Hasher) Hash(raw string) string {
	if len(h.key) == 0 {
		sum := sha256.Sum256([]byte(raw))
		return hex.EncodeToString(sum[:])
	}

	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
