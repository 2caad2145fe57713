package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/config"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/shopmetrics/backend-go/internal/database/repository"
)

// Key layout:
//
//	{refresh}:token:<id>   hash with the record fields
//	{refresh}:hash:<hash>  string pointing at the record id
//	{refresh}:user:<uid>   set of record ids owned by the user
//	{refresh}:expiry       sorted set of record ids scored by expires_at (unix ms)
//
// The {refresh} hash tag pins every key to one cluster slot. The revoke-all
// and sweep scripts derive record keys from set members, which KEYS cannot
// declare up front.
const keyPrefix = "{refresh}:"

const insertScript = `
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "user_id", ARGV[2],
  "token_hash", ARGV[3],
  "expires_at", ARGV[4],
  "created_at", ARGV[5],
  "updated_at", ARGV[5],
  "revoked", "0",
  "rotated_to", "")
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("ZADD", KEYS[4], ARGV[4], ARGV[1])
return 1
`

const markRevokedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "updated_at", ARGV[1])
return 1
`

const claimScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local v = redis.call("HMGET", KEYS[1], "revoked", "rotated_to", "expires_at")
if v[1] ~= "0" then
  return 0
end
if v[2] and v[2] ~= "" then
  return 0
end
if tonumber(v[3]) <= tonumber(ARGV[1]) then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1", "updated_at", ARGV[1])
return 1
`

const markRotatedScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = redis.call("HGET", KEYS[1], "rotated_to")
if current and current ~= "" then
  return 0
end
redis.call("HSET", KEYS[1], "rotated_to", ARGV[1], "revoked", "1", "updated_at", ARGV[2])
return 1
`

const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local count = 0
for _, id in ipairs(ids) do
  local key = ARGV[1] .. "token:" .. id
  if redis.call("HGET", key, "revoked") == "0" then
    redis.call("HSET", key, "revoked", "1", "updated_at", ARGV[2])
    count = count + 1
  end
end
return count
`

const sweepScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
for _, id in ipairs(ids) do
  local key = ARGV[2] .. "token:" .. id
  local fields = redis.call("HMGET", key, "token_hash", "user_id")
  if fields[1] then
    redis.call("DEL", ARGV[2] .. "hash:" .. fields[1])
  end
  if fields[2] then
    redis.call("SREM", ARGV[2] .. "user:" .. fields[2], id)
  end
  redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`

var (
	insertLua      = redis.NewScript(insertScript)
	markRevokedLua = redis.NewScript(markRevokedScript)
	claimLua       = redis.NewScript(claimScript)
	markRotatedLua = redis.NewScript(markRotatedScript)
	revokeAllLua   = redis.NewScript(revokeAllScript)
	sweepLua       = redis.NewScript(sweepScript)
)

// NewRedisClient creates a Redis client and checks the connection
func NewRedisClient(cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("🔌 [Redis] Connecting to Redis...",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
		"db", cfg.RedisDB,
	)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [Redis] Redis connection established")

	return client, nil
}

// RedisTokenStore keeps refresh token records in Redis. Conditional updates
// run as Lua scripts so each record transition is atomic.
type RedisTokenStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisTokenStore wraps client as a refresh token repository.
func NewRedisTokenStore(client *redis.Client, logger *slog.Logger) *RedisTokenStore {
	return &RedisTokenStore{
		client: client,
		logger: logger,
	}
}

var _ repository.RefreshTokenRepository = (*RedisTokenStore)(nil)

func tokenKey(id string) string { return keyPrefix + "token:" + id }
func hashKey(hash string) string { return keyPrefix + "hash:" + hash }
func userKey(userID string) string { return keyPrefix + "user:" + userID }
func expiryKey() string { return keyPrefix + "expiry" }
func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }
func nowMillis() string { return millis(time.Now()) }

func (s *RedisTokenStore) Insert(ctx context.Context, token *models.RefreshToken) error {
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = token.CreatedAt

	res, err := insertLua.Run(ctx, s.client,
		[]string{tokenKey(token.ID), hashKey(token.TokenHash), userKey(token.UserID), expiryKey()},
		token.ID, token.UserID, token.TokenHash, millis(token.ExpiresAt), millis(token.CreatedAt),
	).Int64()
	if err != nil {
		s.logger.Error("❌ [Redis] Failed to insert refresh token", "token_id", token.ID, "error", err)
		return err
	}
	if res == 0 {
		return repository.ErrConflict
	}

	s.logger.Debug("💾 [Redis] Stored refresh token", "token_id", token.ID, "user_id", token.UserID)
	return nil
}

func (s *RedisTokenStore) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	id, err := s.client.Get(ctx, hashKey(hash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrTokenNotFound
		}
		return nil, err
	}

	fields, err := s.client.HGetAll(ctx, tokenKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, repository.ErrTokenNotFound
	}

	return decodeRecord(fields)
}

func (s *RedisTokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := markRevokedLua.Run(ctx, s.client, []string{tokenKey(id)}, nowMillis()).Int64()
	if err != nil {
		return err
	}
	if res == 0 {
		return repository.ErrTokenNotFound
	}
	return nil
}

func (s *RedisTokenStore) ClaimForRotation(ctx context.Context, id string, now time.Time) error {
	res, err := claimLua.Run(ctx, s.client, []string{tokenKey(id)}, millis(now)).Int64()
	if err != nil {
		return err
	}
	switch res {
	case -1:
		return repository.ErrTokenNotFound
	case 0:
		return repository.ErrTokenNotActive
	}
	return nil
}

func (s *RedisTokenStore) MarkRotated(ctx context.Context, id, successorID string) error {
	res, err := markRotatedLua.Run(ctx, s.client, []string{tokenKey(id)}, successorID, nowMillis()).Int64()
	if err != nil {
		return err
	}
	switch res {
	case -1:
		return repository.ErrTokenNotFound
	case 0:
		return repository.ErrAlreadyRotated
	}
	return nil
}

func (s *RedisTokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return revokeAllLua.Run(ctx, s.client, []string{userKey(userID)}, keyPrefix, nowMillis()).Int64()
}

func (s *RedisTokenStore) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	removed, err := sweepLua.Run(ctx, s.client, []string{expiryKey()}, millis(before), keyPrefix).Int64()
	if err != nil {
		s.logger.Error("❌ [Redis] Failed to sweep expired refresh tokens", "error", err)
		return 0, err
	}

	s.logger.Debug("🗑️ [Redis] Swept expired refresh tokens", "removed", removed)
	return removed, nil
}

// Close closes the Redis connection
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}

func decodeRecord(fields map[string]string) (*models.RefreshToken, error) {
	expiresAt, err := parseMillis(fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt refresh token record: %w", err)
	}
	createdAt, _ := parseMillis(fields["created_at"])
	updatedAt, _ := parseMillis(fields["updated_at"])

	token := &models.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		TokenHash: fields["token_hash"],
		ExpiresAt: expiresAt,
		Revoked:   fields["revoked"] == "1",
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if rotated := fields["rotated_to"]; rotated != "" {
		token.RotatedTo = &rotated
	}
	return token, nil
}

func parseMillis(value string) (time.Time, error) {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
