package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// session:user:{user_id}:{platform} -> access token
	sessionUserPrefix = "session:user:"
	// session:token:{access_token} -> SessionInfo JSON
	sessionTokenPrefix = "session:token:"
)

// SessionInfo is stored per access token so that logout can revoke a token before it expires.
type SessionInfo struct {
	UserID   int64  `json:"userId"`
	Name     string `json:"name"`
	DeviceID string `json:"deviceId"`
	Platform string `json:"platform"`
}

// TokenRepository keeps sessions in Redis.
type TokenRepository struct {
	rdb *redis.Client
}

// NewTokenRepository creates a token repository.
func NewTokenRepository(rdb *redis.Client) *TokenRepository {
	return &TokenRepository{rdb: rdb}
}

func userSessionKey(userID int64, platform string) string {
	return fmt.Sprintf("%s%d:%s", sessionUserPrefix, userID, platform)
}

func tokenSessionKey(accessToken string) string {
	return sessionTokenPrefix + accessToken
}

// Save stores the session and replaces whatever token the same user held on that platform.
func (r *TokenRepository) Save(ctx context.Context, info *SessionInfo, accessToken string, ttl time.Duration) error {
	userKey := userSessionKey(info.UserID, info.Platform)

	old, err := r.rdb.Get(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("load previous session: %w", err)
	}

	payload, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	if old != "" && old != accessToken {
		pipe.Del(ctx, tokenSessionKey(old))
	}
	pipe.Set(ctx, userKey, accessToken, ttl)
	pipe.Set(ctx, tokenSessionKey(accessToken), payload, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the session of accessToken, or nil when it was revoked or expired.
func (r *TokenRepository) Get(ctx context.Context, accessToken string) (*SessionInfo, error) {
	data, err := r.rdb.Get(ctx, tokenSessionKey(accessToken)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &info, nil
}

// Delete revokes accessToken.
func (r *TokenRepository) Delete(ctx context.Context, userID int64, platform, accessToken string) error {
	userKey := userSessionKey(userID, platform)

	current, err := r.rdb.Get(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, tokenSessionKey(accessToken))
	if current == accessToken {
		pipe.Del(ctx, userKey)
	}
	_, err = pipe.Exec(ctx)
	return err
}
