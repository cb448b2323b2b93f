package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker tracks token ids that must no longer be accepted before they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

const revokedKeyPrefix = "auth:revoked:"

// RedisRevoker keeps a denylist entry per revoked jti that expires together
// with the token, so the set never grows beyond live tokens.
type RedisRevoker struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewRedisRevoker(rdb redis.Cmdable) *RedisRevoker {
	return &RedisRevoker{rdb: rdb, now: time.Now}
}

func (r *RedisRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return errors.New("auth: jti required")
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// Already expired; verification rejects it anyway.
		return nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+jti, 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
