package httpapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"delivery-dispatch/pkg/utils"
)

// LoginLimiter throttles login attempts per client IP and per phone number.
type LoginLimiter interface {
	AllowLogin(ctx context.Context, ip, phone string) (bool, error)
	Window() time.Duration
}

// RedisLoginLimiter counts attempts in fixed Redis windows.
type RedisLoginLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
}

func NewRedisLoginLimiter(rdb redis.Scripter, limit int, window time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLoginLimiter) Window() time.Duration { return l.window }

// AllowLogin counts the attempt against both keys. Both counters advance on
// every attempt so a blocked IP cannot probe other phones for free.
func (l *RedisLoginLimiter) AllowLogin(ctx context.Context, ip, phone string) (bool, error) {
	allowed := true
	if ip != "" {
		ok, _, err := utils.AllowFixedWindow(ctx, l.rdb, "rl:login:ip:"+ip, l.limit, l.window)
		if err != nil {
			return true, err
		}
		allowed = allowed && ok
	}
	if phone != "" {
		ok, _, err := utils.AllowFixedWindow(ctx, l.rdb, "rl:login:phone:"+phoneKey(phone), l.limit, l.window)
		if err != nil {
			return true, err
		}
		allowed = allowed && ok
	}
	return allowed, nil
}

// phoneKey keeps raw phone numbers out of Redis key space.
func phoneKey(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:8])
}
