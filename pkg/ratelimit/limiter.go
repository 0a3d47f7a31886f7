// Package ratelimit implements fixed-window request limiting keyed by an
// arbitrary string (usually route + client IP).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether one more hit on key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) bool { return true }

// RedisLimiter counts hits per window with INCR + EXPIRE so that every
// instance behind the load balancer shares the same budget.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	logger *zap.Logger
}

// NewRedisClient connects to addr. The connection is lazy; errors surface on
// first use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window, logger: logger}
}

// Allow 当 redis 不可用时，不阻止请求，返回 true
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	bucket := time.Now().UnixNano() / int64(l.window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		l.logger.Warn("Redis rate limit check failed, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	return incr.Val() <= l.limit
}

// MemoryLimiter is the single-process variant used when no Redis is configured
// for a limited route, and in tests.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	counts map[string]int
	start  time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, window: window, now: time.Now, counts: map[string]int{}}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= l.limit
}
