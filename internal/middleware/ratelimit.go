package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"online_quiz_backend/internal/util"
	"online_quiz_backend/pkg/logger"
	"online_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// WindowLimiter counts one request per call and reports whether the caller is
// still inside the window budget. The counter increments whether or not the
// request later fails business logic.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisWindowLimiter is a fixed-window counter shared across instances:
// INCR per request, window-sized TTL set on the first hit.
type RedisWindowLimiter struct {
	Client      *redis.Client
	MaxRequests int
	Window      time.Duration
}

func NewRedisWindowLimiter(client *redis.Client, maxRequests int, window time.Duration) *RedisWindowLimiter {
	return &RedisWindowLimiter{Client: client, MaxRequests: maxRequests, Window: window}
}

func (l *RedisWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.Client.Incr(ctx, "rate:"+key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.Client.Expire(ctx, "rate:"+key, l.Window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.MaxRequests), nil
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

// LocalWindowLimiter is the in-process fallback when Redis is not
// configured. Same fixed-window semantics as the Redis limiter.
type LocalWindowLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*windowBucket
	MaxRequests int
	Window      time.Duration
	now         func() time.Time
}

func NewLocalWindowLimiter(maxRequests int, window time.Duration) *LocalWindowLimiter {
	l := &LocalWindowLimiter{
		buckets:     make(map[string]*windowBucket),
		MaxRequests: maxRequests,
		Window:      window,
		now:         time.Now,
	}
	go l.sweep()
	return l
}

// NewLocalWindowLimiterWithClock is test-only for deterministic windows.
func NewLocalWindowLimiterWithClock(maxRequests int, window time.Duration, now func() time.Time) *LocalWindowLimiter {
	return &LocalWindowLimiter{
		buckets:     make(map[string]*windowBucket),
		MaxRequests: maxRequests,
		Window:      window,
		now:         now,
	}
}

func (l *LocalWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &windowBucket{count: 1, resetAt: now.Add(l.Window)}
		return l.MaxRequests >= 1, nil
	}

	b.count++
	return b.count <= l.MaxRequests, nil
}

func (l *LocalWindowLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		now := l.now()
		for key, b := range l.buckets {
			if now.After(b.resetAt) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}

// RateLimitMiddleware applies the per-subject, per-route window. It must sit
// after AuthMiddleware so the key is the subject id; unauthenticated routes
// fall back to the client IP. A rejected request never reaches the handler.
func RateLimitMiddleware(limiter WindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if claims := util.GetUserFromContext(c); claims != nil {
			subject = fmt.Sprintf("u%d", claims.UserID)
		}
		key := subject + "|" + c.FullPath()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Counting backend down: let the request through rather than
			// failing every caller; the global IP ceiling still applies.
			logger.Log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			monitoring.RateLimitRejections.Inc()
			util.TooManyRequests(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
