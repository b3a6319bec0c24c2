package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"online_quiz_backend/internal/model"
	"online_quiz_backend/internal/util"
	"online_quiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()
}

func TestLocalWindowLimiterWindowReset(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	limiter := NewLocalWindowLimiterWithClock(3, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "u1|/api/x")
		if err != nil || !allowed {
			t.Fatalf("request %d should be allowed, got allowed=%v err=%v", i+1, allowed, err)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "u1|/api/x"); allowed {
		t.Fatal("fourth request inside the window should be rejected")
	}

	// A different key has its own budget.
	if allowed, _ := limiter.Allow(ctx, "u2|/api/x"); !allowed {
		t.Fatal("other subject should not share the window")
	}
	if allowed, _ := limiter.Allow(ctx, "u1|/api/y"); !allowed {
		t.Fatal("other route should not share the window")
	}

	// Budget comes back once the window elapses.
	mu.Lock()
	now = now.Add(61 * time.Second)
	mu.Unlock()
	if allowed, _ := limiter.Allow(ctx, "u1|/api/x"); !allowed {
		t.Fatal("request after window reset should be allowed")
	}
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

func limitedRouter(limiter WindowLimiter, claims *util.Claims) *gin.Engine {
	router := gin.New()
	router.GET("/api/user/quizzes", func(c *gin.Context) {
		if claims != nil {
			c.Set("user", claims)
		}
	}, RateLimitMiddleware(limiter), func(c *gin.Context) {
		util.Success(c, "ok")
	})
	return router
}

func TestRateLimitMiddlewareRejectsOverBudget(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	router := limitedRouter(limiter, &util.Claims{UserID: 42, Role: model.RoleUser})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/quizzes", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on rejection")
	}
}

func TestRateLimitMiddlewareKeysOnSubjectAndRoute(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	router := limitedRouter(limiter, &util.Claims{UserID: 42, Role: model.RoleUser})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/quizzes", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "u42|/api/user/quizzes" {
		t.Fatalf("expected key u42|/api/user/quizzes, got %v", limiter.keys)
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("backend down")}
	router := limitedRouter(limiter, &util.Claims{UserID: 42, Role: model.RoleUser})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/user/quizzes", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("limiter outage should not block requests, got %d", w.Code)
	}
}

func TestRateLimitMiddlewareAnonymousKeyedByIP(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	router := limitedRouter(limiter, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/quizzes", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	router.ServeHTTP(w, req)

	if len(limiter.keys) != 1 || limiter.keys[0] != "10.0.0.9|/api/user/quizzes" {
		t.Fatalf("expected IP-keyed window for anonymous caller, got %v", limiter.keys)
	}
}
