package handler

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/redis/go-redis/v9"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func rateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true,
		Window:  time.Minute,
		Default: 5,
		Rules:   []config.RateLimitRule{{Prefix: "/api/v1/investments", Limit: 2}},
	}
}

func newLimitedEngine(l *RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(l.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusCreated) }
	r.POST("/api/v1/investments", ok)
	r.GET("/api/v1/investments/mine", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/campaigns", ok)
	return r
}

func send(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:4321"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clk := &stepClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(client, rateLimitConfig())
	l.now = clk.Now
	r := newLimitedEngine(l)

	for i := 0; i < 2; i++ {
		if w := send(r, http.MethodPost, "/api/v1/investments"); w.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d, want 201", i, w.Code)
		}
	}
	w := send(r, http.MethodPost, "/api/v1/investments")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third pledge: status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("X-RateLimit-Remaining = %q, want 0", got)
	}

	// 读请求和其他路径各自计数
	if w := send(r, http.MethodGet, "/api/v1/investments/mine"); w.Code != http.StatusOK {
		t.Fatalf("read request: status = %d, want 200", w.Code)
	}
	w = send(r, http.MethodPost, "/api/v1/campaigns")
	if w.Code != http.StatusCreated || w.Header().Get("X-RateLimit-Limit") != "5" {
		t.Fatalf("campaign write: status = %d, limit = %q", w.Code, w.Header().Get("X-RateLimit-Limit"))
	}

	clk.Advance(61 * time.Second)
	if w := send(r, http.MethodPost, "/api/v1/investments"); w.Code != http.StatusCreated {
		t.Fatalf("after window: status = %d, want 201", w.Code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		limiter func(t *testing.T) *RateLimiter
	}{
		{name: "redis disabled", limiter: func(*testing.T) *RateLimiter {
			return NewRateLimiter(nil, rateLimitConfig())
		}},
		{name: "limiting disabled", limiter: func(t *testing.T) *RateLimiter {
			mr := miniredis.RunT(t)
			cfg := rateLimitConfig()
			cfg.Enabled = false
			return NewRateLimiter(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cfg)
		}},
		{name: "redis unavailable", limiter: func(*testing.T) *RateLimiter {
			client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
			return NewRateLimiter(client, rateLimitConfig())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newLimitedEngine(tt.limiter(t))
			for i := 0; i < 4; i++ {
				if w := send(r, http.MethodPost, "/api/v1/investments"); w.Code != http.StatusCreated {
					t.Fatalf("request %d: status = %d, want 201", i, w.Code)
				}
			}
		})
	}
}
