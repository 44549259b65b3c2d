package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ideahub:rate_limit:"

// RateLimiter 基于 Redis 有序集合的滑动窗口限流，只限制写请求
type RateLimiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	now    func() time.Time
}

// NewRateLimiter 创建限流器，client 为空时不限流
func NewRateLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, cfg: cfg, now: time.Now}
}

// limitFor 按路径前缀匹配上限
func (l *RateLimiter) limitFor(path string) int {
	for _, r := range l.cfg.Rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r.Limit
		}
	}
	return l.cfg.Default
}

// allow 记录本次请求并返回窗口内之前的请求数。被拒绝的请求同样计入窗口
func (l *RateLimiter) allow(ctx context.Context, key string, now time.Time) (int64, error) {
	windowStart := now.Add(-l.cfg.Window)
	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
		card = pipe.ZCard(ctx, key)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		pipe.Expire(ctx, key, l.cfg.Window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// Middleware 超限返回 429 和 Retry-After；Redis 出错时放行
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.client == nil || !l.cfg.Enabled {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		path := c.Request.URL.Path
		limit := l.limitFor(path)
		now := l.now()
		count, err := l.allow(c.Request.Context(), rateLimitPrefix+path+":"+c.ClientIP(), now)
		if err != nil {
			logger.Warn("Rate limit check failed for %s, allowing request: %v", path, err)
			c.Next()
			return
		}

		window := int(l.cfg.Window / time.Second)
		if window < 1 {
			window = 1
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(now.Add(l.cfg.Window).Unix(), 10))
		if count >= int64(limit) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(window))
			ErrorResponse(c, http.StatusTooManyRequests, apperr.CodeRateLimited,
				fmt.Sprintf("too many requests, retry in %d seconds", window))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(int64(limit)-count-1, 10))
		c.Next()
	}
}
