// Package cache Redis 统计缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ideahub:campaign:stats:"

// Connect 连接 Redis 并检查可用性
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", cfg.Addr, err)
	}
	logger.Info("Redis connected at %s", cfg.Addr)
	return client, nil
}

// StatsCache 众筹统计缓存，数据变更时由事件失效。
// 失效时记录最新版本，低于该版本的统计不会再写入
type StatsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStatsCache 创建统计缓存
func NewStatsCache(client redis.Cmdable, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsCache{client: client, ttl: ttl}
}

func statsKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func versionKey(id uuid.UUID) string {
	return keyPrefix + id.String() + ":version"
}

// KEYS[1] 统计 KEYS[2] 版本下限; ARGV 数据, 版本, ttl(ms)
var setIfCurrent = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[2]) < floor then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// KEYS[1] 统计 KEYS[2] 版本下限; ARGV 版本, ttl(ms)
var invalidateAt = redis.NewScript(`
local floor = tonumber(redis.call('GET', KEYS[2]) or '-1')
if tonumber(ARGV[1]) > floor then
	floor = tonumber(ARGV[1])
end
redis.call('SET', KEYS[2], floor, 'PX', ARGV[2])
redis.call('DEL', KEYS[1])
return floor
`)

// Get 读取缓存，未命中时返回 false
func (c *StatsCache) Get(ctx context.Context, campaignID uuid.UUID) (domain.CampaignStats, bool, error) {
	data, err := c.client.Get(ctx, statsKey(campaignID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CampaignStats{}, false, nil
	}
	if err != nil {
		return domain.CampaignStats{}, false, err
	}
	var stats domain.CampaignStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.CampaignStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, true, nil
}

// Set 写入缓存，版本低于最近一次失效时跳过
func (c *StatsCache) Set(ctx context.Context, stats domain.CampaignStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	keys := []string{statsKey(stats.CampaignID), versionKey(stats.CampaignID)}
	return setIfCurrent.Run(ctx, c.client, keys, data, stats.Version, c.ttl.Milliseconds()).Err()
}

// Invalidate 删除缓存并抬高版本下限。下限保留的时间长于统计 ttl，覆盖读库到回写之间的窗口
func (c *StatsCache) Invalidate(ctx context.Context, campaignID uuid.UUID, version int64) error {
	keys := []string{statsKey(campaignID), versionKey(campaignID)}
	return invalidateAt.Run(ctx, c.client, keys, version, (10 * c.ttl).Milliseconds()).Err()
}

// Invalidator 收到众筹事件后删除对应统计缓存
type Invalidator struct {
	cache *StatsCache
}

// NewInvalidator 创建缓存失效处理器
func NewInvalidator(cache *StatsCache) *Invalidator {
	return &Invalidator{cache: cache}
}

func (i *Invalidator) Name() string { return "stats-cache" }

// Process 处理事件
func (i *Invalidator) Process(ctx context.Context, e domain.Event) error {
	return i.cache.Invalidate(ctx, e.CampaignID, e.CampaignVersion)
}
