package task

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
)

// CampaignExpirer 单个众筹的到期结算，可重复调用
type CampaignExpirer interface {
	EvaluateExpiry(ctx context.Context, campaignID uuid.UUID) error
}

// ExpiryTimer 众筹启动后在 end_time 注册一次性任务，重启后由到期扫描任务兜底
type ExpiryTimer struct {
	scheduler gocron.Scheduler
	expirer   CampaignExpirer
	clock     clock.Clock
}

// NewExpiryTimer 创建到期定时器，clk 与账本使用同一时钟
func NewExpiryTimer(s gocron.Scheduler, expirer CampaignExpirer, clk clock.Clock) *ExpiryTimer {
	return &ExpiryTimer{scheduler: s, expirer: expirer, clock: clk}
}

func (t *ExpiryTimer) Name() string { return "expiry-timer" }

// Process 处理 CampaignActivated 事件
func (t *ExpiryTimer) Process(_ context.Context, e domain.Event) error {
	if e.Type != domain.EventCampaignActivated || e.EndsAt == nil {
		return nil
	}
	return t.Schedule(e.CampaignID, *e.EndsAt)
}

// Schedule 注册或替换众筹的到期任务。剩余时长按账本时钟计算，调度器按墙钟等待
func (t *ExpiryTimer) Schedule(campaignID uuid.UUID, at clock.Instant) error {
	tag := campaignID.String()
	t.scheduler.RemoveByTags(tag)

	start := gocron.OneTimeJobStartImmediately()
	if wait := at.Sub(t.clock.Now()); wait > 0 {
		start = gocron.OneTimeJobStartDateTime(time.Now().Add(wait))
	}
	_, err := t.scheduler.NewJob(
		gocron.OneTimeJob(start),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := t.expirer.EvaluateExpiry(ctx, campaignID); err != nil {
				logger.Error("Failed to evaluate expiry of campaign %s: %v", campaignID, err)
			}
		}),
		gocron.WithName("campaign_expiry_timer"),
		gocron.WithTags(tag),
	)
	if err != nil {
		return fmt.Errorf("schedule expiry of campaign %s: %w", campaignID, err)
	}
	logger.Debug("Scheduled expiry of campaign %s at %s", campaignID, at)
	return nil
}
