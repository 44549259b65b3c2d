package logic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/repository"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// RefundOptions 退款重试配置
type RefundOptions struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	StuckAfter     time.Duration
	BatchSize      int
	Workers        int
}

func (o RefundOptions) withDefaults() RefundOptions {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 30 * time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = time.Hour
	}
	if o.Multiplier < 1 {
		o.Multiplier = 2
	}
	if o.StuckAfter <= 0 {
		o.StuckAfter = 24 * time.Hour
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	return o
}

// RefundLogic 退款执行。调用支付方时不持有任何众筹锁，
// 失败按指数退避无限重试，以投资 ID 作为幂等键
type RefundLogic struct {
	store   repository.Store
	clock   clock.Clock
	gateway PaymentGateway
	opts    RefundOptions
}

// NewRefundLogic 创建退款业务逻辑
func NewRefundLogic(store repository.Store, clk clock.Clock, gateway PaymentGateway, opts RefundOptions) *RefundLogic {
	return &RefundLogic{
		store:   store,
		clock:   clk,
		gateway: gateway,
		opts:    opts.withDefaults(),
	}
}

// ProcessDue 处理到期的退款，返回本批次处理条数
func (l *RefundLogic) ProcessDue(ctx context.Context) (int, error) {
	due, err := l.store.ListRefundsDue(ctx, l.clock.Now(), l.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	workers := l.opts.Workers
	if len(due) < workers {
		workers = len(due)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return 0, fmt.Errorf("failed to create refund pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, r := range due {
		r := r
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := l.attempt(ctx, r); err != nil {
				logger.Error("Failed to record refund attempt for investment %s: %v", r.InvestmentID, err)
			}
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit refund %s: %v", r.InvestmentID, err)
		}
	}
	wg.Wait()
	return len(due), nil
}

// attempt 调用支付方并记录结果
func (l *RefundLogic) attempt(ctx context.Context, r domain.Refund) error {
	handle, callErr := l.gateway.InitiateRefund(ctx, RefundRequest{
		InvestmentID:     r.InvestmentID,
		CampaignID:       r.CampaignID,
		InvestorID:       r.InvestorID,
		Amount:           r.Amount,
		PaymentReference: r.PaymentReference,
		Reason:           r.Reason,
	})

	return l.store.Atomic(ctx, func(tx repository.Tx) error {
		cur, err := tx.GetRefund(ctx, r.InvestmentID)
		if err != nil {
			return err
		}
		if cur.State == domain.RefundSettled {
			return nil
		}
		now := l.clock.Now()
		cur.Attempts++
		cur.UpdatedAt = now

		switch {
		case callErr != nil:
			cur.LastError = callErr.Error()
			cur.NextAttemptAt = now.Add(l.retryDelay(cur.Attempts))
			logger.Warn("Refund for investment %s failed (attempt %d), retry at %s: %v",
				cur.InvestmentID, cur.Attempts, cur.NextAttemptAt, callErr)
		case handle.Settled:
			cur.Settle(handle.ProviderRef, now)
			logger.Info("Refund for investment %s settled, provider ref %s", cur.InvestmentID, cur.ProviderRef)
		default:
			// 已受理，等待到账通知；超时未到账则用同一幂等键再次发起
			if handle.ProviderRef != "" {
				cur.ProviderRef = handle.ProviderRef
			}
			cur.LastError = ""
			cur.NextAttemptAt = now.Add(l.retryDelay(cur.Attempts))
		}
		return tx.UpdateRefund(ctx, &cur)
	})
}

// retryDelay 第 attempts 次失败后的等待时间
func (l *RefundLogic) retryDelay(attempts int) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     l.opts.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          l.opts.Multiplier,
		MaxInterval:         l.opts.MaxBackoff,
	}
	b.Reset()
	delay := b.InitialInterval
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// ConfirmRefund 支付方到账通知，可重复调用
func (l *RefundLogic) ConfirmRefund(ctx context.Context, investmentID uuid.UUID, providerRef string) (domain.Refund, error) {
	var out domain.Refund
	err := l.store.Atomic(ctx, func(tx repository.Tx) error {
		r, err := tx.GetRefund(ctx, investmentID)
		if err != nil {
			return err
		}
		if r.State == domain.RefundSettled {
			out = r
			return nil
		}
		r.Settle(providerRef, l.clock.Now())
		if err := tx.UpdateRefund(ctx, &r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return domain.Refund{}, err
	}
	logger.Info("Refund for investment %s confirmed by provider", investmentID)
	return out, nil
}

// Get 查询退款
func (l *RefundLogic) Get(ctx context.Context, investmentID uuid.UUID) (domain.Refund, error) {
	return l.store.GetRefund(ctx, investmentID)
}

// StuckRefunds 超过阈值仍未到账的退款
func (l *RefundLogic) StuckRefunds(ctx context.Context, limit int) ([]domain.Refund, error) {
	return l.store.ListStuckRefunds(ctx, l.clock.Now().Add(-l.opts.StuckAfter), limit)
}

// AlertStuck 对卡住的退款告警，返回条数
func (l *RefundLogic) AlertStuck(ctx context.Context) (int, error) {
	stuck, err := l.StuckRefunds(ctx, l.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, r := range stuck {
		logger.Alert("Refund for investment %s stuck since %s after %d attempts: %s",
			[]zap.Field{
				zap.String("investment_id", r.InvestmentID.String()),
				zap.String("campaign_id", r.CampaignID.String()),
			},
			r.InvestmentID, r.CreatedAt, r.Attempts, r.LastError)
	}
	return len(stuck), nil
}
