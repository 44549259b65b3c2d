package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/money"
	"github.com/leopark123/ideahub/internal/repository"
	"go.uber.org/zap"
)

// Options 账本行为配置
type Options struct {
	DefaultCurrency  money.Currency
	ConflictRetries  uint
	AutoCorrectDrift bool
}

// SettlementCoordinator 众筹聚合字段的唯一写入方，负责确认、到期结算、取消和对账
type SettlementCoordinator struct {
	store       repository.Store
	clock       clock.Clock
	serializer  *campaignSerializer
	autoCorrect bool
}

// NewSettlementCoordinator 创建结算协调器
func NewSettlementCoordinator(store repository.Store, clk clock.Clock, publisher Publisher, opts Options) *SettlementCoordinator {
	return &SettlementCoordinator{
		store:       store,
		clock:       clk,
		serializer:  newCampaignSerializer(store, clk, publisher, opts.ConflictRetries),
		autoCorrect: opts.AutoCorrectDrift,
	}
}

type closeReason int

const (
	closeExpired closeReason = iota
	closeEarly
	closeCancelled
)

// Activate 启动众筹。explicit 为 true 时是发起人手动启动，否则是到达开始时间的自动启动
func (s *SettlementCoordinator) Activate(ctx context.Context, campaignID uuid.UUID, explicit bool) error {
	return s.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if explicit {
			if c.Status != domain.CampaignPending {
				return nil, apperr.InvalidState(apperr.CodeCampaignNotPending, "campaign is %s, only pending campaigns can be started", c.Status)
			}
			if c.Expired(now) {
				return nil, apperr.InvalidState(apperr.CodeOutsideWindow, "campaign funding window ended at %s", c.EndTime)
			}
			// 提前手动启动时，开始时间改为当前时间
			if now.Before(c.StartTime) {
				c.StartTime = now
			}
			return s.activateLocked(ctx, tx, &c, now)
		}

		if c.Status != domain.CampaignPending || now.Before(c.StartTime) {
			return nil, nil
		}
		if c.Expired(now) {
			return s.closeLocked(ctx, tx, &c, closeExpired, now)
		}
		return s.activateLocked(ctx, tx, &c, now)
	})
}

// ActivateDue 启动所有已到开始时间的待开始众筹
func (s *SettlementCoordinator) ActivateDue(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	due, _, err := s.store.ListCampaigns(ctx, repository.CampaignFilter{
		Statuses:     []domain.CampaignStatus{domain.CampaignPending},
		StartsBefore: &now,
		Order:        repository.OrderEndingSoonest,
		Limit:        limit,
	})
	if err != nil {
		return 0, err
	}
	activated := 0
	for _, c := range due {
		if err := s.Activate(ctx, c.ID, false); err != nil {
			logger.Error("Failed to activate campaign %s: %v", c.ID, err)
			continue
		}
		activated++
	}
	return activated, nil
}

// activateLocked 调用方持有众筹锁
func (s *SettlementCoordinator) activateLocked(ctx context.Context, tx repository.Tx, c *domain.Campaign, now clock.Instant) ([]domain.Event, error) {
	c.Status = domain.CampaignActive
	c.UpdatedAt = now
	if err := tx.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	// 持久化到期计划，重启后由扫描任务补触发
	if err := tx.UpsertExpiry(ctx, domain.ExpirySchedule{CampaignID: c.ID, EndTime: c.EndTime, CreatedAt: now}); err != nil {
		return nil, err
	}
	logger.Info("Campaign %s activated, ends at %s", c.ID, c.EndTime)
	return []domain.Event{domain.NewCampaignEvent(domain.EventCampaignActivated, *c, now)}, nil
}

// SettlePaid 处理已支付的投资：众筹进行中则确认计入，已过截止时间则先结算众筹，已结束则退款
func (s *SettlementCoordinator) SettlePaid(ctx context.Context, investmentID uuid.UUID) error {
	inv, err := s.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return err
	}
	return s.serializer.run(ctx, inv.CampaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		inv, err := tx.GetInvestment(ctx, investmentID)
		if err != nil {
			return nil, err
		}
		if inv.Status != domain.InvestmentPaid {
			return nil, nil
		}
		c, err := tx.GetCampaign(ctx, inv.CampaignID)
		if err != nil {
			return nil, err
		}

		switch {
		case c.Status == domain.CampaignActive && !c.Expired(now):
			event, err := s.confirmLocked(ctx, tx, &c, &inv, now)
			if err != nil {
				return nil, err
			}
			if err := tx.UpdateCampaign(ctx, &c); err != nil {
				return nil, err
			}
			event.CampaignVersion = c.Version
			return []domain.Event{event}, nil
		case c.Status == domain.CampaignActive:
			// 截止时间是硬边界：先结算众筹，本笔支付在结算中按支付时间处理
			return s.closeLocked(ctx, tx, &c, closeExpired, now)
		default:
			if err := s.refundLocked(ctx, tx, &c, &inv, domain.RefundLatePayment, now); err != nil {
				return nil, err
			}
			logger.Warn("Payment for investment %s arrived after campaign %s was %s, refund queued", inv.ID, c.ID, c.Status)
			return []domain.Event{domain.NewInvestmentEvent(domain.EventInvestmentRefunded, c, inv, now)}, nil
		}
	})
}

// SettleStalePaid 补结算停留在 Paid 状态的投资
func (s *SettlementCoordinator) SettleStalePaid(ctx context.Context, idle time.Duration, limit int) (int, error) {
	stale, err := s.store.ListInvestmentsByStatus(ctx, domain.InvestmentPaid, s.clock.Now().Add(-idle), limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, inv := range stale {
		if err := s.SettlePaid(ctx, inv.ID); err != nil {
			logger.Error("Failed to settle paid investment %s: %v", inv.ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

// EvaluateExpiry 到期结算，可重复调用：已结束的众筹直接忽略，未到期的众筹不做处理
func (s *SettlementCoordinator) EvaluateExpiry(ctx context.Context, campaignID uuid.UUID) error {
	return s.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if c.Status.Terminal() {
			return nil, tx.DeleteExpiry(ctx, campaignID)
		}
		if !c.Expired(now) {
			return nil, nil
		}
		return s.closeLocked(ctx, tx, &c, closeExpired, now)
	})
}

// EvaluateDueExpiries 处理所有已到期的计划
func (s *SettlementCoordinator) EvaluateDueExpiries(ctx context.Context, limit int) (int, error) {
	due, err := s.store.ListExpiries(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	evaluated := 0
	for _, e := range due {
		if err := s.EvaluateExpiry(ctx, e.CampaignID); err != nil {
			logger.Error("Failed to evaluate expiry of campaign %s: %v", e.CampaignID, err)
			continue
		}
		evaluated++
	}
	return evaluated, nil
}

// CloseEarly 发起人提前结束进行中的众筹
func (s *SettlementCoordinator) CloseEarly(ctx context.Context, campaignID uuid.UUID) error {
	return s.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if c.Status != domain.CampaignActive {
			return nil, apperr.InvalidState(apperr.CodeCampaignNotActive, "campaign is %s, only active campaigns can be closed", c.Status)
		}
		reason := closeEarly
		if c.Expired(now) {
			reason = closeExpired
		}
		return s.closeLocked(ctx, tx, &c, reason, now)
	})
}

// Cancel 取消众筹，已支付和已确认的投资全部退款
func (s *SettlementCoordinator) Cancel(ctx context.Context, campaignID uuid.UUID) error {
	return s.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		switch c.Status {
		case domain.CampaignPending:
		case domain.CampaignActive:
			if c.TargetReached() {
				return nil, apperr.InvalidState(apperr.CodeTargetReached, "campaign already reached its target and cannot be cancelled")
			}
			if c.Expired(now) {
				return nil, apperr.InvalidState(apperr.CodeOutsideWindow, "campaign funding window ended at %s and is being settled", c.EndTime)
			}
		default:
			return nil, apperr.InvalidState(apperr.CodeCampaignClosed, "campaign is already %s", c.Status)
		}
		return s.closeLocked(ctx, tx, &c, closeCancelled, now)
	})
}

// closeLocked 关闭众筹并处理全部未结束的投资，调用方持有众筹锁
func (s *SettlementCoordinator) closeLocked(ctx context.Context, tx repository.Tx, c *domain.Campaign, reason closeReason, now clock.Instant) ([]domain.Event, error) {
	investments, err := tx.ListInvestmentsByCampaign(ctx, c.ID,
		domain.InvestmentPending, domain.InvestmentPaid, domain.InvestmentConfirmed)
	if err != nil {
		return nil, err
	}

	var events []domain.Event

	// 截止前已支付但尚未确认的投资先计入
	if reason != closeCancelled {
		cutoff := c.EndTime
		if reason == closeEarly {
			cutoff = now
		}
		for i := range investments {
			inv := &investments[i]
			if inv.Status != domain.InvestmentPaid || !inv.PaidBefore(cutoff) {
				continue
			}
			event, err := s.confirmLocked(ctx, tx, c, inv, now)
			if err != nil {
				return nil, err
			}
			events = append(events, event)
		}
	}

	outcome := domain.CampaignFailed
	refundReason := domain.RefundCampaignFailed
	switch {
	case reason == closeCancelled:
		outcome = domain.CampaignCancelled
		refundReason = domain.RefundCampaignCancelled
	case c.TargetReached():
		outcome = domain.CampaignSucceeded
	}

	settlement := domain.Settlement{
		ID:            uuid.New(),
		CampaignID:    c.ID,
		Outcome:       outcome,
		RaisedAmount:  c.RaisedAmount,
		TargetAmount:  c.TargetAmount,
		InvestorCount: c.InvestorCount,
		SettledAt:     now,
	}

	var refunded []domain.Investment
	for i := range investments {
		inv := &investments[i]
		switch inv.Status {
		case domain.InvestmentPending:
			// 从未付款，直接取消
			if err := inv.Transition(domain.InvestmentCancelled, now); err != nil {
				return nil, err
			}
			if err := tx.UpdateInvestment(ctx, inv); err != nil {
				return nil, err
			}
			settlement.CancelledCount++
		case domain.InvestmentPaid:
			// 截止后才支付
			r := refundReason
			if outcome == domain.CampaignSucceeded {
				r = domain.RefundLatePayment
			}
			if err := s.refundLocked(ctx, tx, c, inv, r, now); err != nil {
				return nil, err
			}
			refunded = append(refunded, *inv)
		case domain.InvestmentConfirmed:
			if outcome == domain.CampaignSucceeded {
				settlement.ConfirmedCount++
				continue
			}
			if err := s.refundLocked(ctx, tx, c, inv, refundReason, now); err != nil {
				return nil, err
			}
			refunded = append(refunded, *inv)
		}
	}
	settlement.RefundedCount = len(refunded)

	c.Status = outcome
	c.ClosedAt = now.Ptr()
	c.UpdatedAt = now
	if err := tx.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.DeleteExpiry(ctx, c.ID); err != nil {
		return nil, err
	}
	if err := tx.InsertSettlement(ctx, &settlement); err != nil {
		return nil, err
	}

	for i := range events {
		events[i].CampaignVersion = c.Version
	}
	events = append(events, domain.NewCampaignEvent(campaignEventType(outcome), *c, now))
	for _, inv := range refunded {
		events = append(events, domain.NewInvestmentEvent(domain.EventInvestmentRefunded, *c, inv, now))
	}

	logger.Info("Campaign %s closed as %s: raised %s of %s, confirmed=%d refunded=%d cancelled=%d",
		c.ID, outcome, settlement.RaisedAmount, c.TargetAmount,
		settlement.ConfirmedCount, settlement.RefundedCount, settlement.CancelledCount)
	return events, nil
}

func campaignEventType(outcome domain.CampaignStatus) domain.EventType {
	switch outcome {
	case domain.CampaignSucceeded:
		return domain.EventCampaignSucceeded
	case domain.CampaignCancelled:
		return domain.EventCampaignCancelled
	default:
		return domain.EventCampaignFailed
	}
}

// confirmLocked Paid -> Confirmed 并累加聚合字段，调用方负责写回众筹
func (s *SettlementCoordinator) confirmLocked(ctx context.Context, tx repository.Tx, c *domain.Campaign, inv *domain.Investment, now clock.Instant) (domain.Event, error) {
	existing, err := tx.CountConfirmedByInvestor(ctx, c.ID, inv.InvestorID)
	if err != nil {
		return domain.Event{}, err
	}
	raised, err := c.RaisedAmount.Add(inv.Amount)
	if err != nil {
		return domain.Event{}, fmt.Errorf("confirm investment %s: %w", inv.ID, err)
	}
	if err := inv.Transition(domain.InvestmentConfirmed, now); err != nil {
		return domain.Event{}, err
	}
	if err := tx.UpdateInvestment(ctx, inv); err != nil {
		return domain.Event{}, err
	}
	c.RaisedAmount = raised
	if existing == 0 {
		c.InvestorCount++
	}
	c.UpdatedAt = now
	return domain.NewInvestmentEvent(domain.EventInvestmentConfirmed, *c, *inv, now), nil
}

// refundLocked 投资转为 Refunded 并登记退款义务；已确认的投资从聚合字段中扣除
func (s *SettlementCoordinator) refundLocked(ctx context.Context, tx repository.Tx, c *domain.Campaign, inv *domain.Investment, reason domain.RefundReason, now clock.Instant) error {
	wasConfirmed := inv.Status == domain.InvestmentConfirmed
	if err := inv.Transition(domain.InvestmentRefunded, now); err != nil {
		return err
	}
	if err := tx.UpdateInvestment(ctx, inv); err != nil {
		return err
	}
	refund := domain.NewRefund(*inv, reason, now)
	if err := tx.InsertRefund(ctx, &refund); err != nil {
		return err
	}
	if !wasConfirmed {
		return nil
	}

	raised, err := c.RaisedAmount.Sub(inv.Amount)
	if err != nil {
		return fmt.Errorf("refund investment %s: %w", inv.ID, err)
	}
	c.RaisedAmount = raised
	remaining, err := tx.CountConfirmedByInvestor(ctx, c.ID, inv.InvestorID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		c.InvestorCount--
	}
	c.UpdatedAt = now
	return nil
}

// Reconcile 从投资记录重新汇总并与聚合字段比对。发现差异时告警并写审计记录，
// 只有开启 AutoCorrectDrift 才修正。一致时返回 nil
func (s *SettlementCoordinator) Reconcile(ctx context.Context, campaignID uuid.UUID) (*domain.ReconciliationAudit, error) {
	var audit *domain.ReconciliationAudit
	err := s.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		audit = nil
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		sum, investors, err := tx.SumConfirmed(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if sum == c.RaisedAmount.Minor() && investors == c.InvestorCount {
			return nil, nil
		}

		a := domain.ReconciliationAudit{
			ID:                uuid.New(),
			CampaignID:        c.ID,
			RecordedRaised:    c.RaisedAmount,
			ComputedRaised:    money.FromMinor(sum, c.Currency),
			RecordedInvestors: c.InvestorCount,
			ComputedInvestors: investors,
			Corrected:         s.autoCorrect,
			DetectedAt:        now,
		}
		logger.Alert("Ledger drift on campaign %s: recorded %s/%d, computed %s/%d",
			[]zap.Field{zap.String("campaign_id", c.ID.String()), zap.Bool("corrected", a.Corrected)},
			c.ID, a.RecordedRaised, a.RecordedInvestors, a.ComputedRaised, a.ComputedInvestors)

		if s.autoCorrect {
			c.RaisedAmount = a.ComputedRaised
			c.InvestorCount = investors
			c.UpdatedAt = now
			if err := tx.UpdateCampaign(ctx, &c); err != nil {
				return nil, err
			}
		}
		if err := tx.InsertReconciliationAudit(ctx, &a); err != nil {
			return nil, err
		}
		audit = &a
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// ReconcileOpen 对全部进行中和最近关闭的众筹对账，每次按 batch 分页读取
func (s *SettlementCoordinator) ReconcileOpen(ctx context.Context, closedWithin time.Duration, batch int) (int, error) {
	since := s.clock.Now().Add(-closedWithin)
	filters := []repository.CampaignFilter{
		{Statuses: []domain.CampaignStatus{domain.CampaignActive}},
		{ClosedSince: &since},
	}

	drifted := 0
	for _, filter := range filters {
		err := s.eachCampaign(ctx, filter, batch, func(c domain.Campaign) {
			audit, err := s.Reconcile(ctx, c.ID)
			if err != nil {
				logger.Error("Failed to reconcile campaign %s: %v", c.ID, err)
				return
			}
			if audit != nil {
				drifted++
			}
		})
		if err != nil {
			return drifted, err
		}
	}
	return drifted, nil
}

// eachCampaign 分页遍历满足条件的众筹
func (s *SettlementCoordinator) eachCampaign(ctx context.Context, filter repository.CampaignFilter, batch int, fn func(domain.Campaign)) error {
	page := domain.Page{Number: 1, Size: batch}.Normalize()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := filter
		f.Page = &page
		campaigns, total, err := s.store.ListCampaigns(ctx, f)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			fn(c)
		}
		if len(campaigns) == 0 || int64(page.Number*page.Size) >= total {
			return nil
		}
		page.Number++
	}
}
