package logic

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/money"
	"github.com/leopark123/ideahub/internal/repository"
	"github.com/shopspring/decimal"
)

// CreateInvestmentInput 创建投资入参
type CreateInvestmentInput struct {
	CampaignID    uuid.UUID
	InvestorID    uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod domain.PaymentMethod
	RewardTierID  string
	Notes         string
}

const maxNotesLength = 1000

// InvestmentLogic 投资记录
type InvestmentLogic struct {
	store       repository.Store
	clock       clock.Clock
	directory   ProjectDirectory
	coordinator *SettlementCoordinator
}

// NewInvestmentLogic 创建投资业务逻辑
func NewInvestmentLogic(store repository.Store, clk clock.Clock, directory ProjectDirectory, coordinator *SettlementCoordinator) *InvestmentLogic {
	return &InvestmentLogic{
		store:       store,
		clock:       clk,
		directory:   directory,
		coordinator: coordinator,
	}
}

// Create 创建待支付投资，不影响众筹聚合字段
func (l *InvestmentLogic) Create(ctx context.Context, in CreateInvestmentInput) (domain.Investment, error) {
	if in.InvestorID == uuid.Nil {
		return domain.Investment{}, apperr.Validation(apperr.CodeInvalidArgument, "investor id is required")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return domain.Investment{}, apperr.Validation(apperr.CodeInvalidArgument, "unknown payment method %q", in.PaymentMethod)
	}
	if len(in.Notes) > maxNotesLength {
		return domain.Investment{}, apperr.Validation(apperr.CodeInvalidArgument, "notes must be at most %d bytes", maxNotesLength)
	}

	var created domain.Investment
	err := l.coordinator.serializer.run(ctx, in.CampaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, in.CampaignID)
		if err != nil {
			return nil, err
		}

		// 已到开始时间但启动任务尚未执行
		var events []domain.Event
		if c.Status == domain.CampaignPending && !now.Before(c.StartTime) && !c.Expired(now) {
			if events, err = l.coordinator.activateLocked(ctx, tx, &c, now); err != nil {
				return nil, err
			}
		}
		if err := c.CheckAcceptsInvestment(now); err != nil {
			return nil, err
		}

		amount, err := money.FromDecimal(in.Amount, c.Currency)
		if err != nil {
			return nil, apperr.Validation(apperr.CodeInvalidAmount, "amount: %v", err)
		}
		if err := c.CheckAmount(amount); err != nil {
			return nil, err
		}
		if err := checkTier(ctx, tx, c, in.RewardTierID, amount); err != nil {
			return nil, err
		}

		seq, err := tx.NextInvestmentSequence(ctx)
		if err != nil {
			return nil, err
		}
		inv := domain.Investment{
			ID:            uuid.New(),
			CampaignID:    c.ID,
			InvestorID:    in.InvestorID,
			Sequence:      seq,
			Amount:        amount,
			Status:        domain.InvestmentPending,
			PaymentMethod: in.PaymentMethod,
			RewardTierID:  in.RewardTierID,
			Notes:         in.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertInvestment(ctx, &inv); err != nil {
			return nil, err
		}
		created = inv
		return events, nil
	})
	if err != nil {
		return domain.Investment{}, err
	}
	logger.Info("Investment %s created: investor %s, campaign %s, amount %s", created.ID, created.InvestorID, created.CampaignID, created.Amount)
	return created, nil
}

// checkTier 校验回报档位和剩余名额
func checkTier(ctx context.Context, tx repository.Tx, c domain.Campaign, tierID string, amount money.Money) error {
	if tierID == "" {
		return nil
	}
	tier, ok := c.Tier(tierID)
	if !ok {
		return apperr.Validation(apperr.CodeUnknownTier, "campaign has no reward tier %q", tierID)
	}
	if amount.LessThan(tier.Amount) {
		return apperr.Validation(apperr.CodeAmountOutOfRange, "reward tier %q requires at least %s", tierID, tier.Amount)
	}
	if tier.Limit == nil {
		return nil
	}
	reserved, err := tx.CountTierReservations(ctx, c.ID, tierID)
	if err != nil {
		return err
	}
	if reserved >= int64(*tier.Limit) {
		return apperr.InvalidState(apperr.CodeTierSoldOut, "reward tier %q is sold out", tierID)
	}
	return nil
}

// MarkPaid 支付成功通知。同一 paymentReference 重复通知直接返回当前记录；
// 该引用已绑定到其他投资时返回 CONFLICT。首次应用后立即触发结算
func (l *InvestmentLogic) MarkPaid(ctx context.Context, investmentID uuid.UUID, paymentReference string) (domain.Investment, error) {
	ref := strings.TrimSpace(paymentReference)
	if ref == "" {
		return domain.Investment{}, apperr.Validation(apperr.CodeInvalidArgument, "payment reference is required")
	}

	// 接收阶段，不持有众筹锁
	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	applied, err := checkPaymentRef(ctx, l.store, inv, ref)
	if err != nil {
		return domain.Investment{}, err
	}

	// 应用阶段，纯状态变更
	if !applied {
		err = l.coordinator.serializer.run(ctx, inv.CampaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
			cur, err := tx.GetInvestment(ctx, investmentID)
			if err != nil {
				return nil, err
			}
			done, err := checkPaymentRef(ctx, tx, cur, ref)
			if err != nil || done {
				inv = cur
				return nil, err
			}
			events, err := l.applyPayment(ctx, tx, &cur, ref, now)
			if err != nil {
				return nil, err
			}
			inv = cur
			return events, nil
		})
		if err != nil {
			return domain.Investment{}, err
		}
	}

	if inv.Status != domain.InvestmentPaid {
		return inv, nil
	}
	if err := l.coordinator.SettlePaid(ctx, investmentID); err != nil {
		// 支付已记录，补结算任务会继续处理
		logger.Warn("Settlement of paid investment %s deferred: %v", investmentID, err)
		return inv, nil
	}
	return l.store.GetInvestment(ctx, investmentID)
}

func (l *InvestmentLogic) applyPayment(ctx context.Context, tx repository.Tx, inv *domain.Investment, ref string, now clock.Instant) ([]domain.Event, error) {
	switch inv.Status {
	case domain.InvestmentPending:
		if err := inv.Transition(domain.InvestmentPaid, now); err != nil {
			return nil, err
		}
		inv.PaymentReference = ref
		return nil, tx.UpdateInvestment(ctx, inv)
	case domain.InvestmentCancelled:
		// 撤销或众筹关闭后才到账：状态保持 Cancelled，登记退款
		inv.PaymentReference = ref
		inv.PaidAt = now.Ptr()
		inv.UpdatedAt = now
		if err := tx.UpdateInvestment(ctx, inv); err != nil {
			return nil, err
		}
		refund := domain.NewRefund(*inv, domain.RefundLatePayment, now)
		if err := tx.InsertRefund(ctx, &refund); err != nil {
			return nil, err
		}
		c, err := tx.GetCampaign(ctx, inv.CampaignID)
		if err != nil {
			return nil, err
		}
		logger.Warn("Payment %s arrived for cancelled investment %s, refund queued", ref, inv.ID)
		return []domain.Event{domain.NewInvestmentEvent(domain.EventInvestmentRefunded, c, *inv, now)}, nil
	default:
		return nil, apperr.InvalidState(apperr.CodeIllegalTransition, "investment %s is %s and cannot accept a payment", inv.ID, inv.Status)
	}
}

// checkPaymentRef 返回 true 表示该引用已应用到本投资
func checkPaymentRef(ctx context.Context, r repository.Reader, inv domain.Investment, ref string) (bool, error) {
	if inv.PaymentReference == ref {
		return true, nil
	}
	if inv.PaymentReference != "" {
		return false, apperr.Conflict(apperr.CodeAlreadyPaid, "investment %s is already paid with another reference", inv.ID)
	}
	other, err := r.FindInvestmentByPaymentRef(ctx, ref)
	if err == nil && other.ID != inv.ID {
		return false, apperr.Conflict(apperr.CodePaymentRefInUse, "payment reference %q is already attached to another investment", ref)
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	return false, nil
}

// CancelPending 投资人撤销待支付投资
func (l *InvestmentLogic) CancelPending(ctx context.Context, investmentID, investorID uuid.UUID) (domain.Investment, error) {
	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	if inv.InvestorID != investorID {
		return domain.Investment{}, apperr.Forbidden(apperr.CodeNotInvestor, "investment belongs to another investor")
	}
	err = l.coordinator.serializer.run(ctx, inv.CampaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		cur, err := tx.GetInvestment(ctx, investmentID)
		if err != nil {
			return nil, err
		}
		if cur.Status != domain.InvestmentPending {
			return nil, apperr.Forbidden(apperr.CodeNotCancelable, "investment is %s, only pending investments can be cancelled", cur.Status)
		}
		if err := cur.Transition(domain.InvestmentCancelled, now); err != nil {
			return nil, err
		}
		if err := tx.UpdateInvestment(ctx, &cur); err != nil {
			return nil, err
		}
		inv = cur
		return nil, nil
	})
	if err != nil {
		return domain.Investment{}, err
	}
	return inv, nil
}

// Get 投资人查询自己的投资
func (l *InvestmentLogic) Get(ctx context.Context, investmentID, actorID uuid.UUID) (domain.Investment, error) {
	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	if inv.InvestorID != actorID {
		return domain.Investment{}, apperr.Forbidden(apperr.CodeNotInvestor, "investment belongs to another investor")
	}
	return inv, nil
}

// ByCampaign 众筹下的投资，仅项目发起人可查
func (l *InvestmentLogic) ByCampaign(ctx context.Context, campaignID, actorID uuid.UUID, statuses ...domain.InvestmentStatus) ([]domain.Investment, error) {
	c, err := l.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(ctx, l.directory, c.ProjectID, actorID); err != nil {
		return nil, err
	}
	return l.store.ListInvestmentsByCampaign(ctx, campaignID, statuses...)
}

// ByInvestor 投资人的全部投资，按创建顺序倒序
func (l *InvestmentLogic) ByInvestor(ctx context.Context, investorID uuid.UUID, page domain.Page) ([]domain.Investment, int64, error) {
	return l.store.ListInvestmentsByInvestor(ctx, investorID, page.Normalize())
}
