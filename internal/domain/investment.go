package domain

import (
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/money"
)

// InvestmentStatus 投资状态
type InvestmentStatus string

const (
	InvestmentPending   InvestmentStatus = "pending"   // 待支付
	InvestmentPaid      InvestmentStatus = "paid"      // 已支付
	InvestmentConfirmed InvestmentStatus = "confirmed" // 已确认
	InvestmentRefunded  InvestmentStatus = "refunded"  // 已退款
	InvestmentCancelled InvestmentStatus = "cancelled" // 已取消
)

var investmentTransitions = map[InvestmentStatus][]InvestmentStatus{
	InvestmentPending:   {InvestmentPaid, InvestmentCancelled},
	InvestmentPaid:      {InvestmentConfirmed, InvestmentRefunded},
	InvestmentConfirmed: {InvestmentRefunded},
}

// Terminal 是否终态，Confirmed 不是终态
func (s InvestmentStatus) Terminal() bool {
	return s == InvestmentRefunded || s == InvestmentCancelled
}

// Valid 是否合法状态值
func (s InvestmentStatus) Valid() bool {
	switch s {
	case InvestmentPending, InvestmentPaid, InvestmentConfirmed, InvestmentRefunded, InvestmentCancelled:
		return true
	}
	return false
}

// CanTransitionTo 状态机守卫
func (s InvestmentStatus) CanTransitionTo(next InvestmentStatus) bool {
	for _, allowed := range investmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseInvestmentStatuses 解析状态过滤参数
func ParseInvestmentStatuses(values []string) ([]InvestmentStatus, error) {
	statuses := make([]InvestmentStatus, 0, len(values))
	for _, v := range values {
		s := InvestmentStatus(v)
		if !s.Valid() {
			return nil, apperr.Validation(apperr.CodeInvalidArgument, "unknown investment status %q", v)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentAlipay PaymentMethod = "alipay"
	PaymentWechat PaymentMethod = "wechat"
	PaymentBank   PaymentMethod = "bank"
	PaymentCard   PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentAlipay, PaymentWechat, PaymentBank, PaymentCard:
		return true
	}
	return false
}

// Investment 投资记录
type Investment struct {
	ID               uuid.UUID
	CampaignID       uuid.UUID
	InvestorID       uuid.UUID
	Sequence         int64
	Amount           money.Money
	Status           InvestmentStatus
	PaymentReference string
	PaymentMethod    PaymentMethod
	RewardTierID     string
	Notes            string
	CreatedAt        clock.Instant
	UpdatedAt        clock.Instant
	PaidAt           *clock.Instant
	ConfirmedAt      *clock.Instant
	ClosedAt         *clock.Instant
}

// Transition 按状态机推进状态并记录时间
func (inv *Investment) Transition(next InvestmentStatus, at clock.Instant) error {
	if !inv.Status.CanTransitionTo(next) {
		return apperr.InvalidState(apperr.CodeIllegalTransition, "investment %s cannot move from %s to %s", inv.ID, inv.Status, next)
	}
	inv.Status = next
	inv.UpdatedAt = at
	switch next {
	case InvestmentPaid:
		inv.PaidAt = at.Ptr()
	case InvestmentConfirmed:
		inv.ConfirmedAt = at.Ptr()
	case InvestmentRefunded, InvestmentCancelled:
		inv.ClosedAt = at.Ptr()
	}
	return nil
}

// PaidBefore 支付是否发生在指定时间之前
func (inv Investment) PaidBefore(t clock.Instant) bool {
	return inv.PaidAt != nil && inv.PaidAt.Before(t)
}
