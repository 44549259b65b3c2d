package domain

import (
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/money"
)

// RefundState 退款进度，独立于投资状态
type RefundState string

const (
	RefundPending RefundState = "refund_pending" // 待退款
	RefundSettled RefundState = "refund_settled" // 已到账
)

// RefundReason 退款原因
type RefundReason string

const (
	RefundCampaignFailed    RefundReason = "campaign_failed"
	RefundCampaignCancelled RefundReason = "campaign_cancelled"
	RefundLatePayment       RefundReason = "late_payment"
)

// Refund 退款义务，以投资 ID 作为幂等键
type Refund struct {
	InvestmentID     uuid.UUID
	CampaignID       uuid.UUID
	InvestorID       uuid.UUID
	Amount           money.Money
	PaymentReference string
	Reason           RefundReason
	State            RefundState
	Attempts         int
	LastError        string
	ProviderRef      string
	NextAttemptAt    clock.Instant
	CreatedAt        clock.Instant
	UpdatedAt        clock.Instant
	SettledAt        *clock.Instant
}

// NewRefund 为投资创建退款义务，立即可执行
func NewRefund(inv Investment, reason RefundReason, now clock.Instant) Refund {
	return Refund{
		InvestmentID:     inv.ID,
		CampaignID:       inv.CampaignID,
		InvestorID:       inv.InvestorID,
		Amount:           inv.Amount,
		PaymentReference: inv.PaymentReference,
		Reason:           reason,
		State:            RefundPending,
		NextAttemptAt:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Settle 标记退款到账
func (r *Refund) Settle(providerRef string, at clock.Instant) {
	if providerRef != "" {
		r.ProviderRef = providerRef
	}
	r.State = RefundSettled
	r.LastError = ""
	r.SettledAt = at.Ptr()
	r.UpdatedAt = at
}
