package handler

import (
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logic"
	"github.com/leopark123/ideahub/internal/money"
	"github.com/shopspring/decimal"
)

// 请求模型，金额为十进制字符串，时间为带时区的 RFC3339

// RewardTierRequest 回报档位
type RewardTierRequest struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Limit       *int            `json:"limit"`
}

func toTierInputs(in []RewardTierRequest) []logic.RewardTierInput {
	out := make([]logic.RewardTierInput, 0, len(in))
	for _, t := range in {
		out = append(out, logic.RewardTierInput{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Amount:      t.Amount,
			Limit:       t.Limit,
		})
	}
	return out
}

// CreateCampaignRequest 创建众筹
type CreateCampaignRequest struct {
	ProjectID     uuid.UUID           `json:"project_id"`
	Currency      string              `json:"currency"`
	TargetAmount  decimal.Decimal     `json:"target_amount"`
	MinInvestment decimal.Decimal     `json:"min_investment"`
	MaxInvestment *decimal.Decimal    `json:"max_investment"`
	StartTime     clock.Instant       `json:"start_time"`
	EndTime       clock.Instant       `json:"end_time"`
	RewardTiers   []RewardTierRequest `json:"reward_tiers"`
}

func (r CreateCampaignRequest) toInput() logic.CreateCampaignInput {
	return logic.CreateCampaignInput{
		ProjectID:     r.ProjectID,
		Currency:      r.Currency,
		TargetAmount:  r.TargetAmount,
		MinInvestment: r.MinInvestment,
		MaxInvestment: r.MaxInvestment,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		RewardTiers:   toTierInputs(r.RewardTiers),
	}
}

// UpdateCampaignRequest 修改待开始众筹，缺省字段不修改
type UpdateCampaignRequest struct {
	TargetAmount       *decimal.Decimal     `json:"target_amount"`
	MinInvestment      *decimal.Decimal     `json:"min_investment"`
	MaxInvestment      *decimal.Decimal     `json:"max_investment"`
	ClearMaxInvestment bool                 `json:"clear_max_investment"`
	StartTime          *clock.Instant       `json:"start_time"`
	EndTime            *clock.Instant       `json:"end_time"`
	RewardTiers        *[]RewardTierRequest `json:"reward_tiers"`
}

func (r UpdateCampaignRequest) toPatch() logic.CampaignPatch {
	p := logic.CampaignPatch{
		TargetAmount:       r.TargetAmount,
		MinInvestment:      r.MinInvestment,
		MaxInvestment:      r.MaxInvestment,
		ClearMaxInvestment: r.ClearMaxInvestment,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
	}
	if r.RewardTiers != nil {
		tiers := toTierInputs(*r.RewardTiers)
		p.RewardTiers = &tiers
	}
	return p
}

// CreateInvestmentRequest 创建投资
type CreateInvestmentRequest struct {
	CampaignID    uuid.UUID            `json:"campaign_id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	RewardTierID  string               `json:"reward_tier_id"`
	Notes         string               `json:"notes"`
}

// PaymentWebhookRequest 支付成功回调
type PaymentWebhookRequest struct {
	InvestmentID     uuid.UUID `json:"investment_id"`
	PaymentReference string    `json:"payment_reference"`
}

// RefundWebhookRequest 退款到账回调
type RefundWebhookRequest struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	ProviderRef  string    `json:"provider_ref"`
}

// 响应模型

// RewardTierResponse 回报档位
type RewardTierResponse struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
	Limit       *int        `json:"limit,omitempty"`
}

// CampaignResponse 众筹
type CampaignResponse struct {
	ID            uuid.UUID             `json:"id"`
	ProjectID     uuid.UUID             `json:"project_id"`
	Currency      string                `json:"currency"`
	TargetAmount  money.Money           `json:"target_amount"`
	MinInvestment money.Money           `json:"min_investment"`
	MaxInvestment *money.Money          `json:"max_investment,omitempty"`
	RaisedAmount  money.Money           `json:"raised_amount"`
	InvestorCount int64                 `json:"investor_count"`
	StartTime     clock.Instant         `json:"start_time"`
	EndTime       clock.Instant         `json:"end_time"`
	Status        domain.CampaignStatus `json:"status"`
	RewardTiers   []RewardTierResponse  `json:"reward_tiers"`
	Version       int64                 `json:"version"`
	CreatedAt     clock.Instant         `json:"created_at"`
	UpdatedAt     clock.Instant         `json:"updated_at"`
	ClosedAt      *clock.Instant        `json:"closed_at,omitempty"`
}

func newCampaignResponse(c domain.Campaign) CampaignResponse {
	tiers := make([]RewardTierResponse, 0, len(c.RewardTiers))
	for _, t := range c.RewardTiers {
		tiers = append(tiers, RewardTierResponse{ID: t.ID, Title: t.Title, Description: t.Description, Amount: t.Amount, Limit: t.Limit})
	}
	return CampaignResponse{
		ID:            c.ID,
		ProjectID:     c.ProjectID,
		Currency:      c.Currency.Code(),
		TargetAmount:  c.TargetAmount,
		MinInvestment: c.MinInvestment,
		MaxInvestment: c.MaxInvestment,
		RaisedAmount:  c.RaisedAmount,
		InvestorCount: c.InvestorCount,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		Status:        c.Status,
		RewardTiers:   tiers,
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		ClosedAt:      c.ClosedAt,
	}
}

func newCampaignResponses(list []domain.Campaign) []CampaignResponse {
	out := make([]CampaignResponse, 0, len(list))
	for _, c := range list {
		out = append(out, newCampaignResponse(c))
	}
	return out
}

// InvestmentResponse 投资
type InvestmentResponse struct {
	ID               uuid.UUID               `json:"id"`
	CampaignID       uuid.UUID               `json:"campaign_id"`
	InvestorID       uuid.UUID               `json:"investor_id"`
	Sequence         int64                   `json:"sequence"`
	Amount           money.Money             `json:"amount"`
	Status           domain.InvestmentStatus `json:"status"`
	PaymentReference string                  `json:"payment_reference,omitempty"`
	PaymentMethod    domain.PaymentMethod    `json:"payment_method,omitempty"`
	RewardTierID     string                  `json:"reward_tier_id,omitempty"`
	Notes            string                  `json:"notes,omitempty"`
	CreatedAt        clock.Instant           `json:"created_at"`
	UpdatedAt        clock.Instant           `json:"updated_at"`
	PaidAt           *clock.Instant          `json:"paid_at,omitempty"`
	ConfirmedAt      *clock.Instant          `json:"confirmed_at,omitempty"`
	ClosedAt         *clock.Instant          `json:"closed_at,omitempty"`
}

func newInvestmentResponse(inv domain.Investment) InvestmentResponse {
	return InvestmentResponse{
		ID:               inv.ID,
		CampaignID:       inv.CampaignID,
		InvestorID:       inv.InvestorID,
		Sequence:         inv.Sequence,
		Amount:           inv.Amount,
		Status:           inv.Status,
		PaymentReference: inv.PaymentReference,
		PaymentMethod:    inv.PaymentMethod,
		RewardTierID:     inv.RewardTierID,
		Notes:            inv.Notes,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
		PaidAt:           inv.PaidAt,
		ConfirmedAt:      inv.ConfirmedAt,
		ClosedAt:         inv.ClosedAt,
	}
}

func newInvestmentResponses(list []domain.Investment) []InvestmentResponse {
	out := make([]InvestmentResponse, 0, len(list))
	for _, inv := range list {
		out = append(out, newInvestmentResponse(inv))
	}
	return out
}

// RefundResponse 退款
type RefundResponse struct {
	InvestmentID  uuid.UUID           `json:"investment_id"`
	CampaignID    uuid.UUID           `json:"campaign_id"`
	InvestorID    uuid.UUID           `json:"investor_id"`
	Amount        money.Money         `json:"amount"`
	Reason        domain.RefundReason `json:"reason"`
	State         domain.RefundState  `json:"state"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error,omitempty"`
	ProviderRef   string              `json:"provider_ref,omitempty"`
	NextAttemptAt clock.Instant       `json:"next_attempt_at"`
	CreatedAt     clock.Instant       `json:"created_at"`
	SettledAt     *clock.Instant      `json:"settled_at,omitempty"`
}

func newRefundResponse(r domain.Refund) RefundResponse {
	return RefundResponse{
		InvestmentID:  r.InvestmentID,
		CampaignID:    r.CampaignID,
		InvestorID:    r.InvestorID,
		Amount:        r.Amount,
		Reason:        r.Reason,
		State:         r.State,
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		ProviderRef:   r.ProviderRef,
		NextAttemptAt: r.NextAttemptAt,
		CreatedAt:     r.CreatedAt,
		SettledAt:     r.SettledAt,
	}
}

// SettlementResponse 结算记录
type SettlementResponse struct {
	CampaignID     uuid.UUID             `json:"campaign_id"`
	Outcome        domain.CampaignStatus `json:"outcome"`
	RaisedAmount   money.Money           `json:"raised_amount"`
	TargetAmount   money.Money           `json:"target_amount"`
	InvestorCount  int64                 `json:"investor_count"`
	ConfirmedCount int                   `json:"confirmed_count"`
	RefundedCount  int                   `json:"refunded_count"`
	CancelledCount int                   `json:"cancelled_count"`
	SettledAt      clock.Instant         `json:"settled_at"`
}

func newSettlementResponse(s domain.Settlement) SettlementResponse {
	return SettlementResponse{
		CampaignID:     s.CampaignID,
		Outcome:        s.Outcome,
		RaisedAmount:   s.RaisedAmount,
		TargetAmount:   s.TargetAmount,
		InvestorCount:  s.InvestorCount,
		ConfirmedCount: s.ConfirmedCount,
		RefundedCount:  s.RefundedCount,
		CancelledCount: s.CancelledCount,
		SettledAt:      s.SettledAt,
	}
}

// ReconciliationResponse 对账结果
type ReconciliationResponse struct {
	CampaignID        uuid.UUID    `json:"campaign_id"`
	Drift             bool         `json:"drift"`
	RecordedRaised    *money.Money `json:"recorded_raised,omitempty"`
	ComputedRaised    *money.Money `json:"computed_raised,omitempty"`
	RecordedInvestors int64        `json:"recorded_investors,omitempty"`
	ComputedInvestors int64        `json:"computed_investors,omitempty"`
	Corrected         bool         `json:"corrected"`
}

func newReconciliationResponse(campaignID uuid.UUID, a *domain.ReconciliationAudit) ReconciliationResponse {
	if a == nil {
		return ReconciliationResponse{CampaignID: campaignID}
	}
	return ReconciliationResponse{
		CampaignID:        campaignID,
		Drift:             true,
		RecordedRaised:    &a.RecordedRaised,
		ComputedRaised:    &a.ComputedRaised,
		RecordedInvestors: a.RecordedInvestors,
		ComputedInvestors: a.ComputedInvestors,
		Corrected:         a.Corrected,
	}
}
