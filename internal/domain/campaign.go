package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/money"
)

// CampaignStatus 众筹状态
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"   // 待开始
	CampaignActive    CampaignStatus = "active"    // 进行中
	CampaignSucceeded CampaignStatus = "succeeded" // 成功
	CampaignFailed    CampaignStatus = "failed"    // 失败
	CampaignCancelled CampaignStatus = "cancelled" // 已取消
)

// Terminal 是否终态
func (s CampaignStatus) Terminal() bool {
	return s == CampaignSucceeded || s == CampaignFailed || s == CampaignCancelled
}

// Valid 是否合法状态值
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignPending, CampaignActive, CampaignSucceeded, CampaignFailed, CampaignCancelled:
		return true
	}
	return false
}

// OpenCampaignStatuses 非终态
var OpenCampaignStatuses = []CampaignStatus{CampaignPending, CampaignActive}

// RewardTier 回报档位
type RewardTier struct {
	ID          string
	Title       string
	Description string
	Amount      money.Money
	Limit       *int
}

// CampaignTerms 众筹条款，创建和更新时共用同一套校验
type CampaignTerms struct {
	Currency      money.Currency
	TargetAmount  money.Money
	MinInvestment money.Money
	MaxInvestment *money.Money
	StartTime     clock.Instant
	EndTime       clock.Instant
	RewardTiers   []RewardTier
}

// Validate 校验条款
func (t CampaignTerms) Validate() error {
	if t.Currency.IsZero() {
		return apperr.Validation(apperr.CodeInvalidCurrency, "currency is required")
	}
	for _, m := range []money.Money{t.TargetAmount, t.MinInvestment} {
		if m.Currency() != t.Currency {
			return apperr.Validation(apperr.CodeInvalidCurrency, "amounts must be in %s", t.Currency)
		}
	}
	if !t.TargetAmount.IsPositive() {
		return apperr.Validation(apperr.CodeInvalidAmount, "target amount must be positive")
	}
	if !t.MinInvestment.IsPositive() {
		return apperr.Validation(apperr.CodeInvalidAmount, "minimum investment must be positive")
	}
	if t.MaxInvestment != nil {
		if t.MaxInvestment.Currency() != t.Currency {
			return apperr.Validation(apperr.CodeInvalidCurrency, "amounts must be in %s", t.Currency)
		}
		if t.MaxInvestment.LessThan(t.MinInvestment) {
			return apperr.Validation(apperr.CodeInvalidAmount, "maximum investment %s is below minimum %s", t.MaxInvestment, t.MinInvestment)
		}
	}
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return apperr.Validation(apperr.CodeInvalidWindow, "start and end time are required")
	}
	if !t.StartTime.Before(t.EndTime) {
		return apperr.Validation(apperr.CodeInvalidWindow, "start time must be before end time")
	}

	seen := make(map[string]struct{}, len(t.RewardTiers))
	for _, tier := range t.RewardTiers {
		if tier.ID == "" || tier.Title == "" {
			return apperr.Validation(apperr.CodeInvalidArgument, "reward tier id and title are required")
		}
		if _, dup := seen[tier.ID]; dup {
			return apperr.Validation(apperr.CodeInvalidArgument, "duplicate reward tier %q", tier.ID)
		}
		seen[tier.ID] = struct{}{}
		if tier.Amount.Currency() != t.Currency || !tier.Amount.IsPositive() {
			return apperr.Validation(apperr.CodeInvalidAmount, "reward tier %q amount must be a positive %s amount", tier.ID, t.Currency)
		}
		if tier.Limit != nil && *tier.Limit <= 0 {
			return apperr.Validation(apperr.CodeInvalidArgument, "reward tier %q limit must be positive", tier.ID)
		}
	}
	return nil
}

// Campaign 众筹活动
type Campaign struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	Currency      money.Currency
	TargetAmount  money.Money
	MinInvestment money.Money
	MaxInvestment *money.Money
	RaisedAmount  money.Money
	InvestorCount int64
	StartTime     clock.Instant
	EndTime       clock.Instant
	Status        CampaignStatus
	RewardTiers   []RewardTier
	Version       int64
	CreatedAt     clock.Instant
	UpdatedAt     clock.Instant
	ClosedAt      *clock.Instant
}

// NewCampaign 创建待开始的众筹
func NewCampaign(projectID uuid.UUID, terms CampaignTerms, now clock.Instant) (Campaign, error) {
	if err := terms.Validate(); err != nil {
		return Campaign{}, err
	}
	c := Campaign{
		ID:           uuid.New(),
		ProjectID:    projectID,
		RaisedAmount: money.Zero(terms.Currency),
		Status:       CampaignPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.ApplyTerms(terms)
	return c, nil
}

// Terms 当前条款
func (c Campaign) Terms() CampaignTerms {
	return CampaignTerms{
		Currency:      c.Currency,
		TargetAmount:  c.TargetAmount,
		MinInvestment: c.MinInvestment,
		MaxInvestment: c.MaxInvestment,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		RewardTiers:   c.RewardTiers,
	}
}

// ApplyTerms 覆盖条款字段，调用方负责先校验
func (c *Campaign) ApplyTerms(t CampaignTerms) {
	c.Currency = t.Currency
	c.TargetAmount = t.TargetAmount
	c.MinInvestment = t.MinInvestment
	c.MaxInvestment = t.MaxInvestment
	c.StartTime = t.StartTime
	c.EndTime = t.EndTime
	c.RewardTiers = append([]RewardTier(nil), t.RewardTiers...)
}

// CheckAcceptsInvestment 校验当前是否接受新的投资
func (c Campaign) CheckAcceptsInvestment(now clock.Instant) error {
	if c.Status != CampaignActive {
		return apperr.InvalidState(apperr.CodeCampaignNotActive, "campaign is %s, not accepting investments", c.Status)
	}
	if now.Before(c.StartTime) || !now.Before(c.EndTime) {
		return apperr.InvalidState(apperr.CodeOutsideWindow, "campaign accepts investments between %s and %s", c.StartTime, c.EndTime)
	}
	return nil
}

// CheckAmount 按当前快照校验单笔投资金额
func (c Campaign) CheckAmount(amount money.Money) error {
	if amount.Currency() != c.Currency {
		return apperr.Validation(apperr.CodeInvalidCurrency, "investment must be in %s", c.Currency)
	}
	if amount.LessThan(c.MinInvestment) {
		return apperr.Validation(apperr.CodeAmountOutOfRange, "amount %s is below minimum %s", amount, c.MinInvestment)
	}
	if c.MaxInvestment != nil && c.MaxInvestment.LessThan(amount) {
		return apperr.Validation(apperr.CodeAmountOutOfRange, "amount %s exceeds maximum %s", amount, c.MaxInvestment)
	}
	return nil
}

// Tier 查找回报档位
func (c Campaign) Tier(id string) (RewardTier, bool) {
	for _, tier := range c.RewardTiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return RewardTier{}, false
}

// TargetReached 是否达到目标金额
func (c Campaign) TargetReached() bool {
	return c.RaisedAmount.AtLeast(c.TargetAmount)
}

// Expired 是否已到结束时间
func (c Campaign) Expired(now clock.Instant) bool {
	return !now.Before(c.EndTime)
}

// CampaignStats 众筹统计
type CampaignStats struct {
	CampaignID         uuid.UUID      `json:"campaign_id"`
	Status             CampaignStatus `json:"status"`
	Currency           string         `json:"currency"`
	TotalRaised        string         `json:"total_raised"`
	TargetAmount       string         `json:"target_amount"`
	InvestorCount      int64          `json:"investor_count"`
	ProgressPercentage float64        `json:"progress_percentage"`
	DaysRemaining      int            `json:"days_remaining"`
	Version            int64          `json:"version"` // 计算时的众筹版本
}

// Stats 计算统计信息
func (c Campaign) Stats(now clock.Instant) CampaignStats {
	days := 0
	if c.Status == CampaignActive && now.Before(c.EndTime) {
		days = int(c.EndTime.Sub(now) / (24 * time.Hour))
	}
	return CampaignStats{
		CampaignID:         c.ID,
		Status:             c.Status,
		Currency:           c.Currency.Code(),
		TotalRaised:        c.RaisedAmount.String(),
		TargetAmount:       c.TargetAmount.String(),
		InvestorCount:      c.InvestorCount,
		ProgressPercentage: c.RaisedAmount.Percent(c.TargetAmount).InexactFloat64(),
		DaysRemaining:      days,
		Version:            c.Version,
	}
}
