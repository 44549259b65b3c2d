package domain

import (
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/money"
)

// Settlement 众筹结算记录，关闭众筹时在同一事务内写入
type Settlement struct {
	ID             uuid.UUID
	CampaignID     uuid.UUID
	Outcome        CampaignStatus
	RaisedAmount   money.Money // 决定结果时的募集金额
	TargetAmount   money.Money
	InvestorCount  int64
	ConfirmedCount int
	RefundedCount  int
	CancelledCount int
	SettledAt      clock.Instant
}

// ReconciliationAudit 对账差异记录
type ReconciliationAudit struct {
	ID                uuid.UUID
	CampaignID        uuid.UUID
	RecordedRaised    money.Money
	ComputedRaised    money.Money
	RecordedInvestors int64
	ComputedInvestors int64
	Corrected         bool
	DetectedAt        clock.Instant
}

// ExpirySchedule 持久化的到期计划
type ExpirySchedule struct {
	CampaignID uuid.UUID
	EndTime    clock.Instant
	CreatedAt  clock.Instant
}

// CurrentUser 调用方身份，由认证服务提供
type CurrentUser struct {
	ID       uuid.UUID
	Verified bool
}

// Page 分页参数
type Page struct {
	Number int
	Size   int
}

const maxPageSize = 100

// Normalize 修正分页参数
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 20
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset 偏移量
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
