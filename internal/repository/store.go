package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
)

// CampaignOrder 列表排序
type CampaignOrder int

const (
	// OrderNewest 按创建时间倒序
	OrderNewest CampaignOrder = iota
	// OrderEndingSoonest 按结束时间正序
	OrderEndingSoonest
)

// CampaignFilter 众筹查询条件
type CampaignFilter struct {
	Statuses     []domain.CampaignStatus
	StartsBefore *clock.Instant // start_time <= 该时间
	ClosedSince  *clock.Instant // closed_at >= 该时间
	Order        CampaignOrder
	Page         *domain.Page // 为空时不分页
	Limit        int
}

// Reader 只读查询
type Reader interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error)
	FindOpenCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error)
	LatestCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error)

	GetInvestment(ctx context.Context, id uuid.UUID) (domain.Investment, error)
	FindInvestmentByPaymentRef(ctx context.Context, ref string) (domain.Investment, error)
	ListInvestmentsByCampaign(ctx context.Context, campaignID uuid.UUID, statuses ...domain.InvestmentStatus) ([]domain.Investment, error)
	ListInvestmentsByInvestor(ctx context.Context, investorID uuid.UUID, page domain.Page) ([]domain.Investment, int64, error)
	ListInvestmentsByStatus(ctx context.Context, status domain.InvestmentStatus, updatedBefore clock.Instant, limit int) ([]domain.Investment, error)
	CountConfirmedByInvestor(ctx context.Context, campaignID, investorID uuid.UUID) (int64, error)
	CountTierReservations(ctx context.Context, campaignID uuid.UUID, tierID string) (int64, error)
	SumConfirmed(ctx context.Context, campaignID uuid.UUID) (minor int64, investors int64, err error)

	GetRefund(ctx context.Context, investmentID uuid.UUID) (domain.Refund, error)
	ListRefundsDue(ctx context.Context, now clock.Instant, limit int) ([]domain.Refund, error)
	ListStuckRefunds(ctx context.Context, createdBefore clock.Instant, limit int) ([]domain.Refund, error)
	ListRefundsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Refund, error)

	ListExpiries(ctx context.Context, dueBy clock.Instant, limit int) ([]domain.ExpirySchedule, error)
	ListUndispatchedEvents(ctx context.Context, occurredBefore clock.Instant, limit int) ([]domain.Event, error)
	GetSettlement(ctx context.Context, campaignID uuid.UUID) (domain.Settlement, error)
	ListReconciliationAudits(ctx context.Context, campaignID uuid.UUID) ([]domain.ReconciliationAudit, error)
}

// Tx 事务内的读写操作，读操作能看到本事务已写入的数据
type Tx interface {
	Reader

	// LockCampaign 跨进程的众筹级互斥，事务结束时释放
	LockCampaign(ctx context.Context, id uuid.UUID) error

	InsertCampaign(ctx context.Context, c *domain.Campaign) error
	// UpdateCampaign 以 c.Version 做比较交换，成功后 c.Version 加一
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error

	NextInvestmentSequence(ctx context.Context) (int64, error)
	InsertInvestment(ctx context.Context, inv *domain.Investment) error
	UpdateInvestment(ctx context.Context, inv *domain.Investment) error

	InsertRefund(ctx context.Context, r *domain.Refund) error
	UpdateRefund(ctx context.Context, r *domain.Refund) error

	UpsertExpiry(ctx context.Context, s domain.ExpirySchedule) error
	DeleteExpiry(ctx context.Context, campaignID uuid.UUID) error

	InsertEvents(ctx context.Context, events []domain.Event) error
	MarkEventsDispatched(ctx context.Context, ids []uuid.UUID, at clock.Instant) error

	InsertSettlement(ctx context.Context, s *domain.Settlement) error
	InsertReconciliationAudit(ctx context.Context, a *domain.ReconciliationAudit) error
}

// Store 账本存储
type Store interface {
	Reader
	// Atomic 在单个事务中执行 fn，fn 返回错误时回滚
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}
