package logic

import (
	"context"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/money"
)

// ProjectDirectory 项目服务，ProjectOwner 在项目不存在时返回 NOT_FOUND
type ProjectDirectory interface {
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
	ProjectOwner(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error)
}

// RefundRequest 退款请求，InvestmentID 即幂等键
type RefundRequest struct {
	InvestmentID     uuid.UUID
	CampaignID       uuid.UUID
	InvestorID       uuid.UUID
	Amount           money.Money
	PaymentReference string
	Reason           domain.RefundReason
}

// RefundHandle 支付方受理结果，Settled 为 false 时等待异步到账通知
type RefundHandle struct {
	ProviderRef string
	Settled     bool
}

// PaymentGateway 支付服务
type PaymentGateway interface {
	InitiateRefund(ctx context.Context, req RefundRequest) (RefundHandle, error)
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event) error
}

// StatsCache 众筹统计缓存
type StatsCache interface {
	Get(ctx context.Context, campaignID uuid.UUID) (domain.CampaignStats, bool, error)
	Set(ctx context.Context, stats domain.CampaignStats) error
	// Invalidate 删除缓存，并拒绝之后写入低于 version 的统计
	Invalidate(ctx context.Context, campaignID uuid.UUID, version int64) error
}
