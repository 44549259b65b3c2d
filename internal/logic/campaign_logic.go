package logic

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/money"
	"github.com/leopark123/ideahub/internal/repository"
	"github.com/shopspring/decimal"
)

// RewardTierInput 回报档位入参
type RewardTierInput struct {
	ID          string
	Title       string
	Description string
	Amount      decimal.Decimal
	Limit       *int
}

// CreateCampaignInput 创建众筹入参，Currency 为空时使用默认币种
type CreateCampaignInput struct {
	ProjectID     uuid.UUID
	Currency      string
	TargetAmount  decimal.Decimal
	MinInvestment decimal.Decimal
	MaxInvestment *decimal.Decimal
	StartTime     clock.Instant
	EndTime       clock.Instant
	RewardTiers   []RewardTierInput
}

// CampaignPatch 待开始众筹的可修改字段，nil 表示不修改
type CampaignPatch struct {
	TargetAmount       *decimal.Decimal
	MinInvestment      *decimal.Decimal
	MaxInvestment      *decimal.Decimal
	ClearMaxInvestment bool
	StartTime          *clock.Instant
	EndTime            *clock.Instant
	RewardTiers        *[]RewardTierInput
}

// CampaignLogic 众筹生命周期
type CampaignLogic struct {
	store       repository.Store
	clock       clock.Clock
	directory   ProjectDirectory
	coordinator *SettlementCoordinator
	cache       StatsCache
	currency    money.Currency
	projects    *keyedMutex
}

// NewCampaignLogic 创建众筹业务逻辑，cache 可以为 nil
func NewCampaignLogic(store repository.Store, clk clock.Clock, directory ProjectDirectory, coordinator *SettlementCoordinator, cache StatsCache, opts Options) *CampaignLogic {
	return &CampaignLogic{
		store:       store,
		clock:       clk,
		directory:   directory,
		coordinator: coordinator,
		cache:       cache,
		currency:    opts.DefaultCurrency,
		projects:    newKeyedMutex(),
	}
}

// Create 创建待开始的众筹，开始时间已到时立即启动
func (l *CampaignLogic) Create(ctx context.Context, actorID uuid.UUID, in CreateCampaignInput) (domain.Campaign, error) {
	terms, err := l.buildTerms(in)
	if err != nil {
		return domain.Campaign{}, err
	}
	if err := terms.Validate(); err != nil {
		return domain.Campaign{}, err
	}
	if err := requireOwner(ctx, l.directory, in.ProjectID, actorID); err != nil {
		return domain.Campaign{}, err
	}

	// 同一项目的创建串行执行，数据库唯一索引兜底跨进程并发
	unlock, err := l.projects.Lock(ctx, in.ProjectID)
	if err != nil {
		return domain.Campaign{}, err
	}
	defer unlock()

	now := l.clock.Now()
	c, err := domain.NewCampaign(in.ProjectID, terms, now)
	if err != nil {
		return domain.Campaign{}, err
	}
	err = l.store.Atomic(ctx, func(tx repository.Tx) error {
		open, err := tx.FindOpenCampaignByProject(ctx, in.ProjectID)
		if err == nil {
			return apperr.Conflict(apperr.CodeOpenCampaignExists, "project %s already has %s campaign %s", in.ProjectID, open.Status, open.ID)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return tx.InsertCampaign(ctx, &c)
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	logger.Info("Campaign %s created for project %s, target %s", c.ID, c.ProjectID, c.TargetAmount)

	if !now.Before(c.StartTime) {
		if err := l.coordinator.Activate(ctx, c.ID, false); err != nil {
			logger.Warn("Failed to activate campaign %s on creation, activation job will retry: %v", c.ID, err)
			return c, nil
		}
		return l.store.GetCampaign(ctx, c.ID)
	}
	return c, nil
}

func (l *CampaignLogic) buildTerms(in CreateCampaignInput) (domain.CampaignTerms, error) {
	cur := l.currency
	if in.Currency != "" {
		parsed, err := money.ParseCurrency(in.Currency)
		if err != nil {
			return domain.CampaignTerms{}, apperr.Validation(apperr.CodeInvalidCurrency, "unknown currency %q", in.Currency)
		}
		cur = parsed
	}
	if cur.IsZero() {
		return domain.CampaignTerms{}, apperr.Validation(apperr.CodeInvalidCurrency, "currency is required")
	}
	terms := domain.CampaignTerms{Currency: cur, StartTime: in.StartTime, EndTime: in.EndTime}

	var err error
	if terms.TargetAmount, err = toMoney("target_amount", in.TargetAmount, cur); err != nil {
		return domain.CampaignTerms{}, err
	}
	if terms.MinInvestment, err = toMoney("min_investment", in.MinInvestment, cur); err != nil {
		return domain.CampaignTerms{}, err
	}
	if in.MaxInvestment != nil {
		m, err := toMoney("max_investment", *in.MaxInvestment, cur)
		if err != nil {
			return domain.CampaignTerms{}, err
		}
		terms.MaxInvestment = &m
	}
	if terms.RewardTiers, err = toTiers(in.RewardTiers, cur); err != nil {
		return domain.CampaignTerms{}, err
	}
	return terms, nil
}

func toMoney(field string, d decimal.Decimal, cur money.Currency) (money.Money, error) {
	m, err := money.FromDecimal(d, cur)
	if err != nil {
		return money.Money{}, apperr.Validation(apperr.CodeInvalidAmount, "%s: %v", field, err)
	}
	return m, nil
}

func toTiers(in []RewardTierInput, cur money.Currency) ([]domain.RewardTier, error) {
	tiers := make([]domain.RewardTier, 0, len(in))
	for _, t := range in {
		amount, err := toMoney("reward tier "+t.ID, t.Amount, cur)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, domain.RewardTier{ID: t.ID, Title: t.Title, Description: t.Description, Amount: amount, Limit: t.Limit})
	}
	return tiers, nil
}

// Start 发起人手动启动
func (l *CampaignLogic) Start(ctx context.Context, campaignID, actorID uuid.UUID) (domain.Campaign, error) {
	if _, err := l.ownedCampaign(ctx, campaignID, actorID); err != nil {
		return domain.Campaign{}, err
	}
	if err := l.coordinator.Activate(ctx, campaignID, true); err != nil {
		return domain.Campaign{}, err
	}
	return l.store.GetCampaign(ctx, campaignID)
}

// Update 修改待开始众筹的条款
func (l *CampaignLogic) Update(ctx context.Context, campaignID, actorID uuid.UUID, patch CampaignPatch) (domain.Campaign, error) {
	if _, err := l.ownedCampaign(ctx, campaignID, actorID); err != nil {
		return domain.Campaign{}, err
	}
	var updated domain.Campaign
	err := l.coordinator.serializer.run(ctx, campaignID, func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error) {
		c, err := tx.GetCampaign(ctx, campaignID)
		if err != nil {
			return nil, err
		}
		if c.Status != domain.CampaignPending {
			return nil, apperr.InvalidState(apperr.CodeCampaignNotPending, "campaign is %s, only pending campaigns can be modified", c.Status)
		}
		terms, err := applyPatch(c.Terms(), patch)
		if err != nil {
			return nil, err
		}
		if err := terms.Validate(); err != nil {
			return nil, err
		}
		c.ApplyTerms(terms)
		c.UpdatedAt = now
		if err := tx.UpdateCampaign(ctx, &c); err != nil {
			return nil, err
		}
		updated = c
		return nil, nil
	})
	if err != nil {
		return domain.Campaign{}, err
	}
	l.invalidate(ctx, campaignID, updated.Version)
	return updated, nil
}

func applyPatch(t domain.CampaignTerms, p CampaignPatch) (domain.CampaignTerms, error) {
	var err error
	if p.TargetAmount != nil {
		if t.TargetAmount, err = toMoney("target_amount", *p.TargetAmount, t.Currency); err != nil {
			return t, err
		}
	}
	if p.MinInvestment != nil {
		if t.MinInvestment, err = toMoney("min_investment", *p.MinInvestment, t.Currency); err != nil {
			return t, err
		}
	}
	if p.ClearMaxInvestment {
		t.MaxInvestment = nil
	} else if p.MaxInvestment != nil {
		m, err := toMoney("max_investment", *p.MaxInvestment, t.Currency)
		if err != nil {
			return t, err
		}
		t.MaxInvestment = &m
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.RewardTiers != nil {
		if t.RewardTiers, err = toTiers(*p.RewardTiers, t.Currency); err != nil {
			return t, err
		}
	}
	return t, nil
}

// Cancel 发起人取消众筹
func (l *CampaignLogic) Cancel(ctx context.Context, campaignID, actorID uuid.UUID) (domain.Campaign, error) {
	if _, err := l.ownedCampaign(ctx, campaignID, actorID); err != nil {
		return domain.Campaign{}, err
	}
	if err := l.coordinator.Cancel(ctx, campaignID); err != nil {
		return domain.Campaign{}, err
	}
	return l.store.GetCampaign(ctx, campaignID)
}

// CloseEarly 发起人提前结束众筹
func (l *CampaignLogic) CloseEarly(ctx context.Context, campaignID, actorID uuid.UUID) (domain.Campaign, error) {
	if _, err := l.ownedCampaign(ctx, campaignID, actorID); err != nil {
		return domain.Campaign{}, err
	}
	if err := l.coordinator.CloseEarly(ctx, campaignID); err != nil {
		return domain.Campaign{}, err
	}
	return l.store.GetCampaign(ctx, campaignID)
}

// Get 查询众筹
func (l *CampaignLogic) Get(ctx context.Context, campaignID uuid.UUID) (domain.Campaign, error) {
	return l.store.GetCampaign(ctx, campaignID)
}

// GetByProject 项目当前的众筹，没有进行中的众筹时返回最近一次
func (l *CampaignLogic) GetByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	return l.store.LatestCampaignByProject(ctx, projectID)
}

// List 分页查询，按创建时间倒序
func (l *CampaignLogic) List(ctx context.Context, status domain.CampaignStatus, page domain.Page) ([]domain.Campaign, int64, error) {
	filter := repository.CampaignFilter{Order: repository.OrderNewest}
	if status != "" {
		if !status.Valid() {
			return nil, 0, apperr.Validation(apperr.CodeInvalidArgument, "unknown campaign status %q", status)
		}
		filter.Statuses = []domain.CampaignStatus{status}
	}
	page = page.Normalize()
	filter.Page = &page
	return l.store.ListCampaigns(ctx, filter)
}

// ListActive 进行中的众筹，按结束时间正序
func (l *CampaignLogic) ListActive(ctx context.Context, limit int) ([]domain.Campaign, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, _, err := l.store.ListCampaigns(ctx, repository.CampaignFilter{
		Statuses: []domain.CampaignStatus{domain.CampaignActive},
		Order:    repository.OrderEndingSoonest,
		Limit:    limit,
	})
	return out, err
}

// Stats 众筹统计，优先读缓存
func (l *CampaignLogic) Stats(ctx context.Context, campaignID uuid.UUID) (domain.CampaignStats, error) {
	if l.cache != nil {
		stats, ok, err := l.cache.Get(ctx, campaignID)
		if err != nil {
			logger.Warn("Failed to read stats cache for %s: %v", campaignID, err)
		} else if ok {
			return stats, nil
		}
	}
	c, err := l.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.CampaignStats{}, err
	}
	stats := c.Stats(l.clock.Now())
	if l.cache != nil {
		if err := l.cache.Set(ctx, stats); err != nil {
			logger.Warn("Failed to write stats cache for %s: %v", campaignID, err)
		}
	}
	return stats, nil
}

// Settlement 已关闭众筹的结算记录
func (l *CampaignLogic) Settlement(ctx context.Context, campaignID uuid.UUID) (domain.Settlement, error) {
	return l.store.GetSettlement(ctx, campaignID)
}

func (l *CampaignLogic) invalidate(ctx context.Context, campaignID uuid.UUID, version int64) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx, campaignID, version); err != nil {
		logger.Warn("Failed to invalidate stats cache for %s: %v", campaignID, err)
	}
}

func (l *CampaignLogic) ownedCampaign(ctx context.Context, campaignID, actorID uuid.UUID) (domain.Campaign, error) {
	c, err := l.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.Campaign{}, err
	}
	if err := requireOwner(ctx, l.directory, c.ProjectID, actorID); err != nil {
		return domain.Campaign{}, err
	}
	return c, nil
}

// requireOwner 调用方必须是项目发起人
func requireOwner(ctx context.Context, dir ProjectDirectory, projectID, actorID uuid.UUID) error {
	exists, err := dir.ProjectExists(ctx, projectID)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.NotFound(apperr.CodeProjectNotFound, "project %s not found", projectID)
	}
	owner, err := dir.ProjectOwner(ctx, projectID)
	if err != nil {
		return err
	}
	if owner != actorID {
		return apperr.Forbidden(apperr.CodeNotOwner, "only the project owner can manage its campaigns")
	}
	return nil
}
