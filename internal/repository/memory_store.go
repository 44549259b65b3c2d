package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
)

// MemoryStore 内存存储，仅用于测试和本地开发
// 事务独占整个存储，不同众筹的写入也会串行；写操作记录回滚日志
type MemoryStore struct {
	mu          sync.RWMutex
	campaigns   map[uuid.UUID]domain.Campaign
	investments map[uuid.UUID]domain.Investment
	refunds     map[uuid.UUID]domain.Refund
	expiries    map[uuid.UUID]domain.ExpirySchedule
	settlements map[uuid.UUID]domain.Settlement
	events      []memEvent
	audits      []domain.ReconciliationAudit
	sequence    int64
}

type memEvent struct {
	event        domain.Event
	dispatchedAt *clock.Instant
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:   make(map[uuid.UUID]domain.Campaign),
		investments: make(map[uuid.UUID]domain.Investment),
		refunds:     make(map[uuid.UUID]domain.Refund),
		expiries:    make(map[uuid.UUID]domain.ExpirySchedule),
		settlements: make(map[uuid.UUID]domain.Settlement),
	}
}

var _ Store = (*MemoryStore)(nil)

// Atomic 执行事务
func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{memView: memView{s: s}}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(tx)
}

func (s *MemoryStore) view() memView { return memView{s: s} }

func (s *MemoryStore) GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetCampaign(ctx, id)
}

func (s *MemoryStore) FindOpenCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().FindOpenCampaignByProject(ctx, projectID)
}

func (s *MemoryStore) LatestCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().LatestCampaignByProject(ctx, projectID)
}

func (s *MemoryStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListCampaigns(ctx, filter)
}

func (s *MemoryStore) GetInvestment(ctx context.Context, id uuid.UUID) (domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetInvestment(ctx, id)
}

func (s *MemoryStore) FindInvestmentByPaymentRef(ctx context.Context, ref string) (domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().FindInvestmentByPaymentRef(ctx, ref)
}

func (s *MemoryStore) ListInvestmentsByCampaign(ctx context.Context, campaignID uuid.UUID, statuses ...domain.InvestmentStatus) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListInvestmentsByCampaign(ctx, campaignID, statuses...)
}

func (s *MemoryStore) ListInvestmentsByInvestor(ctx context.Context, investorID uuid.UUID, page domain.Page) ([]domain.Investment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListInvestmentsByInvestor(ctx, investorID, page)
}

func (s *MemoryStore) ListInvestmentsByStatus(ctx context.Context, status domain.InvestmentStatus, updatedBefore clock.Instant, limit int) ([]domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListInvestmentsByStatus(ctx, status, updatedBefore, limit)
}

func (s *MemoryStore) CountConfirmedByInvestor(ctx context.Context, campaignID, investorID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().CountConfirmedByInvestor(ctx, campaignID, investorID)
}

func (s *MemoryStore) CountTierReservations(ctx context.Context, campaignID uuid.UUID, tierID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().CountTierReservations(ctx, campaignID, tierID)
}

func (s *MemoryStore) SumConfirmed(ctx context.Context, campaignID uuid.UUID) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().SumConfirmed(ctx, campaignID)
}

func (s *MemoryStore) GetRefund(ctx context.Context, investmentID uuid.UUID) (domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetRefund(ctx, investmentID)
}

func (s *MemoryStore) ListRefundsDue(ctx context.Context, now clock.Instant, limit int) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListRefundsDue(ctx, now, limit)
}

func (s *MemoryStore) ListStuckRefunds(ctx context.Context, createdBefore clock.Instant, limit int) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListStuckRefunds(ctx, createdBefore, limit)
}

func (s *MemoryStore) ListRefundsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListRefundsByCampaign(ctx, campaignID)
}

func (s *MemoryStore) ListExpiries(ctx context.Context, dueBy clock.Instant, limit int) ([]domain.ExpirySchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListExpiries(ctx, dueBy, limit)
}

func (s *MemoryStore) ListUndispatchedEvents(ctx context.Context, occurredBefore clock.Instant, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListUndispatchedEvents(ctx, occurredBefore, limit)
}

func (s *MemoryStore) GetSettlement(ctx context.Context, campaignID uuid.UUID) (domain.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().GetSettlement(ctx, campaignID)
}

func (s *MemoryStore) ListReconciliationAudits(ctx context.Context, campaignID uuid.UUID) ([]domain.ReconciliationAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view().ListReconciliationAudits(ctx, campaignID)
}

// memView 无锁读取，调用方持有锁
type memView struct {
	s *MemoryStore
}

func (v memView) GetCampaign(_ context.Context, id uuid.UUID) (domain.Campaign, error) {
	c, ok := v.s.campaigns[id]
	if !ok {
		return domain.Campaign{}, apperr.NotFound(apperr.CodeCampaignNotFound, "campaign %s not found", id)
	}
	return cloneCampaign(c), nil
}

func (v memView) FindOpenCampaignByProject(_ context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	for _, c := range v.s.campaigns {
		if c.ProjectID == projectID && !c.Status.Terminal() {
			return cloneCampaign(c), nil
		}
	}
	return domain.Campaign{}, apperr.NotFound(apperr.CodeCampaignNotFound, "project %s has no open campaign", projectID)
}

func (v memView) LatestCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	if c, err := v.FindOpenCampaignByProject(ctx, projectID); err == nil {
		return c, nil
	}
	var latest *domain.Campaign
	for _, c := range v.s.campaigns {
		if c.ProjectID != projectID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			c := c
			latest = &c
		}
	}
	if latest == nil {
		return domain.Campaign{}, apperr.NotFound(apperr.CodeCampaignNotFound, "project %s has no campaign", projectID)
	}
	return cloneCampaign(*latest), nil
}

func (v memView) ListCampaigns(_ context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error) {
	var out []domain.Campaign
	for _, c := range v.s.campaigns {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
			continue
		}
		if filter.StartsBefore != nil && c.StartTime.After(*filter.StartsBefore) {
			continue
		}
		if filter.ClosedSince != nil && (c.ClosedAt == nil || c.ClosedAt.Before(*filter.ClosedSince)) {
			continue
		}
		out = append(out, cloneCampaign(c))
	}

	sort.Slice(out, func(i, j int) bool {
		if filter.Order == OrderEndingSoonest {
			if !out[i].EndTime.Equal(out[j].EndTime) {
				return out[i].EndTime.Before(out[j].EndTime)
			}
		} else if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	total := int64(len(out))
	if filter.Page != nil {
		out = paginate(out, *filter.Page)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (v memView) GetInvestment(_ context.Context, id uuid.UUID) (domain.Investment, error) {
	inv, ok := v.s.investments[id]
	if !ok {
		return domain.Investment{}, apperr.NotFound(apperr.CodeInvestmentNotFound, "investment %s not found", id)
	}
	return cloneInvestment(inv), nil
}

func (v memView) FindInvestmentByPaymentRef(_ context.Context, ref string) (domain.Investment, error) {
	for _, inv := range v.s.investments {
		if ref != "" && inv.PaymentReference == ref {
			return cloneInvestment(inv), nil
		}
	}
	return domain.Investment{}, apperr.NotFound(apperr.CodeInvestmentNotFound, "no investment with payment reference %q", ref)
}

func (v memView) ListInvestmentsByCampaign(_ context.Context, campaignID uuid.UUID, statuses ...domain.InvestmentStatus) ([]domain.Investment, error) {
	out := v.filterInvestments(func(inv domain.Investment) bool {
		return inv.CampaignID == campaignID && (len(statuses) == 0 || containsInvestmentStatus(statuses, inv.Status))
	})
	return out, nil
}

func (v memView) ListInvestmentsByInvestor(_ context.Context, investorID uuid.UUID, page domain.Page) ([]domain.Investment, int64, error) {
	out := v.filterInvestments(func(inv domain.Investment) bool {
		return inv.InvestorID == investorID
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return paginate(out, page), int64(len(out)), nil
}

func (v memView) ListInvestmentsByStatus(_ context.Context, status domain.InvestmentStatus, updatedBefore clock.Instant, limit int) ([]domain.Investment, error) {
	out := v.filterInvestments(func(inv domain.Investment) bool {
		return inv.Status == status && inv.UpdatedAt.Before(updatedBefore)
	})
	return truncate(out, limit), nil
}

func (v memView) CountConfirmedByInvestor(_ context.Context, campaignID, investorID uuid.UUID) (int64, error) {
	out := v.filterInvestments(func(inv domain.Investment) bool {
		return inv.CampaignID == campaignID && inv.InvestorID == investorID && inv.Status == domain.InvestmentConfirmed
	})
	return int64(len(out)), nil
}

func (v memView) CountTierReservations(_ context.Context, campaignID uuid.UUID, tierID string) (int64, error) {
	live := []domain.InvestmentStatus{domain.InvestmentPending, domain.InvestmentPaid, domain.InvestmentConfirmed}
	out := v.filterInvestments(func(inv domain.Investment) bool {
		return inv.CampaignID == campaignID && inv.RewardTierID == tierID && containsInvestmentStatus(live, inv.Status)
	})
	return int64(len(out)), nil
}

func (v memView) SumConfirmed(_ context.Context, campaignID uuid.UUID) (int64, int64, error) {
	var sum int64
	investors := make(map[uuid.UUID]struct{})
	for _, inv := range v.s.investments {
		if inv.CampaignID == campaignID && inv.Status == domain.InvestmentConfirmed {
			sum += inv.Amount.Minor()
			investors[inv.InvestorID] = struct{}{}
		}
	}
	return sum, int64(len(investors)), nil
}

func (v memView) GetRefund(_ context.Context, investmentID uuid.UUID) (domain.Refund, error) {
	r, ok := v.s.refunds[investmentID]
	if !ok {
		return domain.Refund{}, apperr.NotFound(apperr.CodeRefundNotFound, "refund for investment %s not found", investmentID)
	}
	return cloneRefund(r), nil
}

func (v memView) ListRefundsDue(_ context.Context, now clock.Instant, limit int) ([]domain.Refund, error) {
	out := v.filterRefunds(func(r domain.Refund) bool {
		return r.State == domain.RefundPending && !r.NextAttemptAt.After(now)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return truncate(out, limit), nil
}

func (v memView) ListStuckRefunds(_ context.Context, createdBefore clock.Instant, limit int) ([]domain.Refund, error) {
	out := v.filterRefunds(func(r domain.Refund) bool {
		return r.State == domain.RefundPending && r.CreatedAt.Before(createdBefore)
	})
	return truncate(out, limit), nil
}

func (v memView) ListRefundsByCampaign(_ context.Context, campaignID uuid.UUID) ([]domain.Refund, error) {
	return v.filterRefunds(func(r domain.Refund) bool { return r.CampaignID == campaignID }), nil
}

func (v memView) ListExpiries(_ context.Context, dueBy clock.Instant, limit int) ([]domain.ExpirySchedule, error) {
	var out []domain.ExpirySchedule
	for _, e := range v.s.expiries {
		if !e.EndTime.After(dueBy) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].EndTime.Before(out[j].EndTime)
		}
		return out[i].CampaignID.String() < out[j].CampaignID.String()
	})
	return truncate(out, limit), nil
}

func (v memView) ListUndispatchedEvents(_ context.Context, occurredBefore clock.Instant, limit int) ([]domain.Event, error) {
	var out []domain.Event
	for _, e := range v.s.events {
		if e.dispatchedAt == nil && !e.event.OccurredAt.After(occurredBefore) {
			out = append(out, e.event)
		}
	}
	return truncate(out, limit), nil
}

func (v memView) GetSettlement(_ context.Context, campaignID uuid.UUID) (domain.Settlement, error) {
	st, ok := v.s.settlements[campaignID]
	if !ok {
		return domain.Settlement{}, apperr.NotFound(apperr.CodeNotFound, "campaign %s has no settlement", campaignID)
	}
	return st, nil
}

func (v memView) ListReconciliationAudits(_ context.Context, campaignID uuid.UUID) ([]domain.ReconciliationAudit, error) {
	var out []domain.ReconciliationAudit
	for _, a := range v.s.audits {
		if a.CampaignID == campaignID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v memView) filterInvestments(keep func(domain.Investment) bool) []domain.Investment {
	var out []domain.Investment
	for _, inv := range v.s.investments {
		if keep(inv) {
			out = append(out, cloneInvestment(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (v memView) filterRefunds(keep func(domain.Refund) bool) []domain.Refund {
	var out []domain.Refund
	for _, r := range v.s.refunds {
		if keep(r) {
			out = append(out, cloneRefund(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].InvestmentID.String() < out[j].InvestmentID.String()
	})
	return out
}

// memTx 事务句柄
type memTx struct {
	memView
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// LockCampaign 内存存储的事务本身已互斥
func (tx *memTx) LockCampaign(context.Context, uuid.UUID) error {
	return nil
}

func (tx *memTx) InsertCampaign(_ context.Context, c *domain.Campaign) error {
	s := tx.s
	if _, exists := s.campaigns[c.ID]; exists {
		return apperr.Conflict(apperr.CodeDuplicate, "campaign %s already exists", c.ID)
	}
	if !c.Status.Terminal() {
		for _, other := range s.campaigns {
			if other.ProjectID == c.ProjectID && !other.Status.Terminal() {
				return apperr.Conflict(apperr.CodeOpenCampaignExists, "project %s already has an open campaign", c.ProjectID)
			}
		}
	}
	s.campaigns[c.ID] = cloneCampaign(*c)
	id := c.ID
	tx.undo = append(tx.undo, func() { delete(s.campaigns, id) })
	return nil
}

func (tx *memTx) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	s := tx.s
	prev, ok := s.campaigns[c.ID]
	if !ok {
		return apperr.NotFound(apperr.CodeCampaignNotFound, "campaign %s not found", c.ID)
	}
	if prev.Version != c.Version {
		return apperr.VersionConflict("campaign", c.ID)
	}
	c.Version++
	s.campaigns[c.ID] = cloneCampaign(*c)
	tx.undo = append(tx.undo, func() { s.campaigns[prev.ID] = prev })
	return nil
}

func (tx *memTx) NextInvestmentSequence(context.Context) (int64, error) {
	tx.s.sequence++
	return tx.s.sequence, nil
}

func (tx *memTx) InsertInvestment(_ context.Context, inv *domain.Investment) error {
	s := tx.s
	if _, exists := s.investments[inv.ID]; exists {
		return apperr.Conflict(apperr.CodeDuplicate, "investment %s already exists", inv.ID)
	}
	if err := tx.checkPaymentRef(*inv); err != nil {
		return err
	}
	s.investments[inv.ID] = cloneInvestment(*inv)
	id := inv.ID
	tx.undo = append(tx.undo, func() { delete(s.investments, id) })
	return nil
}

func (tx *memTx) UpdateInvestment(_ context.Context, inv *domain.Investment) error {
	s := tx.s
	prev, ok := s.investments[inv.ID]
	if !ok {
		return apperr.NotFound(apperr.CodeInvestmentNotFound, "investment %s not found", inv.ID)
	}
	if err := tx.checkPaymentRef(*inv); err != nil {
		return err
	}
	s.investments[inv.ID] = cloneInvestment(*inv)
	tx.undo = append(tx.undo, func() { s.investments[prev.ID] = prev })
	return nil
}

// checkPaymentRef 与数据库唯一索引 uniq_investment_payment_ref_global 保持一致
func (tx *memTx) checkPaymentRef(inv domain.Investment) error {
	if inv.PaymentReference == "" {
		return nil
	}
	for _, other := range tx.s.investments {
		if other.ID != inv.ID && other.PaymentReference == inv.PaymentReference {
			return apperr.Conflict(apperr.CodePaymentRefInUse, "payment reference %q already attached to investment %s", inv.PaymentReference, other.ID)
		}
	}
	return nil
}

func (tx *memTx) InsertRefund(_ context.Context, r *domain.Refund) error {
	s := tx.s
	if _, exists := s.refunds[r.InvestmentID]; exists {
		return apperr.Conflict(apperr.CodeDuplicate, "refund for investment %s already exists", r.InvestmentID)
	}
	s.refunds[r.InvestmentID] = cloneRefund(*r)
	id := r.InvestmentID
	tx.undo = append(tx.undo, func() { delete(s.refunds, id) })
	return nil
}

func (tx *memTx) UpdateRefund(_ context.Context, r *domain.Refund) error {
	s := tx.s
	prev, ok := s.refunds[r.InvestmentID]
	if !ok {
		return apperr.NotFound(apperr.CodeRefundNotFound, "refund for investment %s not found", r.InvestmentID)
	}
	s.refunds[r.InvestmentID] = cloneRefund(*r)
	tx.undo = append(tx.undo, func() { s.refunds[prev.InvestmentID] = prev })
	return nil
}

func (tx *memTx) UpsertExpiry(_ context.Context, e domain.ExpirySchedule) error {
	s := tx.s
	prev, existed := s.expiries[e.CampaignID]
	s.expiries[e.CampaignID] = e
	tx.undo = append(tx.undo, func() {
		if existed {
			s.expiries[e.CampaignID] = prev
		} else {
			delete(s.expiries, e.CampaignID)
		}
	})
	return nil
}

func (tx *memTx) DeleteExpiry(_ context.Context, campaignID uuid.UUID) error {
	s := tx.s
	prev, existed := s.expiries[campaignID]
	if !existed {
		return nil
	}
	delete(s.expiries, campaignID)
	tx.undo = append(tx.undo, func() { s.expiries[campaignID] = prev })
	return nil
}

func (tx *memTx) InsertEvents(_ context.Context, events []domain.Event) error {
	s := tx.s
	n := len(s.events)
	for _, e := range events {
		s.events = append(s.events, memEvent{event: e})
	}
	tx.undo = append(tx.undo, func() { s.events = s.events[:n] })
	return nil
}

func (tx *memTx) MarkEventsDispatched(_ context.Context, ids []uuid.UUID, at clock.Instant) error {
	s := tx.s
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.events {
		if _, ok := want[s.events[i].event.ID]; !ok || s.events[i].dispatchedAt != nil {
			continue
		}
		idx := i
		s.events[idx].dispatchedAt = at.Ptr()
		tx.undo = append(tx.undo, func() { s.events[idx].dispatchedAt = nil })
	}
	return nil
}

func (tx *memTx) InsertSettlement(_ context.Context, st *domain.Settlement) error {
	s := tx.s
	if _, exists := s.settlements[st.CampaignID]; exists {
		return apperr.Conflict(apperr.CodeDuplicate, "campaign %s already settled", st.CampaignID)
	}
	s.settlements[st.CampaignID] = *st
	id := st.CampaignID
	tx.undo = append(tx.undo, func() { delete(s.settlements, id) })
	return nil
}

func (tx *memTx) InsertReconciliationAudit(_ context.Context, a *domain.ReconciliationAudit) error {
	s := tx.s
	n := len(s.audits)
	s.audits = append(s.audits, *a)
	tx.undo = append(tx.undo, func() { s.audits = s.audits[:n] })
	return nil
}

func containsStatus(list []domain.CampaignStatus, s domain.CampaignStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsInvestmentStatus(list []domain.InvestmentStatus, s domain.InvestmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page domain.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCampaign(c domain.Campaign) domain.Campaign {
	c.MaxInvestment = clonePtr(c.MaxInvestment)
	c.ClosedAt = clonePtr(c.ClosedAt)
	if c.RewardTiers != nil {
		tiers := make([]domain.RewardTier, len(c.RewardTiers))
		for i, tier := range c.RewardTiers {
			tier.Limit = clonePtr(tier.Limit)
			tiers[i] = tier
		}
		c.RewardTiers = tiers
	}
	return c
}

func cloneInvestment(inv domain.Investment) domain.Investment {
	inv.PaidAt = clonePtr(inv.PaidAt)
	inv.ConfirmedAt = clonePtr(inv.ConfirmedAt)
	inv.ClosedAt = clonePtr(inv.ClosedAt)
	return inv
}

func cloneRefund(r domain.Refund) domain.Refund {
	r.SettledAt = clonePtr(r.SettledAt)
	return r
}
