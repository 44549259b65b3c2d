package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore PostgreSQL 存储
type GormStore struct {
	gormReader
}

// NewGormStore 创建存储，db 由 Init 返回
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{gormReader{db: db}}
}

var (
	_ Store = (*GormStore)(nil)
	_ Tx    = (*gormTx)(nil)
)

// Atomic 在数据库事务中执行 fn
func (s *GormStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{gormReader{db: db}})
	})
}

type gormReader struct {
	db *gorm.DB
}

var liveInvestmentStatuses = []string{
	string(domain.InvestmentPending),
	string(domain.InvestmentPaid),
	string(domain.InvestmentConfirmed),
}

var openCampaignStatuses = []string{
	string(domain.CampaignPending),
	string(domain.CampaignActive),
}

func campaignNotFound(id uuid.UUID) func() error {
	return func() error { return apperr.NotFound(apperr.CodeCampaignNotFound, "campaign %s not found", id) }
}

func (r gormReader) GetCampaign(ctx context.Context, id uuid.UUID) (domain.Campaign, error) {
	var m model.CampaignModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return domain.Campaign{}, translateError(err, campaignNotFound(id))
	}
	return fromCampaignModel(m)
}

func (r gormReader) FindOpenCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	var m model.CampaignModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status IN ?", projectID, openCampaignStatuses).
		Take(&m).Error
	if err != nil {
		return domain.Campaign{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeCampaignNotFound, "project %s has no open campaign", projectID)
		})
	}
	return fromCampaignModel(m)
}

func (r gormReader) LatestCampaignByProject(ctx context.Context, projectID uuid.UUID) (domain.Campaign, error) {
	var m model.CampaignModel
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order(clause.Expr{SQL: "CASE WHEN status IN ? THEN 0 ELSE 1 END", Vars: []interface{}{openCampaignStatuses}}).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return domain.Campaign{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeCampaignNotFound, "project %s has no campaign", projectID)
		})
	}
	return fromCampaignModel(m)
}

func (r gormReader) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]domain.Campaign, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.CampaignModel{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.StartsBefore != nil {
		q = q.Where("start_time <= ?", filter.StartsBefore.Time())
	}
	if filter.ClosedSince != nil {
		q = q.Where("closed_at >= ?", filter.ClosedSince.Time())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, nil)
	}

	if filter.Order == OrderEndingSoonest {
		q = q.Order("end_time ASC")
	} else {
		q = q.Order("created_at DESC")
	}
	q = q.Order("id")
	if filter.Page != nil {
		page := filter.Page.Normalize()
		q = q.Offset(page.Offset()).Limit(page.Size)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []model.CampaignModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, nil)
	}
	out := make([]domain.Campaign, 0, len(rows))
	for _, row := range rows {
		c, err := fromCampaignModel(row)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, nil
}

func (r gormReader) GetInvestment(ctx context.Context, id uuid.UUID) (domain.Investment, error) {
	var m model.InvestmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return domain.Investment{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeInvestmentNotFound, "investment %s not found", id)
		})
	}
	return fromInvestmentModel(m)
}

func (r gormReader) FindInvestmentByPaymentRef(ctx context.Context, ref string) (domain.Investment, error) {
	var m model.InvestmentModel
	err := r.db.WithContext(ctx).Where("payment_reference = ?", ref).Take(&m).Error
	if err != nil {
		return domain.Investment{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeInvestmentNotFound, "no investment with payment reference %q", ref)
		})
	}
	return fromInvestmentModel(m)
}

func (r gormReader) ListInvestmentsByCampaign(ctx context.Context, campaignID uuid.UUID, statuses ...domain.InvestmentStatus) ([]domain.Investment, error) {
	q := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID)
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		q = q.Where("status IN ?", values)
	}
	var rows []model.InvestmentModel
	if err := q.Order("sequence").Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return fromInvestmentModels(rows)
}

func (r gormReader) ListInvestmentsByInvestor(ctx context.Context, investorID uuid.UUID, page domain.Page) ([]domain.Investment, int64, error) {
	page = page.Normalize()
	q := r.db.WithContext(ctx).Model(&model.InvestmentModel{}).Where("investor_id = ?", investorID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translateError(err, nil)
	}
	var rows []model.InvestmentModel
	if err := q.Order("sequence DESC").Offset(page.Offset()).Limit(page.Size).Find(&rows).Error; err != nil {
		return nil, 0, translateError(err, nil)
	}
	out, err := fromInvestmentModels(rows)
	return out, total, err
}

func (r gormReader) ListInvestmentsByStatus(ctx context.Context, status domain.InvestmentStatus, updatedBefore clock.Instant, limit int) ([]domain.Investment, error) {
	q := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", string(status), updatedBefore.Time()).
		Order("sequence")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.InvestmentModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return fromInvestmentModels(rows)
}

func (r gormReader) CountConfirmedByInvestor(ctx context.Context, campaignID, investorID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.InvestmentModel{}).
		Where("campaign_id = ? AND investor_id = ? AND status = ?", campaignID, investorID, string(domain.InvestmentConfirmed)).
		Count(&n).Error
	return n, translateError(err, nil)
}

func (r gormReader) CountTierReservations(ctx context.Context, campaignID uuid.UUID, tierID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.InvestmentModel{}).
		Where("campaign_id = ? AND reward_tier_id = ? AND status IN ?", campaignID, tierID, liveInvestmentStatuses).
		Count(&n).Error
	return n, translateError(err, nil)
}

func (r gormReader) SumConfirmed(ctx context.Context, campaignID uuid.UUID) (int64, int64, error) {
	var row struct {
		Total     int64
		Investors int64
	}
	err := r.db.WithContext(ctx).Model(&model.InvestmentModel{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(DISTINCT investor_id) AS investors").
		Where("campaign_id = ? AND status = ?", campaignID, string(domain.InvestmentConfirmed)).
		Scan(&row).Error
	if err != nil {
		return 0, 0, translateError(err, nil)
	}
	return row.Total, row.Investors, nil
}

func (r gormReader) GetRefund(ctx context.Context, investmentID uuid.UUID) (domain.Refund, error) {
	var m model.RefundRecordModel
	if err := r.db.WithContext(ctx).Where("investment_id = ?", investmentID).Take(&m).Error; err != nil {
		return domain.Refund{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeRefundNotFound, "refund for investment %s not found", investmentID)
		})
	}
	return fromRefundModel(m)
}

func (r gormReader) ListRefundsDue(ctx context.Context, now clock.Instant, limit int) ([]domain.Refund, error) {
	q := r.db.WithContext(ctx).
		Where("state = ? AND next_attempt_at <= ?", string(domain.RefundPending), now.Time()).
		Order("next_attempt_at")
	return r.findRefunds(q, limit)
}

func (r gormReader) ListStuckRefunds(ctx context.Context, createdBefore clock.Instant, limit int) ([]domain.Refund, error) {
	q := r.db.WithContext(ctx).
		Where("state = ? AND created_at < ?", string(domain.RefundPending), createdBefore.Time()).
		Order("created_at")
	return r.findRefunds(q, limit)
}

func (r gormReader) ListRefundsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]domain.Refund, error) {
	q := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("created_at").Order("investment_id")
	return r.findRefunds(q, 0)
}

func (r gormReader) findRefunds(q *gorm.DB, limit int) ([]domain.Refund, error) {
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.RefundRecordModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return fromRefundModels(rows)
}

func (r gormReader) ListExpiries(ctx context.Context, dueBy clock.Instant, limit int) ([]domain.ExpirySchedule, error) {
	q := r.db.WithContext(ctx).Where("end_time <= ?", dueBy.Time()).Order("end_time").Order("campaign_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.ExpiryScheduleModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	out := make([]domain.ExpirySchedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExpirySchedule{
			CampaignID: row.CampaignId,
			EndTime:    clock.At(row.EndTime),
			CreatedAt:  clock.At(row.CreatedAt),
		})
	}
	return out, nil
}

func (r gormReader) ListUndispatchedEvents(ctx context.Context, occurredBefore clock.Instant, limit int) ([]domain.Event, error) {
	q := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL AND occurred_at <= ?", occurredBefore.Time()).
		Order("seq")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.EventModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	out := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		e, err := fromEventModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r gormReader) GetSettlement(ctx context.Context, campaignID uuid.UUID) (domain.Settlement, error) {
	var m model.SettlementRecordModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Take(&m).Error; err != nil {
		return domain.Settlement{}, translateError(err, func() error {
			return apperr.NotFound(apperr.CodeNotFound, "campaign %s has no settlement", campaignID)
		})
	}
	return fromSettlementModel(m)
}

func (r gormReader) ListReconciliationAudits(ctx context.Context, campaignID uuid.UUID) ([]domain.ReconciliationAudit, error) {
	var rows []model.ReconciliationAuditModel
	if err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("detected_at").Find(&rows).Error; err != nil {
		return nil, translateError(err, nil)
	}
	out := make([]domain.ReconciliationAudit, 0, len(rows))
	for _, row := range rows {
		a, err := fromAuditModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// gormTx 事务句柄，读操作走同一个事务连接
type gormTx struct {
	gormReader
}

// LockCampaign 事务级 advisory lock，提交或回滚时自动释放
func (tx *gormTx) LockCampaign(ctx context.Context, id uuid.UUID) error {
	err := tx.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", id.String()).Error
	return translateError(err, nil)
}

func (tx *gormTx) InsertCampaign(ctx context.Context, c *domain.Campaign) error {
	m, err := toCampaignModel(*c)
	if err != nil {
		return err
	}
	return translateError(tx.db.WithContext(ctx).Create(&m).Error, nil)
}

func (tx *gormTx) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	m, err := toCampaignModel(*c)
	if err != nil {
		return err
	}
	m.Version = c.Version + 1
	res := tx.db.WithContext(ctx).Model(&model.CampaignModel{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Select("*").Omit("id", "created_at").
		Updates(&m)
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		if _, err := tx.GetCampaign(ctx, c.ID); err != nil {
			return err
		}
		return apperr.VersionConflict("campaign", c.ID)
	}
	c.Version = m.Version
	return nil
}

func (tx *gormTx) NextInvestmentSequence(ctx context.Context) (int64, error) {
	var n int64
	err := tx.db.WithContext(ctx).Raw("SELECT nextval('investment_sequence')").Scan(&n).Error
	return n, translateError(err, nil)
}

func (tx *gormTx) InsertInvestment(ctx context.Context, inv *domain.Investment) error {
	m := toInvestmentModel(*inv)
	return translateError(tx.db.WithContext(ctx).Create(&m).Error, nil)
}

func (tx *gormTx) UpdateInvestment(ctx context.Context, inv *domain.Investment) error {
	m := toInvestmentModel(*inv)
	res := tx.db.WithContext(ctx).Model(&model.InvestmentModel{}).
		Where("id = ?", inv.ID).
		Select("*").Omit("id", "created_at", "campaign_id", "investor_id", "sequence").
		Updates(&m)
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.CodeInvestmentNotFound, "investment %s not found", inv.ID)
	}
	return nil
}

func (tx *gormTx) InsertRefund(ctx context.Context, r *domain.Refund) error {
	m := toRefundModel(*r)
	return translateError(tx.db.WithContext(ctx).Create(&m).Error, nil)
}

func (tx *gormTx) UpdateRefund(ctx context.Context, r *domain.Refund) error {
	m := toRefundModel(*r)
	res := tx.db.WithContext(ctx).Model(&model.RefundRecordModel{}).
		Where("investment_id = ?", r.InvestmentID).
		Select("*").Omit("investment_id", "created_at").
		Updates(&m)
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(apperr.CodeRefundNotFound, "refund for investment %s not found", r.InvestmentID)
	}
	return nil
}

func (tx *gormTx) UpsertExpiry(ctx context.Context, s domain.ExpirySchedule) error {
	m := model.ExpiryScheduleModel{CampaignId: s.CampaignID, EndTime: s.EndTime.Time(), CreatedAt: s.CreatedAt.Time()}
	err := tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"end_time"}),
	}).Create(&m).Error
	return translateError(err, nil)
}

func (tx *gormTx) DeleteExpiry(ctx context.Context, campaignID uuid.UUID) error {
	err := tx.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Delete(&model.ExpiryScheduleModel{}).Error
	return translateError(err, nil)
}

func (tx *gormTx) InsertEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]model.EventModel, 0, len(events))
	for _, e := range events {
		rows = append(rows, toEventModel(e))
	}
	return translateError(tx.db.WithContext(ctx).Create(&rows).Error, nil)
}

func (tx *gormTx) MarkEventsDispatched(ctx context.Context, ids []uuid.UUID, at clock.Instant) error {
	if len(ids) == 0 {
		return nil
	}
	err := tx.db.WithContext(ctx).Model(&model.EventModel{}).
		Where("id IN ? AND dispatched_at IS NULL", ids).
		Update("dispatched_at", at.Time()).Error
	return translateError(err, nil)
}

func (tx *gormTx) InsertSettlement(ctx context.Context, s *domain.Settlement) error {
	m := toSettlementModel(*s)
	return translateError(tx.db.WithContext(ctx).Create(&m).Error, nil)
}

func (tx *gormTx) InsertReconciliationAudit(ctx context.Context, a *domain.ReconciliationAudit) error {
	m := toAuditModel(*a)
	return translateError(tx.db.WithContext(ctx).Create(&m).Error, nil)
}
