package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/model"
	"github.com/leopark123/ideahub/internal/money"
)

// rewardTierRow 回报档位的 JSON 存储格式
type rewardTierRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Amount      int64  `json:"amount"`
	Limit       *int   `json:"limit,omitempty"`
}

func timePtr(i *clock.Instant) *time.Time {
	if i == nil {
		return nil
	}
	t := i.Time()
	return &t
}

func instantPtr(t *time.Time) *clock.Instant {
	if t == nil {
		return nil
	}
	return clock.At(*t).Ptr()
}

func toCampaignModel(c domain.Campaign) (model.CampaignModel, error) {
	tiers := make([]rewardTierRow, 0, len(c.RewardTiers))
	for _, t := range c.RewardTiers {
		tiers = append(tiers, rewardTierRow{ID: t.ID, Title: t.Title, Description: t.Description, Amount: t.Amount.Minor(), Limit: t.Limit})
	}
	raw, err := json.Marshal(tiers)
	if err != nil {
		return model.CampaignModel{}, fmt.Errorf("encode reward tiers: %w", err)
	}
	m := model.CampaignModel{
		Id:            c.ID,
		CreatedAt:     c.CreatedAt.Time(),
		UpdatedAt:     c.UpdatedAt.Time(),
		ProjectId:     c.ProjectID,
		Currency:      c.Currency.Code(),
		TargetAmount:  c.TargetAmount.Minor(),
		MinInvestment: c.MinInvestment.Minor(),
		RaisedAmount:  c.RaisedAmount.Minor(),
		InvestorCount: c.InvestorCount,
		RewardTiers:   string(raw),
		StartTime:     c.StartTime.Time(),
		EndTime:       c.EndTime.Time(),
		ClosedAt:      timePtr(c.ClosedAt),
		Status:        string(c.Status),
		Version:       c.Version,
	}
	if c.MaxInvestment != nil {
		v := c.MaxInvestment.Minor()
		m.MaxInvestment = &v
	}
	return m, nil
}

func fromCampaignModel(m model.CampaignModel) (domain.Campaign, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Campaign{}, fmt.Errorf("campaign %s: %w", m.Id, err)
	}
	var rows []rewardTierRow
	if m.RewardTiers != "" {
		if err := json.Unmarshal([]byte(m.RewardTiers), &rows); err != nil {
			return domain.Campaign{}, fmt.Errorf("campaign %s: decode reward tiers: %w", m.Id, err)
		}
	}
	c := domain.Campaign{
		ID:            m.Id,
		ProjectID:     m.ProjectId,
		Currency:      cur,
		TargetAmount:  money.FromMinor(m.TargetAmount, cur),
		MinInvestment: money.FromMinor(m.MinInvestment, cur),
		RaisedAmount:  money.FromMinor(m.RaisedAmount, cur),
		InvestorCount: m.InvestorCount,
		StartTime:     clock.At(m.StartTime),
		EndTime:       clock.At(m.EndTime),
		Status:        domain.CampaignStatus(m.Status),
		Version:       m.Version,
		CreatedAt:     clock.At(m.CreatedAt),
		UpdatedAt:     clock.At(m.UpdatedAt),
		ClosedAt:      instantPtr(m.ClosedAt),
	}
	if m.MaxInvestment != nil {
		v := money.FromMinor(*m.MaxInvestment, cur)
		c.MaxInvestment = &v
	}
	for _, r := range rows {
		c.RewardTiers = append(c.RewardTiers, domain.RewardTier{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Amount:      money.FromMinor(r.Amount, cur),
			Limit:       r.Limit,
		})
	}
	return c, nil
}

func toInvestmentModel(inv domain.Investment) model.InvestmentModel {
	m := model.InvestmentModel{
		Id:            inv.ID,
		CreatedAt:     inv.CreatedAt.Time(),
		UpdatedAt:     inv.UpdatedAt.Time(),
		CampaignId:    inv.CampaignID,
		InvestorId:    inv.InvestorID,
		Sequence:      inv.Sequence,
		Amount:        inv.Amount.Minor(),
		Currency:      inv.Amount.Currency().Code(),
		Status:        string(inv.Status),
		PaymentMethod: string(inv.PaymentMethod),
		RewardTierId:  inv.RewardTierID,
		Notes:         inv.Notes,
		PaidAt:        timePtr(inv.PaidAt),
		ConfirmedAt:   timePtr(inv.ConfirmedAt),
		ClosedAt:      timePtr(inv.ClosedAt),
	}
	if inv.PaymentReference != "" {
		ref := inv.PaymentReference
		m.PaymentReference = &ref
	}
	return m
}

func fromInvestmentModel(m model.InvestmentModel) (domain.Investment, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("investment %s: %w", m.Id, err)
	}
	inv := domain.Investment{
		ID:            m.Id,
		CampaignID:    m.CampaignId,
		InvestorID:    m.InvestorId,
		Sequence:      m.Sequence,
		Amount:        money.FromMinor(m.Amount, cur),
		Status:        domain.InvestmentStatus(m.Status),
		PaymentMethod: domain.PaymentMethod(m.PaymentMethod),
		RewardTierID:  m.RewardTierId,
		Notes:         m.Notes,
		CreatedAt:     clock.At(m.CreatedAt),
		UpdatedAt:     clock.At(m.UpdatedAt),
		PaidAt:        instantPtr(m.PaidAt),
		ConfirmedAt:   instantPtr(m.ConfirmedAt),
		ClosedAt:      instantPtr(m.ClosedAt),
	}
	if m.PaymentReference != nil {
		inv.PaymentReference = *m.PaymentReference
	}
	return inv, nil
}

func fromInvestmentModels(rows []model.InvestmentModel) ([]domain.Investment, error) {
	out := make([]domain.Investment, 0, len(rows))
	for _, r := range rows {
		inv, err := fromInvestmentModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func toRefundModel(r domain.Refund) model.RefundRecordModel {
	return model.RefundRecordModel{
		InvestmentId:     r.InvestmentID,
		CreatedAt:        r.CreatedAt.Time(),
		UpdatedAt:        r.UpdatedAt.Time(),
		CampaignId:       r.CampaignID,
		InvestorId:       r.InvestorID,
		Amount:           r.Amount.Minor(),
		Currency:         r.Amount.Currency().Code(),
		PaymentReference: r.PaymentReference,
		Reason:           string(r.Reason),
		State:            string(r.State),
		Attempts:         r.Attempts,
		LastError:        r.LastError,
		ProviderRef:      r.ProviderRef,
		NextAttemptAt:    r.NextAttemptAt.Time(),
		SettledAt:        timePtr(r.SettledAt),
	}
}

func fromRefundModel(m model.RefundRecordModel) (domain.Refund, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Refund{}, fmt.Errorf("refund %s: %w", m.InvestmentId, err)
	}
	return domain.Refund{
		InvestmentID:     m.InvestmentId,
		CampaignID:       m.CampaignId,
		InvestorID:       m.InvestorId,
		Amount:           money.FromMinor(m.Amount, cur),
		PaymentReference: m.PaymentReference,
		Reason:           domain.RefundReason(m.Reason),
		State:            domain.RefundState(m.State),
		Attempts:         m.Attempts,
		LastError:        m.LastError,
		ProviderRef:      m.ProviderRef,
		NextAttemptAt:    clock.At(m.NextAttemptAt),
		CreatedAt:        clock.At(m.CreatedAt),
		UpdatedAt:        clock.At(m.UpdatedAt),
		SettledAt:        instantPtr(m.SettledAt),
	}, nil
}

func fromRefundModels(rows []model.RefundRecordModel) ([]domain.Refund, error) {
	out := make([]domain.Refund, 0, len(rows))
	for _, r := range rows {
		refund, err := fromRefundModel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, refund)
	}
	return out, nil
}

func toEventModel(e domain.Event) model.EventModel {
	m := model.EventModel{
		Id:              e.ID,
		EventType:       string(e.Type),
		CampaignId:      e.CampaignID,
		InvestmentId:    e.InvestmentID,
		InvestorId:      e.InvestorID,
		RaisedAmount:    e.RaisedAmount.Minor(),
		TargetAmount:    e.TargetAmount.Minor(),
		Currency:        e.Currency,
		CampaignStatus:  string(e.CampaignStatus),
		CampaignVersion: e.CampaignVersion,
		EndsAt:          timePtr(e.EndsAt),
		OccurredAt:      e.OccurredAt.Time(),
	}
	if e.Amount != nil {
		v := e.Amount.Minor()
		m.Amount = &v
	}
	return m
}

func fromEventModel(m model.EventModel) (domain.Event, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Event{}, fmt.Errorf("event %s: %w", m.Id, err)
	}
	e := domain.Event{
		ID:              m.Id,
		Type:            domain.EventType(m.EventType),
		CampaignID:      m.CampaignId,
		InvestmentID:    m.InvestmentId,
		InvestorID:      m.InvestorId,
		RaisedAmount:    money.FromMinor(m.RaisedAmount, cur),
		TargetAmount:    money.FromMinor(m.TargetAmount, cur),
		Currency:        m.Currency,
		CampaignStatus:  domain.CampaignStatus(m.CampaignStatus),
		CampaignVersion: m.CampaignVersion,
		EndsAt:          instantPtr(m.EndsAt),
		OccurredAt:      clock.At(m.OccurredAt),
	}
	if m.Amount != nil {
		v := money.FromMinor(*m.Amount, cur)
		e.Amount = &v
	}
	return e, nil
}

func toSettlementModel(s domain.Settlement) model.SettlementRecordModel {
	return model.SettlementRecordModel{
		Id:             s.ID,
		CampaignId:     s.CampaignID,
		Outcome:        string(s.Outcome),
		RaisedAmount:   s.RaisedAmount.Minor(),
		TargetAmount:   s.TargetAmount.Minor(),
		Currency:       s.TargetAmount.Currency().Code(),
		InvestorCount:  s.InvestorCount,
		ConfirmedCount: s.ConfirmedCount,
		RefundedCount:  s.RefundedCount,
		CancelledCount: s.CancelledCount,
		SettledAt:      s.SettledAt.Time(),
	}
}

func fromSettlementModel(m model.SettlementRecordModel) (domain.Settlement, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settlement %s: %w", m.Id, err)
	}
	return domain.Settlement{
		ID:             m.Id,
		CampaignID:     m.CampaignId,
		Outcome:        domain.CampaignStatus(m.Outcome),
		RaisedAmount:   money.FromMinor(m.RaisedAmount, cur),
		TargetAmount:   money.FromMinor(m.TargetAmount, cur),
		InvestorCount:  m.InvestorCount,
		ConfirmedCount: m.ConfirmedCount,
		RefundedCount:  m.RefundedCount,
		CancelledCount: m.CancelledCount,
		SettledAt:      clock.At(m.SettledAt),
	}, nil
}

func toAuditModel(a domain.ReconciliationAudit) model.ReconciliationAuditModel {
	return model.ReconciliationAuditModel{
		Id:                a.ID,
		CampaignId:        a.CampaignID,
		Currency:          a.RecordedRaised.Currency().Code(),
		RecordedRaised:    a.RecordedRaised.Minor(),
		ComputedRaised:    a.ComputedRaised.Minor(),
		RecordedInvestors: a.RecordedInvestors,
		ComputedInvestors: a.ComputedInvestors,
		Corrected:         a.Corrected,
		DetectedAt:        a.DetectedAt.Time(),
	}
}

func fromAuditModel(m model.ReconciliationAuditModel) (domain.ReconciliationAudit, error) {
	cur, err := money.ParseCurrency(m.Currency)
	if err != nil {
		return domain.ReconciliationAudit{}, fmt.Errorf("audit %s: %w", m.Id, err)
	}
	return domain.ReconciliationAudit{
		ID:                m.Id,
		CampaignID:        m.CampaignId,
		RecordedRaised:    money.FromMinor(m.RecordedRaised, cur),
		ComputedRaised:    money.FromMinor(m.ComputedRaised, cur),
		RecordedInvestors: m.RecordedInvestors,
		ComputedInvestors: m.ComputedInvestors,
		Corrected:         m.Corrected,
		DetectedAt:        clock.At(m.DetectedAt),
	}, nil
}
