package domain

import (
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/money"
)

// EventType 账本事件类型
type EventType string

const (
	EventCampaignActivated   EventType = "CampaignActivated"
	EventInvestmentConfirmed EventType = "InvestmentConfirmed"
	EventCampaignSucceeded   EventType = "CampaignSucceeded"
	EventCampaignFailed      EventType = "CampaignFailed"
	EventCampaignCancelled   EventType = "CampaignCancelled"
	EventInvestmentRefunded  EventType = "InvestmentRefunded"
)

// Event 状态变更事件
type Event struct {
	ID              uuid.UUID      `json:"id"`
	Type            EventType      `json:"type"`
	CampaignID      uuid.UUID      `json:"campaign_id"`
	InvestmentID    *uuid.UUID     `json:"investment_id,omitempty"`
	InvestorID      *uuid.UUID     `json:"investor_id,omitempty"`
	Amount          *money.Money   `json:"amount,omitempty"`
	RaisedAmount    money.Money    `json:"raised_amount"`
	TargetAmount    money.Money    `json:"target_amount"`
	Currency        string         `json:"currency"`
	CampaignStatus  CampaignStatus `json:"campaign_status"`
	CampaignVersion int64          `json:"campaign_version"`
	EndsAt          *clock.Instant `json:"ends_at,omitempty"`
	OccurredAt      clock.Instant  `json:"occurred_at"`
}

// NewCampaignEvent 众筹级事件
func NewCampaignEvent(t EventType, c Campaign, at clock.Instant) Event {
	e := Event{
		ID:              uuid.New(),
		Type:            t,
		CampaignID:      c.ID,
		RaisedAmount:    c.RaisedAmount,
		TargetAmount:    c.TargetAmount,
		Currency:        c.Currency.Code(),
		CampaignStatus:  c.Status,
		CampaignVersion: c.Version,
		OccurredAt:      at,
	}
	if t == EventCampaignActivated {
		e.EndsAt = c.EndTime.Ptr()
	}
	return e
}

// NewInvestmentEvent 投资级事件
func NewInvestmentEvent(t EventType, c Campaign, inv Investment, at clock.Instant) Event {
	e := NewCampaignEvent(t, c, at)
	investmentID, investorID, amount := inv.ID, inv.InvestorID, inv.Amount
	e.InvestmentID = &investmentID
	e.InvestorID = &investorID
	e.Amount = &amount
	return e
}
