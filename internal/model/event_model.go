package model

import (
	"time"

	"github.com/google/uuid"
)

// EventModel 账本事件发件箱
type EventModel struct {
	Id  uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Seq int64     `json:"seq" gorm:"->"` // bigserial，由数据库生成

	EventType       string     `json:"event_type" gorm:"not null"`
	CampaignId      uuid.UUID  `json:"campaign_id" gorm:"type:uuid;not null;index"`
	InvestmentId    *uuid.UUID `json:"investment_id" gorm:"type:uuid"`
	InvestorId      *uuid.UUID `json:"investor_id" gorm:"type:uuid"`
	Amount          *int64     `json:"amount"`
	RaisedAmount    int64      `json:"raised_amount"`
	TargetAmount    int64      `json:"target_amount"`
	Currency        string     `json:"currency" gorm:"type:char(3)"`
	CampaignStatus  string     `json:"campaign_status"`
	CampaignVersion int64      `json:"campaign_version"`
	EndsAt          *time.Time `json:"ends_at"`
	OccurredAt      time.Time  `json:"occurred_at" gorm:"not null"`
	DispatchedAt    *time.Time `json:"dispatched_at" gorm:"index"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "ledger_event"
}
