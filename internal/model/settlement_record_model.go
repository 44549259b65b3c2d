package model

import (
	"time"

	"github.com/google/uuid"
)

// SettlementRecordModel 结算记录
type SettlementRecordModel struct {
	Id         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CampaignId uuid.UUID `json:"campaign_id" gorm:"type:uuid;not null;uniqueIndex"`

	Outcome        string    `json:"outcome" gorm:"not null"`       // succeeded, failed, cancelled
	RaisedAmount   int64     `json:"raised_amount" gorm:"not null"` // 决定结果时的募集金额
	TargetAmount   int64     `json:"target_amount" gorm:"not null"`
	Currency       string    `json:"currency" gorm:"type:char(3);not null"`
	InvestorCount  int64     `json:"investor_count"`
	ConfirmedCount int       `json:"confirmed_count"`
	RefundedCount  int       `json:"refunded_count"`
	CancelledCount int       `json:"cancelled_count"`
	SettledAt      time.Time `json:"settled_at" gorm:"not null"`
}

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
