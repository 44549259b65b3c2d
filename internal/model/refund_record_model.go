package model

import (
	"time"

	"github.com/google/uuid"
)

// RefundRecordModel 退款记录，投资 ID 即幂等键
type RefundRecordModel struct {
	InvestmentId uuid.UUID `json:"investment_id" gorm:"type:uuid;primaryKey"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	CampaignId       uuid.UUID  `json:"campaign_id" gorm:"type:uuid;not null;index"`
	InvestorId       uuid.UUID  `json:"investor_id" gorm:"type:uuid;not null"`
	Amount           int64      `json:"amount" gorm:"not null"`
	Currency         string     `json:"currency" gorm:"type:char(3);not null"`
	PaymentReference string     `json:"payment_reference"`
	Reason           string     `json:"reason" gorm:"not null"` // campaign_failed, campaign_cancelled, late_payment
	State            string     `json:"state" gorm:"not null;default:'refund_pending';index"`
	Attempts         int        `json:"attempts" gorm:"not null;default:0"`
	LastError        string     `json:"last_error" gorm:"type:text"`
	ProviderRef      string     `json:"provider_ref"`
	NextAttemptAt    time.Time  `json:"next_attempt_at" gorm:"not null;index"`
	SettledAt        *time.Time `json:"settled_at"`
}

// TableName 自定义表名
func (RefundRecordModel) TableName() string {
	return "refund_record"
}
