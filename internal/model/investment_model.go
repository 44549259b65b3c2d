package model

import (
	"time"

	"github.com/google/uuid"
)

// InvestmentModel 投资记录
type InvestmentModel struct {
	Id        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	CampaignId uuid.UUID `json:"campaign_id" gorm:"type:uuid;not null;index"`
	InvestorId uuid.UUID `json:"investor_id" gorm:"type:uuid;not null;index"`
	Sequence   int64     `json:"sequence" gorm:"not null;uniqueIndex"`
	Amount     int64     `json:"amount" gorm:"not null"`
	Currency   string    `json:"currency" gorm:"type:char(3);not null"`
	Status     string    `json:"status" gorm:"not null;default:'pending';index"`

	// 支付信息，payment_reference 全局唯一
	PaymentReference *string `json:"payment_reference"`
	PaymentMethod    string  `json:"payment_method"`
	RewardTierId     string  `json:"reward_tier_id"`
	Notes            string  `json:"notes" gorm:"type:text"`

	PaidAt      *time.Time `json:"paid_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

// TableName 自定义表名
func (InvestmentModel) TableName() string {
	return "investment"
}
