package model

import (
	"time"

	"github.com/google/uuid"
)

// CampaignModel 众筹活动
type CampaignModel struct {
	Id        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`

	ProjectId uuid.UUID `json:"project_id" gorm:"type:uuid;not null;index"`
	Currency  string    `json:"currency" gorm:"type:char(3);not null"`

	// 众筹信息，金额以最小货币单位存储
	TargetAmount  int64  `json:"target_amount" gorm:"not null"`
	MinInvestment int64  `json:"min_investment" gorm:"not null"`
	MaxInvestment *int64 `json:"max_investment"`
	RaisedAmount  int64  `json:"raised_amount" gorm:"not null;default:0"`
	InvestorCount int64  `json:"investor_count" gorm:"not null;default:0"`
	RewardTiers   string `json:"reward_tiers" gorm:"type:text"` // JSON 数组

	// 时间信息
	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   time.Time  `json:"end_time" gorm:"not null;index"`
	ClosedAt  *time.Time `json:"closed_at"`

	Status  string `json:"status" gorm:"not null;default:'pending';index"`
	Version int64  `json:"version" gorm:"not null;default:0"` // 乐观锁版本
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
