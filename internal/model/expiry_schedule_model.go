package model

import (
	"time"

	"github.com/google/uuid"
)

// ExpiryScheduleModel 众筹到期计划
type ExpiryScheduleModel struct {
	CampaignId uuid.UUID `json:"campaign_id" gorm:"type:uuid;primaryKey"`
	EndTime    time.Time `json:"end_time" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime:false"`
}

// TableName 自定义表名
func (ExpiryScheduleModel) TableName() string {
	return "campaign_expiry"
}
