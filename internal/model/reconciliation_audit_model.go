package model

import (
	"time"

	"github.com/google/uuid"
)

// ReconciliationAuditModel 对账差异
type ReconciliationAuditModel struct {
	Id         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CampaignId uuid.UUID `json:"campaign_id" gorm:"type:uuid;not null;index"`

	Currency          string    `json:"currency" gorm:"type:char(3);not null"`
	RecordedRaised    int64     `json:"recorded_raised"`
	ComputedRaised    int64     `json:"computed_raised"`
	RecordedInvestors int64     `json:"recorded_investors"`
	ComputedInvestors int64     `json:"computed_investors"`
	Corrected         bool      `json:"corrected"`
	DetectedAt        time.Time `json:"detected_at" gorm:"not null"`
}

// TableName 自定义表名
func (ReconciliationAuditModel) TableName() string {
	return "reconciliation_audit"
}
