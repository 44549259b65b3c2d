package model

import (
	"github.com/google/uuid"
)

// ProjectModel 孵化项目，由项目服务维护，这里只读
type ProjectModel struct {
	Id      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerId uuid.UUID `json:"owner_id" gorm:"type:uuid;not null"`
	Title   string    `json:"title"`
}

// TableName 自定义表名
func (ProjectModel) TableName() string {
	return "project"
}
