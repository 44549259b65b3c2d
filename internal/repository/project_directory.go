package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/model"
	"gorm.io/gorm"
)

func projectNotFound(id uuid.UUID) func() error {
	return func() error {
		return apperr.NotFound(apperr.CodeProjectNotFound, "project %s not found", id)
	}
}

// GormProjectDirectory 从项目表读取项目归属
type GormProjectDirectory struct {
	db *gorm.DB
}

// NewGormProjectDirectory 创建项目目录
func NewGormProjectDirectory(db *gorm.DB) *GormProjectDirectory {
	return &GormProjectDirectory{db: db}
}

// ProjectExists 项目是否存在
func (d *GormProjectDirectory) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.ProjectModel{}).Where("id = ?", projectID).Count(&count).Error
	if err != nil {
		return false, translateError(err, nil)
	}
	return count > 0, nil
}

// ProjectOwner 项目发起人
func (d *GormProjectDirectory) ProjectOwner(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	var m model.ProjectModel
	err := d.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", projectID).First(&m).Error
	if err != nil {
		return uuid.Nil, translateError(err, projectNotFound(projectID))
	}
	return m.OwnerId, nil
}

// StaticProjectDirectory 配置文件中的项目列表，用于内存模式
type StaticProjectDirectory struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]uuid.UUID
}

// NewStaticProjectDirectory 解析配置中的项目
func NewStaticProjectDirectory(entries []config.ProjectEntry) (*StaticProjectDirectory, error) {
	d := &StaticProjectDirectory{owners: make(map[uuid.UUID]uuid.UUID, len(entries))}
	for _, e := range entries {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return nil, fmt.Errorf("directory project id %q: %w", e.ID, err)
		}
		owner, err := uuid.Parse(e.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("directory owner id %q: %w", e.OwnerID, err)
		}
		d.owners[id] = owner
	}
	return d, nil
}

// Add 登记项目
func (d *StaticProjectDirectory) Add(projectID, ownerID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[projectID] = ownerID
}

func (d *StaticProjectDirectory) ProjectExists(_ context.Context, projectID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.owners[projectID]
	return ok, nil
}

func (d *StaticProjectDirectory) ProjectOwner(_ context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[projectID]
	if !ok {
		return uuid.Nil, projectNotFound(projectID)()
	}
	return owner, nil
}
