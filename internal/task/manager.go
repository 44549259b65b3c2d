package task

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/leopark123/ideahub/internal/logger"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
}

// NewManager 创建新的任务管理器
func NewManager() (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Manager{scheduler: s}, nil
}

// Scheduler 底层调度器，供一次性到期任务使用
func (m *Manager) Scheduler() gocron.Scheduler {
	return m.scheduler
}

// Register 注册任务，同一任务不会并发执行
func (m *Manager) Register(jobs ...Job) error {
	for _, job := range jobs {
		_, err := m.scheduler.NewJob(
			job.GetSchedule(),
			gocron.NewTask(job.Execute),
			gocron.WithName(job.GetName()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.GetName(), err)
		}
		logger.Info("Registered job %s", job.GetName())
	}
	return nil
}

// Start 启动调度器
func (m *Manager) Start() {
	m.scheduler.Start()
	logger.Info("Task manager started successfully")
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
