package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/leopark123/ideahub/internal/logger"
)

const jobTimeout = 5 * time.Minute

// Activator 启动到期的待开始众筹
type Activator interface {
	ActivateDue(ctx context.Context, limit int) (int, error)
}

// ExpiryEvaluator 到期结算
type ExpiryEvaluator interface {
	EvaluateDueExpiries(ctx context.Context, limit int) (int, error)
}

// PaidSettler 补结算 Paid 投资
type PaidSettler interface {
	SettleStalePaid(ctx context.Context, idle time.Duration, limit int) (int, error)
}

// Reconciler 对账
type Reconciler interface {
	ReconcileOpen(ctx context.Context, closedWithin time.Duration, batch int) (int, error)
}

// RefundProcessor 退款执行
type RefundProcessor interface {
	ProcessDue(ctx context.Context) (int, error)
	AlertStuck(ctx context.Context) (int, error)
}

// Relay 事件补发
type Relay interface {
	Relay(ctx context.Context) (int, error)
}

// CampaignActivationJob 到达开始时间的众筹自动启动
type CampaignActivationJob struct {
	activator Activator
	interval  time.Duration
	batch     int
}

// NewCampaignActivationJob 创建启动任务
func NewCampaignActivationJob(a Activator, interval time.Duration, batch int) *CampaignActivationJob {
	return &CampaignActivationJob{activator: a, interval: interval, batch: batch}
}

// GetName 获取任务名称
func (j *CampaignActivationJob) GetName() string { return "campaign_activation" }

// GetSchedule 获取调度配置
func (j *CampaignActivationJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignActivationJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := j.activator.ActivateDue(ctx, j.batch)
	if err != nil {
		logger.Error("Failed to fetch campaigns for activation: %v", err)
		return
	}
	if n > 0 {
		logger.Info("Campaign activation task completed. Activated %d campaigns", n)
	}
}

// CampaignExpiryJob 扫描持久化的到期计划，兜底一次性定时器
type CampaignExpiryJob struct {
	evaluator ExpiryEvaluator
	interval  time.Duration
	batch     int
}

// NewCampaignExpiryJob 创建到期扫描任务
func NewCampaignExpiryJob(e ExpiryEvaluator, interval time.Duration, batch int) *CampaignExpiryJob {
	return &CampaignExpiryJob{evaluator: e, interval: interval, batch: batch}
}

// GetName 获取任务名称
func (j *CampaignExpiryJob) GetName() string { return "campaign_expiry" }

// GetSchedule 获取调度配置
func (j *CampaignExpiryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *CampaignExpiryJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := j.evaluator.EvaluateDueExpiries(ctx, j.batch)
	if err != nil {
		logger.Error("Failed to fetch due expiries: %v", err)
		return
	}
	if n > 0 {
		logger.Info("Campaign expiry task completed. Evaluated %d campaigns", n)
	}
}

// RefundDispatchJob 执行到期退款并对卡住的退款告警
type RefundDispatchJob struct {
	refunds  RefundProcessor
	interval time.Duration
}

// NewRefundDispatchJob 创建退款任务
func NewRefundDispatchJob(r RefundProcessor, interval time.Duration) *RefundDispatchJob {
	return &RefundDispatchJob{refunds: r, interval: interval}
}

// GetName 获取任务名称
func (j *RefundDispatchJob) GetName() string { return "refund_dispatch" }

// GetSchedule 获取调度配置
func (j *RefundDispatchJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *RefundDispatchJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := j.refunds.ProcessDue(ctx)
	if err != nil {
		logger.Error("Failed to fetch due refunds: %v", err)
	} else if n > 0 {
		logger.Info("Refund task completed. Attempted %d refunds", n)
	}
	if _, err := j.refunds.AlertStuck(ctx); err != nil {
		logger.Error("Failed to check stuck refunds: %v", err)
	}
}

// LedgerReconcileJob 定期对账
type LedgerReconcileJob struct {
	reconciler   Reconciler
	interval     time.Duration
	closedWithin time.Duration
	batch        int
}

// NewLedgerReconcileJob 创建对账任务
func NewLedgerReconcileJob(r Reconciler, interval, closedWithin time.Duration, batch int) *LedgerReconcileJob {
	return &LedgerReconcileJob{reconciler: r, interval: interval, closedWithin: closedWithin, batch: batch}
}

// GetName 获取任务名称
func (j *LedgerReconcileJob) GetName() string { return "ledger_reconcile" }

// GetSchedule 获取调度配置
func (j *LedgerReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *LedgerReconcileJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := j.reconciler.ReconcileOpen(ctx, j.closedWithin, j.batch)
	if err != nil {
		logger.Error("Failed to reconcile campaigns: %v", err)
		return
	}
	if n > 0 {
		logger.Warn("Ledger reconcile task found drift on %d campaigns", n)
	}
}

// EventOutboxJob 补发未派发的事件
type EventOutboxJob struct {
	relay    Relay
	interval time.Duration
}

// NewEventOutboxJob 创建补发任务
func NewEventOutboxJob(r Relay, interval time.Duration) *EventOutboxJob {
	return &EventOutboxJob{relay: r, interval: interval}
}

// GetName 获取任务名称
func (j *EventOutboxJob) GetName() string { return "event_outbox_relay" }

// GetSchedule 获取调度配置
func (j *EventOutboxJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *EventOutboxJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := j.relay.Relay(ctx); err != nil {
		logger.Error("Failed to relay outbox events: %v", err)
	}
}

// PaidSettlementJob 补结算停留在 Paid 的投资
type PaidSettlementJob struct {
	settler  PaidSettler
	interval time.Duration
	idle     time.Duration
	batch    int
}

// NewPaidSettlementJob 创建补结算任务
func NewPaidSettlementJob(s PaidSettler, interval, idle time.Duration, batch int) *PaidSettlementJob {
	return &PaidSettlementJob{settler: s, interval: interval, idle: idle, batch: batch}
}

// GetName 获取任务名称
func (j *PaidSettlementJob) GetName() string { return "paid_settlement_sweep" }

// GetSchedule 获取调度配置
func (j *PaidSettlementJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *PaidSettlementJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := j.settler.SettleStalePaid(ctx, j.idle, j.batch)
	if err != nil {
		logger.Error("Failed to fetch paid investments: %v", err)
		return
	}
	if n > 0 {
		logger.Info("Paid settlement task completed. Settled %d investments", n)
	}
}
