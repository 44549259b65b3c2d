package task

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(logger.NewNop())
	os.Exit(m.Run())
}

type fakeLedger struct {
	mu        sync.Mutex
	calls     map[string]int
	limits    map[string]int
	durations map[string]time.Duration
	expired   []uuid.UUID
	fail      error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{calls: map[string]int{}, limits: map[string]int{}, durations: map[string]time.Duration{}}
}

func (f *fakeLedger) record(name string, limit int, d time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.limits[name] = limit
	f.durations[name] = d
	if f.fail != nil {
		return 0, f.fail
	}
	return 1, nil
}

func (f *fakeLedger) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeLedger) ActivateDue(_ context.Context, limit int) (int, error) {
	return f.record("activate", limit, 0)
}

func (f *fakeLedger) EvaluateDueExpiries(_ context.Context, limit int) (int, error) {
	return f.record("expire", limit, 0)
}

func (f *fakeLedger) SettleStalePaid(_ context.Context, idle time.Duration, limit int) (int, error) {
	return f.record("sweep", limit, idle)
}

func (f *fakeLedger) ReconcileOpen(_ context.Context, closedWithin time.Duration, limit int) (int, error) {
	return f.record("reconcile", limit, closedWithin)
}

func (f *fakeLedger) ProcessDue(context.Context) (int, error) { return f.record("refund", 0, 0) }

func (f *fakeLedger) AlertStuck(context.Context) (int, error) { return f.record("stuck", 0, 0) }

func (f *fakeLedger) Relay(context.Context) (int, error) { return f.record("relay", 0, 0) }

func (f *fakeLedger) EvaluateExpiry(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, id)
	return nil
}

func (f *fakeLedger) expiredIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.expired...)
}

func TestJobsExecute(t *testing.T) {
	f := newFakeLedger()
	jobs := []struct {
		job   Job
		calls []string
		limit int
		dur   time.Duration
	}{
		{job: NewCampaignActivationJob(f, time.Minute, 50), calls: []string{"activate"}, limit: 50},
		{job: NewCampaignExpiryJob(f, time.Minute, 25), calls: []string{"expire"}, limit: 25},
		{job: NewPaidSettlementJob(f, time.Minute, 2*time.Minute, 10), calls: []string{"sweep"}, limit: 10, dur: 2 * time.Minute},
		{job: NewLedgerReconcileJob(f, time.Hour, 24*time.Hour, 5), calls: []string{"reconcile"}, limit: 5, dur: 24 * time.Hour},
		{job: NewRefundDispatchJob(f, time.Minute), calls: []string{"refund", "stuck"}},
		{job: NewEventOutboxJob(f, time.Minute), calls: []string{"relay"}},
	}
	for _, tt := range jobs {
		t.Run(tt.job.GetName(), func(t *testing.T) {
			if tt.job.GetSchedule() == nil {
				t.Fatal("schedule must not be nil")
			}
			tt.job.Execute()
			for _, name := range tt.calls {
				if got := f.count(name); got != 1 {
					t.Fatalf("%s calls = %d, want 1", name, got)
				}
			}
			if got := f.limits[tt.calls[0]]; got != tt.limit {
				t.Fatalf("limit = %d, want %d", got, tt.limit)
			}
			if got := f.durations[tt.calls[0]]; got != tt.dur {
				t.Fatalf("duration = %v, want %v", got, tt.dur)
			}
		})
	}
}

func TestRefundJobChecksStuckEvenOnFailure(t *testing.T) {
	f := newFakeLedger()
	f.fail = errors.New("store down")
	NewRefundDispatchJob(f, time.Minute).Execute()
	if f.count("refund") != 1 || f.count("stuck") != 1 {
		t.Fatalf("calls = %v, want refund and stuck once each", f.calls)
	}
}

func TestManagerRegistersJobs(t *testing.T) {
	m, err := NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	defer m.Stop()

	f := newFakeLedger()
	if err := m.Register(NewCampaignActivationJob(f, 20*time.Millisecond, 1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	m.Start()
	waitFor(t, func() bool { return f.count("activate") > 0 })
	if len(m.Scheduler().Jobs()) != 1 {
		t.Fatalf("jobs = %d, want 1", len(m.Scheduler().Jobs()))
	}
}

func TestExpiryTimerFiresAtEndTime(t *testing.T) {
	s, err := gocron.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	defer func() { _ = s.Shutdown() }()

	f := newFakeLedger()
	timer := NewExpiryTimer(s, f, clock.System{})

	id := uuid.New()
	ends := clock.At(time.Now().Add(50 * time.Millisecond))
	activated := domain.Event{Type: domain.EventCampaignActivated, CampaignID: id, EndsAt: &ends}
	if err := timer.Process(context.Background(), activated); err != nil {
		t.Fatalf("process: %v", err)
	}
	// 非启动事件忽略
	if err := timer.Process(context.Background(), domain.Event{Type: domain.EventInvestmentConfirmed, CampaignID: uuid.New()}); err != nil {
		t.Fatalf("process other: %v", err)
	}

	waitFor(t, func() bool { return len(f.expiredIDs()) > 0 })
	got := f.expiredIDs()
	if len(got) != 1 || got[0] != id {
		t.Fatalf("expired = %v, want [%s]", got, id)
	}
}

func TestExpiryTimerPastEndRunsImmediately(t *testing.T) {
	s, err := gocron.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	defer func() { _ = s.Shutdown() }()

	f := newFakeLedger()
	id := uuid.New()
	if err := NewExpiryTimer(s, f, clock.System{}).Schedule(id, clock.At(time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	waitFor(t, func() bool { return len(f.expiredIDs()) == 1 })
}

func TestExpiryTimerUsesLedgerClock(t *testing.T) {
	s, err := gocron.NewScheduler()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	defer func() { _ = s.Shutdown() }()

	// 账本时钟在墙钟之后：按墙钟尚未到期，按账本时钟已过期
	ledgerNow := time.Now().Add(365 * 24 * time.Hour)
	f := newFakeLedger()
	timer := NewExpiryTimer(s, f, clock.NewManual(ledgerNow))

	due, later := uuid.New(), uuid.New()
	if err := timer.Schedule(due, clock.At(ledgerNow.Add(-time.Minute))); err != nil {
		t.Fatalf("schedule due: %v", err)
	}
	if err := timer.Schedule(later, clock.At(ledgerNow.Add(time.Hour))); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	waitFor(t, func() bool { return len(f.expiredIDs()) == 1 })
	time.Sleep(100 * time.Millisecond)
	if got := f.expiredIDs(); len(got) != 1 || got[0] != due {
		t.Fatalf("expired = %v, want only [%s]", got, due)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
