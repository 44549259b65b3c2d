package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/domain"
)

func pendingInput(h *harness, startIn, endIn time.Duration) CreateCampaignInput {
	now := h.clock.Now()
	return CreateCampaignInput{
		ProjectID:     h.project,
		TargetAmount:  decimalOf(10000),
		MinInvestment: decimalOf(100),
		StartTime:     now.Add(startIn),
		EndTime:       now.Add(endIn),
	}
}

func TestCreateCampaignAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	in := pendingInput(h, time.Hour, 48*time.Hour)
	if _, err := h.campaigns.Create(ctx, uuid.New(), in); apperr.CodeOf(err) != apperr.CodeNotOwner {
		t.Fatalf("non-owner: expected not owner, got %v", err)
	}
	unknown := in
	unknown.ProjectID = uuid.New()
	if _, err := h.campaigns.Create(ctx, h.owner, unknown); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown project: expected not found, got %v", err)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		mutate func(*CreateCampaignInput)
		code   apperr.Code
	}{
		{name: "unknown currency", mutate: func(in *CreateCampaignInput) { in.Currency = "US" }, code: apperr.CodeInvalidCurrency},
		{name: "zero target", mutate: func(in *CreateCampaignInput) { in.TargetAmount = decimalOf(0) }, code: apperr.CodeInvalidAmount},
		{name: "fractional cent", mutate: func(in *CreateCampaignInput) { in.MinInvestment = mustDecimal("0.001") }, code: apperr.CodeInvalidAmount},
		{name: "end before start", mutate: func(in *CreateCampaignInput) { in.EndTime = in.StartTime.Add(-time.Hour) }, code: apperr.CodeInvalidWindow},
		{name: "max below min", mutate: func(in *CreateCampaignInput) { in.MaxInvestment = pdecimal(50) }, code: apperr.CodeInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := pendingInput(h, time.Hour, 48*time.Hour)
			tt.mutate(&in)
			_, err := h.campaigns.Create(context.Background(), h.owner, in)
			if !errors.Is(err, apperr.ErrValidation) || apperr.CodeOf(err) != tt.code {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestOneOpenCampaignPerProject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 48*time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Status != domain.CampaignPending {
		t.Fatalf("status = %s, want pending", first.Status)
	}
	_, err = h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 48*time.Hour))
	if !errors.Is(err, apperr.ErrConflict) || apperr.CodeOf(err) != apperr.CodeOpenCampaignExists {
		t.Fatalf("second open campaign: expected conflict, got %v", err)
	}

	if _, err := h.campaigns.Cancel(ctx, first.ID, h.owner); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.clock.Advance(time.Minute)
	second, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 48*time.Hour))
	if err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
	current, err := h.campaigns.GetByProject(ctx, h.project)
	if err != nil || current.ID != second.ID {
		t.Fatalf("by project = %v, %v; want %s", current.ID, err, second.ID)
	}
}

func TestStartCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("early start moves start time", func(t *testing.T) {
		h := newHarness(t)
		c, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, 24*time.Hour, 72*time.Hour))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := h.campaigns.Start(ctx, c.ID, uuid.New()); !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("non-owner start: expected forbidden, got %v", err)
		}
		started, err := h.campaigns.Start(ctx, c.ID, h.owner)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if started.Status != domain.CampaignActive || !started.StartTime.Equal(h.clock.Now()) {
			t.Fatalf("started = %s at %s", started.Status, started.StartTime)
		}
		due, err := h.store.ListExpiries(ctx, started.EndTime, 10)
		if err != nil || len(due) != 1 {
			t.Fatalf("expiry schedule = %+v, %v", due, err)
		}
		if _, err := h.campaigns.Start(ctx, c.ID, h.owner); apperr.CodeOf(err) != apperr.CodeCampaignNotPending {
			t.Fatalf("second start: expected not pending, got %v", err)
		}
	})

	t.Run("window already ended", func(t *testing.T) {
		h := newHarness(t)
		c, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 2*time.Hour))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		h.clock.Advance(3 * time.Hour)
		if _, err := h.campaigns.Start(ctx, c.ID, h.owner); apperr.CodeOf(err) != apperr.CodeOutsideWindow {
			t.Fatalf("expected outside window, got %v", err)
		}
	})
}

func TestActivateDue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 48*time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if n, err := h.coordinator.ActivateDue(ctx, 10); err != nil || n != 0 {
		t.Fatalf("activate before start = %d, %v", n, err)
	}
	h.clock.Advance(time.Hour)
	if n, err := h.coordinator.ActivateDue(ctx, 10); err != nil || n != 1 {
		t.Fatalf("activate at start = %d, %v", n, err)
	}
	if got := h.campaign(t, c.ID); got.Status != domain.CampaignActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
	if n := h.publisher.count(domain.EventCampaignActivated); n != 1 {
		t.Fatalf("CampaignActivated events = %d, want 1", n)
	}
}

func TestActivateDueClosesExpiredPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 2*time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.clock.Advance(3 * time.Hour)
	if _, err := h.coordinator.ActivateDue(ctx, 10); err != nil {
		t.Fatalf("activate due: %v", err)
	}
	if got := h.campaign(t, c.ID); got.Status != domain.CampaignFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestUpdatePendingCampaign(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c, err := h.campaigns.Create(ctx, h.owner, pendingInput(h, time.Hour, 48*time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	end := c.EndTime.Add(24 * time.Hour)
	updated, err := h.campaigns.Update(ctx, c.ID, h.owner, CampaignPatch{
		TargetAmount: pdecimal(20000),
		EndTime:      &end,
		RewardTiers:  &[]RewardTierInput{{ID: "t1", Title: "Thanks", Amount: decimalOf(100)}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.TargetAmount.Equal(yuan(20000)) || !updated.EndTime.Equal(end) || len(updated.RewardTiers) != 1 {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Version != c.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, c.Version+1)
	}

	bad := c.StartTime.Add(-time.Minute)
	if _, err := h.campaigns.Update(ctx, c.ID, h.owner, CampaignPatch{EndTime: &bad}); apperr.CodeOf(err) != apperr.CodeInvalidWindow {
		t.Fatalf("invalid window: got %v", err)
	}

	if _, err := h.campaigns.Start(ctx, c.ID, h.owner); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.campaigns.Update(ctx, c.ID, h.owner, CampaignPatch{TargetAmount: pdecimal(1)}); apperr.CodeOf(err) != apperr.CodeCampaignNotPending {
		t.Fatalf("active update: expected not pending, got %v", err)
	}
}

func TestListCampaigns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)

	active, err := h.campaigns.ListActive(ctx, 0)
	if err != nil || len(active) != 1 || active[0].ID != c.ID {
		t.Fatalf("active = %+v, %v", active, err)
	}
	list, total, err := h.campaigns.List(ctx, domain.CampaignActive, domain.Page{Number: 1, Size: 10})
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("list = %d/%d, %v", len(list), total, err)
	}
	if _, _, err := h.campaigns.List(ctx, "open", domain.Page{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown status: expected validation, got %v", err)
	}
}

type memoryStatsCache struct {
	stats map[uuid.UUID]domain.CampaignStats
	hits  int
}

func (m *memoryStatsCache) Get(_ context.Context, id uuid.UUID) (domain.CampaignStats, bool, error) {
	s, ok := m.stats[id]
	if ok {
		m.hits++
	}
	return s, ok, nil
}

func (m *memoryStatsCache) Set(_ context.Context, s domain.CampaignStats) error {
	m.stats[s.CampaignID] = s
	return nil
}

func (m *memoryStatsCache) Invalidate(_ context.Context, id uuid.UUID, _ int64) error {
	delete(m.stats, id)
	return nil
}

func TestStatsUsesCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cache := &memoryStatsCache{stats: make(map[uuid.UUID]domain.CampaignStats)}
	dir := &fakeDirectory{owners: map[uuid.UUID]uuid.UUID{h.project: h.owner}}
	h.campaigns = NewCampaignLogic(h.store, h.clock, dir, h.coordinator, cache, Options{DefaultCurrency: cny})

	c := h.openCampaign(t, 10000, 100)
	h.pay(t, h.invest(t, c.ID, uuid.New(), 2500).ID, "pay-1")

	stats, err := h.campaigns.Stats(ctx, c.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ProgressPercentage != 25 || stats.InvestorCount != 1 || stats.DaysRemaining != 30 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := h.campaigns.Stats(ctx, c.ID); err != nil || cache.hits != 1 {
		t.Fatalf("second read hits = %d, %v", cache.hits, err)
	}
}
