package logic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/repository"
)

func TestOverfundedCampaignSucceedsAtExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)

	a := h.invest(t, c.ID, uuid.New(), 6000)
	b := h.invest(t, c.ID, uuid.New(), 5000)
	if got := h.pay(t, a.ID, "pay-a"); got.Status != domain.InvestmentConfirmed {
		t.Fatalf("first investment status = %s, want confirmed", got.Status)
	}
	h.pay(t, b.ID, "pay-b")

	// 达到目标后仍在进行中
	if got := h.campaign(t, c.ID); got.Status != domain.CampaignActive {
		t.Fatalf("campaign status before expiry = %s, want active", got.Status)
	}

	closed := h.expire(t, c)
	if closed.Status != domain.CampaignSucceeded {
		t.Fatalf("status = %s, want succeeded", closed.Status)
	}
	if !closed.RaisedAmount.Equal(yuan(11000)) {
		t.Fatalf("raised = %s, want 11000.00", closed.RaisedAmount)
	}
	if closed.InvestorCount != 2 {
		t.Fatalf("investor count = %d, want 2", closed.InvestorCount)
	}
	refunds, err := h.store.ListRefundsByCampaign(ctx, c.ID)
	if err != nil {
		t.Fatalf("list refunds: %v", err)
	}
	if len(refunds) != 0 {
		t.Fatalf("expected no refunds, got %d", len(refunds))
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if got := h.investment(t, id); got.Status != domain.InvestmentConfirmed {
			t.Fatalf("investment %s status = %s, want confirmed", id, got.Status)
		}
	}

	st, err := h.campaigns.Settlement(ctx, c.ID)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if st.Outcome != domain.CampaignSucceeded || st.ConfirmedCount != 2 || st.RefundedCount != 0 {
		t.Fatalf("settlement = %+v", st)
	}
	if n := h.publisher.count(domain.EventCampaignSucceeded); n != 1 {
		t.Fatalf("CampaignSucceeded events = %d, want 1", n)
	}
	h.assertAggregates(t, c.ID)
}

func TestFailedCampaignRefundsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)

	inv := h.invest(t, c.ID, uuid.New(), 3000)
	h.pay(t, inv.ID, "pay-1")

	closed := h.expire(t, c)
	if closed.Status != domain.CampaignFailed {
		t.Fatalf("status = %s, want failed", closed.Status)
	}
	if got := h.investment(t, inv.ID); got.Status != domain.InvestmentRefunded {
		t.Fatalf("investment status = %s, want refunded", got.Status)
	}
	h.assertAggregates(t, c.ID)

	st, err := h.campaigns.Settlement(ctx, c.ID)
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}
	if !st.RaisedAmount.Equal(yuan(3000)) || st.RefundedCount != 1 {
		t.Fatalf("settlement = %+v", st)
	}

	for i := 0; i < 2; i++ {
		if _, err := h.refunds.ProcessDue(ctx); err != nil {
			t.Fatalf("process refunds: %v", err)
		}
	}
	if calls := h.gateway.callsFor(inv.ID); calls != 1 {
		t.Fatalf("refund initiated %d times, want 1", calls)
	}
	r, err := h.refunds.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get refund: %v", err)
	}
	if r.State != domain.RefundSettled || r.Reason != domain.RefundCampaignFailed {
		t.Fatalf("refund = %+v", r)
	}
	if n := h.publisher.count(domain.EventInvestmentRefunded); n != 1 {
		t.Fatalf("InvestmentRefunded events = %d, want 1", n)
	}
}

func TestExpiryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)
	h.pay(t, h.invest(t, c.ID, uuid.New(), 3000).ID, "pay-1")

	closed := h.expire(t, c)
	events := len(h.publisher.types())

	for i := 0; i < 3; i++ {
		if err := h.coordinator.EvaluateExpiry(ctx, c.ID); err != nil {
			t.Fatalf("re-evaluate expiry: %v", err)
		}
	}
	again := h.campaign(t, c.ID)
	if again.Status != closed.Status || again.Version != closed.Version {
		t.Fatalf("campaign changed on re-evaluation: %+v", again)
	}
	if got := len(h.publisher.types()); got != events {
		t.Fatalf("events = %d after re-evaluation, want %d", got, events)
	}
	due, err := h.store.ListExpiries(ctx, h.clock.Now(), 10)
	if err != nil {
		t.Fatalf("list expiries: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expiry schedule not removed: %+v", due)
	}
}

func TestExpiryBeforeEndIsNoop(t *testing.T) {
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)
	h.clock.Set(c.EndTime.Add(-time.Second).Time())

	if err := h.coordinator.EvaluateExpiry(context.Background(), c.ID); err != nil {
		t.Fatalf("evaluate expiry: %v", err)
	}
	if got := h.campaign(t, c.ID); got.Status != domain.CampaignActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestPaymentAfterFailureIsRefundedOrCancelled(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)

	counted := h.invest(t, c.ID, uuid.New(), 2000)
	h.pay(t, counted.ID, "pay-counted")
	pending := h.invest(t, c.ID, uuid.New(), 1000)

	h.expire(t, c)
	if got := h.investment(t, pending.ID); got.Status != domain.InvestmentCancelled {
		t.Fatalf("pending investment status = %s, want cancelled", got.Status)
	}

	// 关闭后才到账
	late, err := h.investments.MarkPaid(ctx, pending.ID, "pay-late")
	if err != nil {
		t.Fatalf("mark paid after close: %v", err)
	}
	if late.Status != domain.InvestmentCancelled || late.PaymentReference != "pay-late" {
		t.Fatalf("late investment = %+v", late)
	}
	r, err := h.refunds.Get(ctx, pending.ID)
	if err != nil {
		t.Fatalf("late payment refund missing: %v", err)
	}
	if r.Reason != domain.RefundLatePayment {
		t.Fatalf("refund reason = %s, want late_payment", r.Reason)
	}

	// 重复通知
	again, err := h.investments.MarkPaid(ctx, counted.ID, "pay-counted")
	if err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}
	if again.Status != domain.InvestmentRefunded {
		t.Fatalf("counted investment status = %s, want refunded", again.Status)
	}
	h.assertAggregates(t, c.ID)
}

func TestPaymentAfterEndTimeSettlesCampaignFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)
	h.pay(t, h.invest(t, c.ID, uuid.New(), 12000).ID, "pay-early")
	late := h.invest(t, c.ID, uuid.New(), 500)

	// 截止后、到期任务执行前到账
	h.clock.Set(c.EndTime.Add(time.Second).Time())
	got, err := h.investments.MarkPaid(ctx, late.ID, "pay-late")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if got.Status != domain.InvestmentRefunded {
		t.Fatalf("late investment status = %s, want refunded", got.Status)
	}
	closed := h.campaign(t, c.ID)
	if closed.Status != domain.CampaignSucceeded || !closed.RaisedAmount.Equal(yuan(12000)) {
		t.Fatalf("campaign = %s raised %s, want succeeded with 12000.00", closed.Status, closed.RaisedAmount)
	}
	r, err := h.refunds.Get(ctx, late.ID)
	if err != nil {
		t.Fatalf("get refund: %v", err)
	}
	if r.Reason != domain.RefundLatePayment {
		t.Fatalf("refund reason = %s, want late_payment", r.Reason)
	}
}

func TestPaidBeforeEndIsCountedAtExpiry(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	h := newHarnessWithStore(t, fs, fs.MemoryStore, Options{})
	c := h.openCampaign(t, 10000, 100)
	inv := h.invest(t, c.ID, uuid.New(), 10000)

	// 确认失败，投资停留在 Paid
	fs.setConflicts(1000)
	got, err := h.investments.MarkPaid(ctx, inv.ID, "pay-1")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if got.Status != domain.InvestmentPaid {
		t.Fatalf("status = %s, want paid", got.Status)
	}
	fs.setConflicts(0)

	closed := h.expire(t, c)
	if closed.Status != domain.CampaignSucceeded {
		t.Fatalf("status = %s, want succeeded", closed.Status)
	}
	if got := h.investment(t, inv.ID); got.Status != domain.InvestmentConfirmed {
		t.Fatalf("investment status = %s, want confirmed", got.Status)
	}
	h.assertAggregates(t, c.ID)
}

func TestVersionConflictIsRetried(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	h := newHarnessWithStore(t, fs, fs.MemoryStore, Options{ConflictRetries: 5})
	c := h.openCampaign(t, 10000, 100)

	inv := h.invest(t, c.ID, uuid.New(), 1000)
	fs.setConflicts(2)
	if got := h.pay(t, inv.ID, "pay-1"); got.Status != domain.InvestmentConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if fs.attempts != 3 {
		t.Fatalf("update attempts = %d, want 3", fs.attempts)
	}
	h.assertAggregates(t, c.ID)

	other := h.invest(t, c.ID, uuid.New(), 1000)
	fs.setConflicts(1000)
	h.pay(t, other.ID, "pay-2")
	fs.setConflicts(1000)
	err := h.coordinator.SettlePaid(ctx, other.ID)
	if !errors.Is(err, apperr.ErrTransient) || apperr.CodeOf(err) != apperr.CodeRetryExhausted {
		t.Fatalf("expected retry exhausted, got %v", err)
	}
	if fs.attempts != 5 {
		t.Fatalf("update attempts = %d, want 5", fs.attempts)
	}

	fs.setConflicts(0)
	h.clock.Advance(time.Second)
	n, err := h.coordinator.SettleStalePaid(ctx, 0, 10)
	if err != nil || n != 1 {
		t.Fatalf("settle stale = %d, %v; want 1", n, err)
	}
	if got := h.investment(t, other.ID); got.Status != domain.InvestmentConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	h.assertAggregates(t, c.ID)
}

func TestCloseEarly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)
	h.pay(t, h.invest(t, c.ID, uuid.New(), 10000).ID, "pay-1")
	pending := h.invest(t, c.ID, uuid.New(), 100)

	if _, err := h.campaigns.CloseEarly(ctx, c.ID, uuid.New()); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-owner close: expected forbidden, got %v", err)
	}

	h.clock.Advance(24 * time.Hour)
	closed, err := h.campaigns.CloseEarly(ctx, c.ID, h.owner)
	if err != nil {
		t.Fatalf("close early: %v", err)
	}
	if closed.Status != domain.CampaignSucceeded {
		t.Fatalf("status = %s, want succeeded", closed.Status)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(h.clock.Now()) {
		t.Fatalf("closed_at = %v, want %s", closed.ClosedAt, h.clock.Now())
	}
	if got := h.investment(t, pending.ID); got.Status != domain.InvestmentCancelled {
		t.Fatalf("pending investment status = %s, want cancelled", got.Status)
	}

	_, err = h.campaigns.CloseEarly(ctx, c.ID, h.owner)
	if apperr.CodeOf(err) != apperr.CodeCampaignNotActive {
		t.Fatalf("second close: expected not active, got %v", err)
	}
}

func TestCancelCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("active before target", func(t *testing.T) {
		h := newHarness(t)
		c := h.openCampaign(t, 10000, 100)
		investor := uuid.New()
		confirmed := h.invest(t, c.ID, investor, 2000)
		h.pay(t, confirmed.ID, "pay-1")
		h.pay(t, h.invest(t, c.ID, investor, 1000).ID, "pay-2")
		pending := h.invest(t, c.ID, uuid.New(), 500)

		cancelled, err := h.campaigns.Cancel(ctx, c.ID, h.owner)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != domain.CampaignCancelled {
			t.Fatalf("status = %s, want cancelled", cancelled.Status)
		}
		if got := h.investment(t, pending.ID); got.Status != domain.InvestmentCancelled {
			t.Fatalf("pending investment status = %s, want cancelled", got.Status)
		}
		r, err := h.refunds.Get(ctx, confirmed.ID)
		if err != nil || r.Reason != domain.RefundCampaignCancelled {
			t.Fatalf("refund = %+v, %v", r, err)
		}
		if cancelled.InvestorCount != 0 || !cancelled.RaisedAmount.IsZero() {
			t.Fatalf("aggregates = %s/%d, want zero", cancelled.RaisedAmount, cancelled.InvestorCount)
		}
		if n := h.publisher.count(domain.EventInvestmentRefunded); n != 2 {
			t.Fatalf("InvestmentRefunded events = %d, want 2", n)
		}
		h.assertAggregates(t, c.ID)

		_, err = h.campaigns.Cancel(ctx, c.ID, h.owner)
		if apperr.CodeOf(err) != apperr.CodeCampaignClosed {
			t.Fatalf("second cancel: expected closed, got %v", err)
		}
	})

	t.Run("target reached", func(t *testing.T) {
		h := newHarness(t)
		c := h.openCampaign(t, 10000, 100)
		h.pay(t, h.invest(t, c.ID, uuid.New(), 10000).ID, "pay-1")

		_, err := h.campaigns.Cancel(ctx, c.ID, h.owner)
		if !errors.Is(err, apperr.ErrInvalidState) || apperr.CodeOf(err) != apperr.CodeTargetReached {
			t.Fatalf("expected target reached, got %v", err)
		}
	})

	t.Run("pending", func(t *testing.T) {
		h := newHarness(t)
		now := h.clock.Now()
		c, err := h.campaigns.Create(ctx, h.owner, CreateCampaignInput{
			ProjectID:     h.project,
			TargetAmount:  decimalOf(10000),
			MinInvestment: decimalOf(100),
			StartTime:     now.Add(24 * time.Hour),
			EndTime:       now.Add(48 * time.Hour),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		cancelled, err := h.campaigns.Cancel(ctx, c.ID, h.owner)
		if err != nil || cancelled.Status != domain.CampaignCancelled {
			t.Fatalf("cancel pending = %v, %v", cancelled.Status, err)
		}
	})
}

func TestReconcileReportsDrift(t *testing.T) {
	ctx := context.Background()

	corrupt := func(t *testing.T, h *harness, id uuid.UUID) {
		t.Helper()
		err := h.mem.Atomic(ctx, func(tx repository.Tx) error {
			c, err := tx.GetCampaign(ctx, id)
			if err != nil {
				return err
			}
			c.RaisedAmount = yuan(1)
			c.InvestorCount = 7
			return tx.UpdateCampaign(ctx, &c)
		})
		if err != nil {
			t.Fatalf("corrupt campaign: %v", err)
		}
	}

	tests := []struct {
		name        string
		autoCorrect bool
		wantRaised  int64
	}{
		{name: "audit only", autoCorrect: false, wantRaised: 1},
		{name: "auto correct", autoCorrect: true, wantRaised: 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := repository.NewMemoryStore()
			h := newHarnessWithStore(t, mem, mem, Options{AutoCorrectDrift: tt.autoCorrect})
			c := h.openCampaign(t, 10000, 100)
			h.pay(t, h.invest(t, c.ID, uuid.New(), 3000).ID, "pay-1")

			audit, err := h.coordinator.Reconcile(ctx, c.ID)
			if err != nil || audit != nil {
				t.Fatalf("consistent campaign: audit = %+v, err = %v", audit, err)
			}

			corrupt(t, h, c.ID)
			audit, err = h.coordinator.Reconcile(ctx, c.ID)
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			if audit == nil {
				t.Fatal("expected drift audit")
			}
			if !audit.ComputedRaised.Equal(yuan(3000)) || audit.ComputedInvestors != 1 || audit.Corrected != tt.autoCorrect {
				t.Fatalf("audit = %+v", audit)
			}
			if got := h.campaign(t, c.ID); !got.RaisedAmount.Equal(yuan(tt.wantRaised)) {
				t.Fatalf("raised after reconcile = %s, want %d", got.RaisedAmount, tt.wantRaised)
			}
			audits, err := h.store.ListReconciliationAudits(ctx, c.ID)
			if err != nil || len(audits) != 1 {
				t.Fatalf("audits = %d, %v; want 1", len(audits), err)
			}
		})
	}
}

func TestReconcileOpen(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	c := h.openCampaign(t, 10000, 100)
	h.pay(t, h.invest(t, c.ID, uuid.New(), 3000).ID, "pay-1")

	drifted, err := h.coordinator.ReconcileOpen(ctx, 24*time.Hour, 50)
	if err != nil || drifted != 0 {
		t.Fatalf("reconcile open = %d, %v; want 0", drifted, err)
	}
}

func TestReconcileOpenPagesPastBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var campaigns []domain.Campaign
	for i := 0; i < 5; i++ {
		campaigns = append(campaigns, h.openCampaignFor(t, uuid.New(), 10000, 100))
		h.clock.Advance(time.Minute)
	}
	oldest := campaigns[0]
	err := h.mem.Atomic(ctx, func(tx repository.Tx) error {
		c, err := tx.GetCampaign(ctx, oldest.ID)
		if err != nil {
			return err
		}
		c.RaisedAmount = yuan(42)
		return tx.UpdateCampaign(ctx, &c)
	})
	if err != nil {
		t.Fatalf("corrupt campaign: %v", err)
	}

	drifted, err := h.coordinator.ReconcileOpen(ctx, 24*time.Hour, 2)
	if err != nil || drifted != 1 {
		t.Fatalf("reconcile open = %d, %v; want 1", drifted, err)
	}
	audits, err := h.store.ListReconciliationAudits(ctx, oldest.ID)
	if err != nil || len(audits) != 1 {
		t.Fatalf("audits on oldest campaign = %d, %v; want 1", len(audits), err)
	}
}
