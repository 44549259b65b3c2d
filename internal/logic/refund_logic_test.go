package logic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/domain"
)

// failedCampaign 返回一笔已退款待执行的投资
func failedCampaign(t *testing.T, h *harness) domain.Investment {
	t.Helper()
	c := h.openCampaign(t, 10000, 100)
	inv := h.invest(t, c.ID, uuid.New(), 3000)
	h.pay(t, inv.ID, "pay-1")
	if closed := h.expire(t, c); closed.Status != domain.CampaignFailed {
		t.Fatalf("status = %s, want failed", closed.Status)
	}
	return inv
}

func TestRefundRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	inv := failedCampaign(t, h)
	h.gateway.failures = 2

	process := func(want int) {
		t.Helper()
		n, err := h.refunds.ProcessDue(ctx)
		if err != nil || n != want {
			t.Fatalf("process due = %d, %v; want %d", n, err, want)
		}
	}

	process(1)
	r, _ := h.refunds.Get(ctx, inv.ID)
	if r.State != domain.RefundPending || r.Attempts != 1 || r.LastError == "" {
		t.Fatalf("after first failure = %+v", r)
	}
	if want := h.clock.Now().Add(time.Second); !r.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt = %s, want %s", r.NextAttemptAt, want)
	}
	process(0)

	h.clock.Advance(time.Second)
	process(1)
	r, _ = h.refunds.Get(ctx, inv.ID)
	if want := h.clock.Now().Add(2 * time.Second); r.Attempts != 2 || !r.NextAttemptAt.Equal(want) {
		t.Fatalf("after second failure = %+v", r)
	}

	h.clock.Advance(2 * time.Second)
	process(1)
	r, _ = h.refunds.Get(ctx, inv.ID)
	if r.State != domain.RefundSettled || r.SettledAt == nil || r.ProviderRef == "" {
		t.Fatalf("after success = %+v", r)
	}
	process(0)

	if calls := h.gateway.callsFor(inv.ID); calls != 3 {
		t.Fatalf("gateway calls = %d, want 3", calls)
	}
	for _, req := range h.gateway.requests {
		if req.InvestmentID != inv.ID || req.PaymentReference != "pay-1" || !req.Amount.Equal(yuan(3000)) {
			t.Fatalf("refund request = %+v", req)
		}
	}
}

func TestRefundRetryDelay(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 1, want: time.Second},
		{attempts: 2, want: 2 * time.Second},
		{attempts: 3, want: 4 * time.Second},
		{attempts: 10, want: 4 * time.Second},
	}
	for _, tt := range tests {
		if got := h.refunds.retryDelay(tt.attempts); got != tt.want {
			t.Fatalf("retryDelay(%d) = %s, want %s", tt.attempts, got, tt.want)
		}
	}
}

func TestRefundAwaitsProviderConfirmation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.settle = false
	inv := failedCampaign(t, h)

	if _, err := h.refunds.ProcessDue(ctx); err != nil {
		t.Fatalf("process due: %v", err)
	}
	r, _ := h.refunds.Get(ctx, inv.ID)
	if r.State != domain.RefundPending || r.ProviderRef == "" {
		t.Fatalf("accepted refund = %+v", r)
	}

	for i := 0; i < 2; i++ {
		confirmed, err := h.refunds.ConfirmRefund(ctx, inv.ID, "provider-42")
		if err != nil {
			t.Fatalf("confirm refund: %v", err)
		}
		if confirmed.State != domain.RefundSettled || confirmed.ProviderRef != "provider-42" {
			t.Fatalf("confirmed = %+v", confirmed)
		}
	}

	h.clock.Advance(time.Hour)
	if n, err := h.refunds.ProcessDue(ctx); err != nil || n != 0 {
		t.Fatalf("process after settle = %d, %v", n, err)
	}
}

func TestStuckRefundsAreAlerted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.gateway.failures = 1000
	failedCampaign(t, h)

	if n, err := h.refunds.AlertStuck(ctx); err != nil || n != 0 {
		t.Fatalf("fresh refunds alerted = %d, %v", n, err)
	}
	h.clock.Advance(2 * time.Hour)
	if _, err := h.refunds.ProcessDue(ctx); err != nil {
		t.Fatalf("process due: %v", err)
	}
	n, err := h.refunds.AlertStuck(ctx)
	if err != nil || n != 1 {
		t.Fatalf("stuck refunds alerted = %d, %v; want 1", n, err)
	}
}
