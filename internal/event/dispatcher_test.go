package event

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetDefaultLogger(logger.NewNop())
	os.Exit(m.Run())
}

type recorder struct {
	name string
	err  error
	mu   sync.Mutex
	seen []domain.EventType
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Process(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.Type)
	return r.err
}

func events(types ...domain.EventType) []domain.Event {
	out := make([]domain.Event, 0, len(types))
	for _, t := range types {
		out = append(out, domain.Event{ID: uuid.New(), Type: t, CampaignID: uuid.New()})
	}
	return out
}

func TestDispatcherRoutesByType(t *testing.T) {
	d, err := NewDispatcher(4)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	defer d.Close()

	all := &recorder{name: "all"}
	refunds := &recorder{name: "refunds"}
	d.Register(all)
	d.Register(refunds, domain.EventInvestmentRefunded)
	d.Register(LogProcessor{})

	batch := events(domain.EventCampaignActivated, domain.EventInvestmentConfirmed, domain.EventInvestmentRefunded)
	if err := d.Publish(context.Background(), batch); err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := []domain.EventType{domain.EventCampaignActivated, domain.EventInvestmentConfirmed, domain.EventInvestmentRefunded}
	if len(all.seen) != len(want) {
		t.Fatalf("all processor saw %v, want %v", all.seen, want)
	}
	for i := range want {
		if all.seen[i] != want[i] {
			t.Fatalf("order = %v, want %v", all.seen, want)
		}
	}
	if len(refunds.seen) != 1 || refunds.seen[0] != domain.EventInvestmentRefunded {
		t.Fatalf("refund processor saw %v", refunds.seen)
	}
}

func TestDispatcherJoinsErrors(t *testing.T) {
	d, err := NewDispatcher(2)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	defer d.Close()

	boom := errors.New("sink down")
	ok := &recorder{name: "ok"}
	d.Register(ok)
	d.Register(&recorder{name: "broken", err: boom})

	err = d.Publish(context.Background(), events(domain.EventCampaignFailed, domain.EventCampaignSucceeded))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if len(ok.seen) != 2 {
		t.Fatalf("healthy processor saw %d events, want 2", len(ok.seen))
	}
}
