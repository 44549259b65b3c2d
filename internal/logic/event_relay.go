package logic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/repository"
)

// EventRelay 补发提交后未能发布的事件
type EventRelay struct {
	store     repository.Store
	clock     clock.Clock
	publisher Publisher
	minAge    time.Duration
	batch     int
}

// NewEventRelay minAge 避免与提交后的即时发布竞争
func NewEventRelay(store repository.Store, clk clock.Clock, publisher Publisher, minAge time.Duration, batch int) *EventRelay {
	if batch <= 0 {
		batch = 100
	}
	return &EventRelay{store: store, clock: clk, publisher: publisher, minAge: minAge, batch: batch}
}

// Relay 发布一批未派发的事件，返回条数
func (r *EventRelay) Relay(ctx context.Context) (int, error) {
	events, err := r.store.ListUndispatchedEvents(ctx, r.clock.Now().Add(-r.minAge), r.batch)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	if err := r.publisher.Publish(ctx, events); err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	if err := r.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.MarkEventsDispatched(ctx, ids, r.clock.Now())
	}); err != nil {
		return 0, err
	}
	logger.Info("Relayed %d outbox events", len(events))
	return len(events), nil
}
