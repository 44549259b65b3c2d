package logic

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/clock"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/repository"
)

const defaultConflictRetries = 5

// campaignSerializer 众筹级临界区：进程内按众筹加锁，事务内再加数据库 advisory lock，
// 版本冲突时有限次重试。事件与状态变更写入同一事务，提交后再发布。
type campaignSerializer struct {
	store     repository.Store
	clock     clock.Clock
	publisher Publisher
	locks     *keyedMutex
	retries   uint
}

func newCampaignSerializer(store repository.Store, clk clock.Clock, publisher Publisher, retries uint) *campaignSerializer {
	if retries == 0 {
		retries = defaultConflictRetries
	}
	return &campaignSerializer{
		store:     store,
		clock:     clk,
		publisher: publisher,
		locks:     newKeyedMutex(),
		retries:   retries,
	}
}

// mutation 在临界区内执行，返回需要发布的事件
type mutation func(ctx context.Context, tx repository.Tx, now clock.Instant) ([]domain.Event, error)

func newConflictBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	return b
}

// run 对同一众筹的所有写操作串行执行，事件在释放锁之后发布
func (s *campaignSerializer) run(ctx context.Context, campaignID uuid.UUID, fn mutation) error {
	events, err := s.apply(ctx, campaignID, fn)
	if err != nil {
		return err
	}
	s.dispatch(context.WithoutCancel(ctx), events)
	return nil
}

func (s *campaignSerializer) apply(ctx context.Context, campaignID uuid.UUID, fn mutation) ([]domain.Event, error) {
	unlock, err := s.locks.Lock(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	attempt := func() ([]domain.Event, error) {
		var events []domain.Event
		err := s.store.Atomic(ctx, func(tx repository.Tx) error {
			if err := tx.LockCampaign(ctx, campaignID); err != nil {
				return err
			}
			out, err := fn(ctx, tx, s.clock.Now())
			if err != nil {
				return err
			}
			if err := tx.InsertEvents(ctx, out); err != nil {
				return err
			}
			events = out
			return nil
		})
		if err != nil && !errors.Is(err, apperr.ErrVersionConflict) {
			return nil, backoff.Permanent(err)
		}
		return events, err
	}

	events, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(newConflictBackOff()),
		backoff.WithMaxTries(s.retries),
	)
	if err != nil {
		if errors.Is(err, apperr.ErrVersionConflict) {
			return nil, apperr.Transient(apperr.CodeRetryExhausted, err, "campaign %s is busy, retry later", campaignID)
		}
		return nil, err
	}
	return events, nil
}

// dispatch 提交后发布事件；失败的事件留在发件箱由补发任务处理
func (s *campaignSerializer) dispatch(ctx context.Context, events []domain.Event) {
	if len(events) == 0 || s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events); err != nil {
		logger.Warn("Failed to publish %d events, outbox relay will retry: %v", len(events), err)
		return
	}
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	err := s.store.Atomic(ctx, func(tx repository.Tx) error {
		return tx.MarkEventsDispatched(ctx, ids, s.clock.Now())
	})
	if err != nil {
		logger.Warn("Failed to mark %d events dispatched: %v", len(ids), err)
	}
}
