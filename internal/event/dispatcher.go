package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// Processor 事件处理器。事件至少投递一次，处理器需要幂等
type Processor interface {
	Name() string
	Process(ctx context.Context, e domain.Event) error
}

// Dispatcher 账本事件分发器，按事件顺序逐条分发，同一事件的多个处理器并发执行
type Dispatcher struct {
	mu         sync.RWMutex
	processors []registration
	pool       *ants.Pool // 协程池
}

type registration struct {
	processor Processor
	types     map[domain.EventType]struct{} // 为空表示订阅全部
}

// NewDispatcher 创建事件分发器
func NewDispatcher(poolSize int) (*Dispatcher, error) {
	if poolSize <= 0 {
		poolSize = 16
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create event pool: %w", err)
	}
	return &Dispatcher{pool: pool}, nil
}

// Register 注册处理器，不指定类型时接收全部事件
func (d *Dispatcher) Register(p Processor, types ...domain.EventType) {
	r := registration{processor: p}
	if len(types) > 0 {
		r.types = make(map[domain.EventType]struct{}, len(types))
		for _, t := range types {
			r.types[t] = struct{}{}
		}
	}
	d.mu.Lock()
	d.processors = append(d.processors, r)
	d.mu.Unlock()
	logger.Info("Registered event processor %s", p.Name())
}

func (d *Dispatcher) matching(t domain.EventType) []Processor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Processor
	for _, r := range d.processors {
		if r.types == nil {
			out = append(out, r.processor)
			continue
		}
		if _, ok := r.types[t]; ok {
			out = append(out, r.processor)
		}
	}
	return out
}

// Publish 分发一批事件，任一处理器失败都会返回错误，整批事件留待补发
func (d *Dispatcher) Publish(ctx context.Context, events []domain.Event) error {
	var errs []error
	for _, e := range events {
		if err := d.dispatch(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, e domain.Event) error {
	processors := d.matching(e.Type)
	if len(processors) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	for _, p := range processors {
		p := p
		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()
			if err := p.Process(ctx, e); err != nil {
				logger.Error("Processor %s failed on %s event %s: %v", p.Name(), e.Type, e.ID, err)
				fail(fmt.Errorf("%s: %w", p.Name(), err))
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit event %s to pool: %v", e.ID, err)
			fail(err)
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close 释放协程池
func (d *Dispatcher) Close() {
	d.pool.Release()
}
