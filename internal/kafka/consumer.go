package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v5"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/logger"
	"go.uber.org/zap"
)

// MessageHandler 处理单条消息
type MessageHandler func(ctx context.Context, value []byte) error

const (
	defaultRetryInitial = 200 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

// Consumer 消费组，按主题路由到处理函数
type Consumer struct {
	group    sarama.ConsumerGroup
	handlers map[string]MessageHandler
	wg       sync.WaitGroup

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewConsumer 加入消费组
func NewConsumer(cfg config.KafkaConfig) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, newSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka consumer group %s: %w", cfg.GroupID, err)
	}
	return NewConsumerWith(group), nil
}

// NewConsumerWith 使用已有的消费组
func NewConsumerWith(group sarama.ConsumerGroup) *Consumer {
	return &Consumer{
		group:        group,
		handlers:     make(map[string]MessageHandler),
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
}

// SetRetryInterval 调整处理失败后的重试间隔
func (c *Consumer) SetRetryInterval(initial, maxInterval time.Duration) {
	if initial > 0 {
		c.retryInitial = initial
	}
	if maxInterval >= c.retryInitial {
		c.retryMax = maxInterval
	}
}

// Handle 注册主题处理函数，需在 Start 之前调用
func (c *Consumer) Handle(topic string, h MessageHandler) {
	c.handlers[topic] = h
}

// Start 后台消费，ctx 取消后退出
func (c *Consumer) Start(ctx context.Context) {
	topics := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return
	}

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			logger.Error("Kafka consumer error: %v", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		logger.Info("Listening on topics %v", topics)
		for {
			// 再均衡后 Consume 返回，需要重新加入
			if err := c.group.Consume(ctx, topics, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				logger.Error("Kafka consume failed: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// Close 离开消费组
func (c *Consumer) Close() error {
	err := c.group.Close()
	c.wg.Wait()
	return err
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 逐条处理分区消息，未处理成功的消息不提交位移，
// 会话结束后从该消息重新投递
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if !c.handle(ctx, msg) || ctx.Err() != nil {
				return nil
			}
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			return nil
		}
	}
}

// handle 返回消息是否可以提交。瞬时和内部错误一直重试直到 ctx 结束，
// 业务拒绝（校验、状态、冲突等）重放结果不变，记录后跳过
func (c *Consumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		logger.Warn("No handler for topic %s", msg.Topic)
		return true
	}
	fields := []zap.Field{
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := h(ctx, msg.Value)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Alert("Handling %s message at offset %d failed, retrying in %s: %v", fields, msg.Topic, msg.Offset, next, err)
		}),
	)
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil || retryable(err):
		logger.Warn("Leaving %s message at offset %d uncommitted: %v", msg.Topic, msg.Offset, err)
		return false
	default:
		logger.Warn("Rejected %s message at offset %d: %v", msg.Topic, msg.Offset, err)
		return true
	}
}

func (c *Consumer) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	return b
}

func retryable(err error) bool {
	k := apperr.KindOf(err)
	return k == apperr.KindTransient || k == apperr.KindInternal
}
