// Package kafka 账本事件流、退款指令和支付回调的 Kafka 通道
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v5"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/logger"
)

const connectAttempts = 10

func newSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Idempotent = true
	sc.Producer.Retry.Max = 5
	sc.Net.MaxOpenRequests = 1
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	return sc
}

// Producer 同步生产者
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer 连接 Kafka，broker 未就绪时按固定间隔重试
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	sc := newSaramaConfig(cfg)
	attempt := 0
	sp, err := backoff.Retry(ctx, func() (sarama.SyncProducer, error) {
		attempt++
		sp, err := sarama.NewSyncProducer(cfg.Brokers, sc)
		if err != nil {
			logger.Warn("Waiting for Kafka... (%d/%d) Error: %v", attempt, connectAttempts, err)
		}
		return sp, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(3*time.Second)),
		backoff.WithMaxTries(connectAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka producer: %w", err)
	}
	logger.Info("Kafka producer connected to %v", cfg.Brokers)
	return &Producer{producer: sp}, nil
}

// NewProducerWith 使用已有的 SyncProducer
func NewProducerWith(sp sarama.SyncProducer) *Producer {
	return &Producer{producer: sp}
}

// SendJSON 序列化并同步发送，返回分区和偏移量
func (p *Producer) SendJSON(topic, key string, v any) (int32, int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal %s message: %w", topic, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("send %s message: %w", topic, err)
	}
	logger.Debug("Published %s message key=%s partition=%d offset=%d", topic, key, partition, offset)
	return partition, offset, nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.producer.Close()
}
