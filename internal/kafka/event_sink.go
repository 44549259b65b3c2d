package kafka

import (
	"context"

	"github.com/leopark123/ideahub/internal/domain"
)

// EventSink 将账本事件写入事件流，以众筹 ID 作为分区键保证同一众筹内有序
type EventSink struct {
	producer *Producer
	topic    string
}

// NewEventSink 创建事件流处理器
func NewEventSink(producer *Producer, topic string) *EventSink {
	return &EventSink{producer: producer, topic: topic}
}

func (s *EventSink) Name() string { return "kafka:" + s.topic }

// Process 处理事件
func (s *EventSink) Process(_ context.Context, e domain.Event) error {
	_, _, err := s.producer.SendJSON(s.topic, e.CampaignID.String(), e)
	return err
}
