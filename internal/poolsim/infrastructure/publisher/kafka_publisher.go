// Package publisher 提供领域事件的 Kafka 发布实现
package publisher

import (
	"context"

	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/logger"
	"github.com/wyfcoding/creditpool/pkg/mq"
)

// KafkaEventPublisher 以事件类型作为 topic 发布事件，批次 ID 作为分区键
type KafkaEventPublisher struct {
	producer    *mq.KafkaProducer
	topicPrefix string
}

// NewKafkaEventPublisher 创建 Kafka 事件发布器，topicPrefix 为空时直接使用事件类型
func NewKafkaEventPublisher(producer *mq.KafkaProducer, topicPrefix string) domain.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topicPrefix: topicPrefix}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	return p.producer.SendMessage(ctx, p.topic(eventType), key, event)
}

func (p *KafkaEventPublisher) topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

// LogEventPublisher 未配置 Kafka 时把事件写入日志
type LogEventPublisher struct{}

// NewLogEventPublisher 创建日志事件发布器
func NewLogEventPublisher() domain.EventPublisher {
	return LogEventPublisher{}
}

func (LogEventPublisher) Publish(ctx context.Context, eventType, key string, event any) error {
	logger.Info(ctx, "Domain event", "event_type", eventType, "key", key, "event", event)
	return nil
}
