package repository

import (
	"context"
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// EventPublisher message lifecycle log
type EventPublisher interface {
	Publish(ctx context.Context, evt domain.LifecycleEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaEventPublisher lifecycle events keyed by conversation id
type KafkaEventPublisher struct {
	writer messageWriter
}

// NewKafkaEventPublisher create KafkaEventPublisher
func NewKafkaEventPublisher(writer *kafka.Writer) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// Publish write one event, same conversation lands on the same partition
func (p *KafkaEventPublisher) Publish(ctx context.Context, evt domain.LifecycleEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.ConversationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
		Time: evt.At,
	})
}

// NopEventPublisher used when kafka is disabled
type NopEventPublisher struct{}

// Publish discard
func (NopEventPublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }
