package events

import (
	"context"
	"fmt"

	"slotguard/pkg/kafka"
	"slotguard/pkg/middleware"
)

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher keys messages by provider so one provider's events stay
// ordered on a partition.
type KafkaPublisher struct {
	producer messagePublisher
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := kafka.NewMessage().
		WithKey(e.ProviderID).
		WithValue(e).
		WithEventID(e.EventID).
		WithEventType(string(e.Type)).
		WithCorrelationID(middleware.RequestID(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithTimestamp(e.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("build %s message: %w", e.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}
