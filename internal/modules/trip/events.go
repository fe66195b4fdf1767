// README: Trip lifecycle events published to Kafka.
package trip

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// EventPublisher ships trip events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	w MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish keys messages by trip id so a trip's events stay ordered within a
// partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode trip event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.TripID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("trip." + string(e.ToStatus))},
		},
	}); err != nil {
		return fmt.Errorf("publish trip event: %w", err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
