package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "cart-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher forwards cart events from the event bus to Kafka. Messages
// are keyed by cart id so the events of one cart stay ordered.
type EventPublisher struct {
	events <-chan domain.Event
	writer messageWriter
	logger *zap.Logger
}

func NewEventPublisher(events <-chan domain.Event, logger *zap.Logger, brokers ...string) *EventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &EventPublisher{events: events, writer: w, logger: logger}
}

// Run publishes until ctx is cancelled or the event channel is closed.
func (p *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.events:
			if !ok {
				return
			}
			if err := p.publish(ctx, event); err != nil {
				p.logger.Error("failed to publish cart event",
					zap.String("cart_id", event.CartID),
					zap.String("type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}

func (p *EventPublisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.logger.Warn("error closing kafka writer", zap.Error(err))
	}
}

func (p *EventPublisher) publish(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CartID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
