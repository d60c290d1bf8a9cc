package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/velomart/storefront/internal/domain"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderEventPublisher announces accepted orders to downstream consumers
// (confirmation mail, fulfillment). The backend remains the order authority;
// these events are notifications, not state.
type OrderEventPublisher struct {
	writer kafkaWriter
}

func NewOrderEventPublisher(brokers ...string) *OrderEventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-submitted",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OrderEventPublisher{writer: w}
}

func (p *OrderEventPublisher) PublishOrderSubmitted(ctx context.Context, sessionID string, order *domain.OrderResult) error {
	payload := map[string]interface{}{
		"session_id":   sessionID,
		"order_id":     order.ID,
		"order_key":    order.OrderKey,
		"status":       order.Status,
		"total":        order.Total,
		"currency":     order.Currency,
		"submitted_at": time.Now(),
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.OrderKey), // order key for partition ordering
		Value: payloadJSON,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order-submitted")},
		},
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *OrderEventPublisher) Close() error {
	return p.writer.Close()
}
