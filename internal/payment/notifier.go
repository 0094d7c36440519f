// Package payment hands finalized orders to the payment collaborator. The
// collaborator creates its checkout session from the published message; a
// failed publish never undoes the order.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront/internal/domain"
)

// Notifier is told about every order after its transaction commits.
type Notifier interface {
	OrderFinalized(ctx context.Context, order domain.Order) error
}

// OrderFinalizedEvent is the message body consumed by the payment collaborator.
type OrderFinalizedEvent struct {
	OrderID      string    `json:"orderId"`
	UserID       string    `json:"userId"`
	TotalInCents int64     `json:"totalInCents"`
	Currency     string    `json:"currency"`
	LineCount    int       `json:"lineCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewOrderFinalizedEvent builds the event for order.
func NewOrderFinalizedEvent(order domain.Order, currency string) OrderFinalizedEvent {
	return OrderFinalizedEvent{
		OrderID:      order.ID,
		UserID:       order.UserID,
		TotalInCents: order.TotalCents,
		Currency:     currency,
		LineCount:    len(order.Lines),
		CreatedAt:    order.CreatedAt,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes OrderFinalizedEvent keyed by order id.
type KafkaNotifier struct {
	writer   messageWriter
	currency string
	logger   *log.Logger
}

// NewKafkaNotifier writes to topic on the given brokers.
func NewKafkaNotifier(brokers []string, topic, currency string, logger *log.Logger) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            5,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return newKafkaNotifier(w, currency, logger)
}

func newKafkaNotifier(w messageWriter, currency string, logger *log.Logger) *KafkaNotifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &KafkaNotifier{writer: w, currency: currency, logger: logger}
}

func (k *KafkaNotifier) OrderFinalized(ctx context.Context, order domain.Order) error {
	body, err := json.Marshal(NewOrderFinalizedEvent(order, k.currency))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(order.ID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("order.finalized")},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Printf("payment: publish order_id=%s error=%v", order.ID, err)
		return err
	}
	k.logger.Printf("payment: published order_id=%s total_cents=%d", order.ID, order.TotalCents)
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

// NopNotifier drops every event. Used when no broker is configured.
type NopNotifier struct{}

func (NopNotifier) OrderFinalized(context.Context, domain.Order) error { return nil }
