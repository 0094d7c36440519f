package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaNotifier_PublishesKeyedEvent(t *testing.T) {
	w := &recordingWriter{}
	n := newKafkaNotifier(w, "EUR", nil)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := n.OrderFinalized(context.Background(), domain.Order{
		ID:         "order-1",
		UserID:     "user-1",
		TotalCents: 2000,
		CreatedAt:  created,
		Lines:      []domain.OrderLine{{}, {}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "order-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.finalized", string(msg.Headers[0].Value))

	var event OrderFinalizedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, OrderFinalizedEvent{
		OrderID:      "order-1",
		UserID:       "user-1",
		TotalInCents: 2000,
		Currency:     "EUR",
		LineCount:    2,
		CreatedAt:    created,
	}, event)
}

func TestKafkaNotifier_ReturnsWriteError(t *testing.T) {
	n := newKafkaNotifier(&recordingWriter{err: errors.New("broker down")}, "EUR", nil)
	err := n.OrderFinalized(context.Background(), domain.Order{ID: "o"})
	assert.EqualError(t, err, "broker down")
}
