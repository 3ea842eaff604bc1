package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
)

func TestResolveStateChange(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(row(t, enums.EventOrderStateChanged, orderID, 1, payloads.OrderStateChangedEvent{
		OrderID:         orderID,
		Event:           enums.OrderEventCaptureApproved,
		FromOrderStatus: enums.OrderStatusPendingPayment,
		ToOrderStatus:   enums.OrderStatusProcessing,
		ToPaymentStatus: enums.PaymentStatusCompleted,
	}))
	require.NoError(t, err)
	require.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.OrderStateChangedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, orderID, payload.OrderID)
	require.Equal(t, enums.OrderStatusProcessing, payload.ToOrderStatus)
}

func TestResolveOrderCreated(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	resolved, err := reg.Resolve(row(t, enums.EventOrderCreated, orderID, 1, payloads.OrderCreatedEvent{
		OrderID:       orderID,
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodBankTransfer,
		TotalAmount:   decimal.RequireFromString("1250.00"),
		Currency:      "THB",
		LineCount:     2,
	}))
	require.NoError(t, err)
	require.IsType(t, &payloads.OrderCreatedEvent{}, resolved.Payload)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()
	validCreated := payloads.OrderCreatedEvent{OrderID: orderID, PaymentMethod: enums.PaymentMethodPayPal, LineCount: 1}

	tests := []struct {
		name  string
		event models.OutboxEvent
	}{
		{"unknown event", row(t, "order_teleported", orderID, 1, validCreated)},
		{"missing aggregate id", row(t, enums.EventOrderCreated, uuid.Nil, 1, validCreated)},
		{"payload for another order", row(t, enums.EventOrderCreated, uuid.New(), 1, validCreated)},
		{"future envelope version", row(t, enums.EventOrderCreated, orderID, 2, validCreated)},
		{"null payload", row(t, enums.EventOrderOverrideApplied, orderID, 1, nil)},
		{"unknown payment method", row(t, enums.EventOrderCreated, orderID, 1, payloads.OrderCreatedEvent{
			OrderID: orderID, PaymentMethod: "CASH", LineCount: 1,
		})},
		{"order without lines", row(t, enums.EventOrderCreated, orderID, 1, payloads.OrderCreatedEvent{
			OrderID: orderID, PaymentMethod: enums.PaymentMethodPayPal,
		})},
		{"unknown lifecycle event", row(t, enums.EventOrderStateChanged, orderID, 1, payloads.OrderStateChangedEvent{
			OrderID: orderID, Event: "teleport", ToOrderStatus: enums.OrderStatusShipped, ToPaymentStatus: enums.PaymentStatusCompleted,
		})},
		{"override not from refund rejected", row(t, enums.EventOrderOverrideApplied, orderID, 1, payloads.OrderOverrideAppliedEvent{
			OrderID: orderID, FromOrderStatus: enums.OrderStatusShipped, ToOrderStatus: enums.OrderStatusRefunded,
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Resolve(tt.event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			require.True(t, errors.As(err, &nonRetry), "got %T", err)
		})
	}

	t.Run("aggregate mismatch", func(t *testing.T) {
		event := row(t, enums.EventOrderCreated, orderID, 1, validCreated)
		event.AggregateType = "store"
		_, err := reg.Resolve(event)
		require.ErrorContains(t, err, "aggregate mismatch")
	})
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders-topic"})
	require.NoError(t, err)
	return reg
}

func row(t *testing.T, eventType enums.OutboxEventType, orderID uuid.UUID, version int, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       envelope,
	}
}
