package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/computers-backend/pkg/config"
	"github.com/angelmondragon/computers-backend/pkg/db/models"
	"github.com/angelmondragon/computers-backend/pkg/enums"
	"github.com/angelmondragon/computers-backend/pkg/outbox"
	"github.com/angelmondragon/computers-backend/pkg/outbox/payloads"
)

// maxEnvelopeVersion is the newest envelope layout this relay understands.
const maxEnvelopeVersion = 1

// EventDescriptor routes one event type to its topic and payload decoder.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string

	decode func(data json.RawMessage, aggregateID uuid.UUID) (any, error)
}

// ResolvedEvent is an outbox row that passed validation and is safe to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry knows every order event the relay may publish.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will never publish no matter how often it is retried.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// NewEventRegistry registers the order lifecycle events on cfg.OrdersTopic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	topic := cfg.OrdersTopic

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(orderEvent(enums.EventOrderCreated, topic,
		func(p *payloads.OrderCreatedEvent) uuid.UUID { return p.OrderID },
		func(p *payloads.OrderCreatedEvent) error {
			if !p.PaymentMethod.IsValid() {
				return fmt.Errorf("unknown payment method %q", p.PaymentMethod)
			}
			if p.LineCount <= 0 {
				return errors.New("order has no lines")
			}
			return nil
		}))
	reg.add(orderEvent(enums.EventOrderStateChanged, topic,
		func(p *payloads.OrderStateChangedEvent) uuid.UUID { return p.OrderID },
		func(p *payloads.OrderStateChangedEvent) error {
			if !p.Event.IsValid() {
				return fmt.Errorf("unknown lifecycle event %q", p.Event)
			}
			if !p.ToOrderStatus.IsValid() || !p.ToPaymentStatus.IsValid() {
				return fmt.Errorf("unknown target state %q/%q", p.ToOrderStatus, p.ToPaymentStatus)
			}
			return nil
		}))
	reg.add(orderEvent(enums.EventOrderOverrideApplied, topic,
		func(p *payloads.OrderOverrideAppliedEvent) uuid.UUID { return p.OrderID },
		func(p *payloads.OrderOverrideAppliedEvent) error {
			if p.FromOrderStatus != enums.OrderStatusRefundRejected {
				return fmt.Errorf("override must start from %s, got %q", enums.OrderStatusRefundRejected, p.FromOrderStatus)
			}
			return nil
		}))
	return reg, nil
}

// orderEvent builds a descriptor whose decoder unmarshals into T, requires the
// payload's order id to match the row's aggregate id and then runs check.
func orderEvent[T any](eventType enums.OutboxEventType, topic string, orderID func(*T) uuid.UUID, check func(*T) error) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		Topic:         topic,
		decode: func(data json.RawMessage, aggregateID uuid.UUID) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(data, payload); err != nil {
				return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
			}
			if got := orderID(payload); got != aggregateID {
				return nil, fmt.Errorf("%s payload is for order %s, row is for %s", eventType, got, aggregateID)
			}
			if err := check(payload); err != nil {
				return nil, fmt.Errorf("%s: %w", eventType, err)
			}
			return payload, nil
		},
	}
}

func (r *EventRegistry) add(desc EventDescriptor) {
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload. Every failure is a
// NonRetryableError: a malformed row stays malformed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	}
	if desc.AggregateType != event.AggregateType {
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if envelope.Version < 1 || envelope.Version > maxEnvelopeVersion {
		return nil, nonRetryable("unsupported envelope version %d", envelope.Version)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}

	payload, err := desc.decode(envelope.Data, event.AggregateID)
	if err != nil {
		return nil, NonRetryableError{Err: err}
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
