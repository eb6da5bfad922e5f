package outbox

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   PayloadEnvelope
	Payload    interface{}
}

// NonRetryableError signals the publisher should stop retrying a row.
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

func NewNonRetryableError(err error) error {
	return NonRetryableError{Err: err}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order events to the orders topic and inventory events to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	if cfg.DomainTopic == "" {
		return nil, errors.New("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderConfirmationRequested,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderConfirmationRequestedEvent{} },
		},
		{
			EventType:      enums.EventOrderCancelled,
			AggregateType:  enums.AggregateOrder,
			Topic:          cfg.OrdersTopic,
			PayloadFactory: func() interface{} { return &payloads.OrderCancelledEvent{} },
		},
		{
			EventType:      enums.EventLowStockDetected,
			AggregateType:  enums.AggregateInventory,
			Topic:          cfg.DomainTopic,
			PayloadFactory: func() interface{} { return &payloads.LowStockDetectedEvent{} },
		},
	} {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Descriptor returns the descriptor registered for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve decodes an outbox row. Unknown types and malformed payloads are non-retryable.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("event type %s is not registered", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("event %s expects aggregate %s, got %s", event.EventType, desc.AggregateType, event.AggregateType))
	}

	payload := desc.PayloadFactory()
	envelope, err := decodeEnvelope(event.Payload, payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
