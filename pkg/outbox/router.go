package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// EventDescriptor binds an event type to its aggregate, its broker routing
// key and the struct its data decodes into.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	RoutingKey    string
	payloadType   reflect.Type
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, routingKey string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		RoutingKey:    routingKey,
		payloadType:   reflect.TypeFor[T](),
	}
}

// ResolvedEvent is an outbox row decoded and matched to its descriptor.
// Payload is a pointer to the registered payload struct.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRouter struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRouter knows every event the storefront emits.
func NewEventRouter() *EventRouter {
	table := []EventDescriptor{
		describe[OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, "orders.created"),
		describe[OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, "orders.status_changed"),
		describe[OrderCancelledEvent](enums.EventOrderCancelled, enums.AggregateOrder, "orders.cancelled"),
		describe[CouponRedeemedEvent](enums.EventCouponRedeemed, enums.AggregateCoupon, "coupons.redeemed"),
	}
	router := &EventRouter{entries: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, desc := range table {
		router.entries[desc.EventType] = desc
	}
	return router
}

func (r *EventRouter) lookup(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) (EventDescriptor, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return desc, nonRetryable("unsupported event type %q", eventType)
	}
	if desc.AggregateType != aggregate {
		return desc, nonRetryable("%s belongs to %s aggregates, got %q", eventType, desc.AggregateType, aggregate)
	}
	return desc, nil
}

// check rejects an event before it is written: unknown type, wrong
// aggregate, or data of a different struct than the one registered.
func (r *EventRouter) check(event DomainEvent) error {
	desc, err := r.lookup(event.EventType, event.AggregateType)
	if err != nil {
		return err
	}
	got := reflect.TypeOf(event.Data)
	if got != nil && got.Kind() == reflect.Pointer {
		got = got.Elem()
	}
	if got != desc.payloadType {
		return fmt.Errorf("%s expects %s data, got %v", event.EventType, desc.payloadType, got)
	}
	return nil
}

// Resolve decodes a stored row. Every failure is non-retryable because the
// row will not change between attempts.
func (r *EventRouter) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.lookup(event.EventType, event.AggregateType)
	if err != nil {
		return nil, err
	}
	if event.AggregateID == uuid.Nil {
		return nil, nonRetryable("%s row without aggregate id", event.EventType)
	}

	envelope, err := openEnvelope(event.Payload)
	if err != nil {
		if errors.Is(err, errEmptyData) {
			return nil, nonRetryable("%s payload has no data", event.EventType)
		}
		return nil, NewNonRetryableError(err)
	}
	payload := reflect.New(desc.payloadType).Interface()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s data: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
