package shared

import (
	"context"
	"slices"
)

// EventHandler reacts to domain events. Engine handlers run after the
// publishing aggregate is saved, so a failing handler never rolls the
// status change back. Its error is logged and returned to the publisher.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the event types the handler wants. An empty slice
	// means every event.
	EventTypes() []string
}

// Handles reports whether h wants events of eventType
func Handles(h EventHandler, eventType string) bool {
	types := h.EventTypes()
	return len(types) == 0 || slices.Contains(types, eventType)
}

// EventPublisher publishes domain events. Contract status changes reach the
// ledger through it.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber manages handler subscriptions
type EventSubscriber interface {
	// Subscribe registers handler for eventTypes, or for its own EventTypes
	// when none are given
	Subscribe(handler EventHandler, eventTypes ...string)
	// SubscribeAll registers each handler under its own EventTypes
	SubscribeAll(handlers ...EventHandler)
	Unsubscribe(handler EventHandler)
}

// EventBus is a publisher and subscriber with a lifecycle. Publish fails
// once the bus is stopped.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
