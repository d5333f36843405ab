// Package eventbus carries callflow events between the services that emit them
// (saves, compiles, deploys) and the consumers that audit or act on them.
package eventbus

import (
	"context"

	"github.com/dukex/callflow/pkg/events"
)

// Event is anything published on the bus. Its type selects the handler.
type Event interface {
	GetType() events.EventType
}

// EventPublisher is the side the workflow service and the deployers use.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches decoded events to one handler per event type.
// Handlers are registered before Subscribe starts consuming.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.WorkflowSaved.
// A returned error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
