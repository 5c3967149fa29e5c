package shared

import "context"

// EventHandler reacts to committed entitlement events. An empty EventTypes
// subscribes to everything.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher is called by services after a transaction commits.
// Publishing is best effort: the database is the source of truth.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
