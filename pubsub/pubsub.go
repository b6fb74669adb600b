package pubsub

import (
	"context"

	"github.com/conclave-ai/conclave/events"
)

// Broker hands out named topics. Implementations differ only in transport;
// the local broker stays in process, the NATS broker crosses machines.
type Broker interface {
	Topic(context.Context, string) Topic
}

// Topic is a named event stream. Publish fans an event out to every
// subscriber; each subscriber receives events through its own hook.
type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

// Subscription is a handle onto an active subscription.
type Subscription interface {
	ID() string
	Unsubscribe()
}
