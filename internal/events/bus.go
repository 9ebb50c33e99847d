package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Every subscriber is fed from its
// own goroutine, so handlers never run on the publisher's stack.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ChildSpawned:
		event.Publish(b.dispatcher, e)
	case ChildTerminated:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a handler; the handler's parameter type selects the
// events it receives. The returned function unsubscribes.
//
// Usage: unsub := bus.Subscribe(func(e ChildTerminated) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ChildSpawned):
		return event.Subscribe(b.dispatcher, h)
	case func(ChildTerminated):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
