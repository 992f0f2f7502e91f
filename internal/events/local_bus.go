package events

import (
	"context"
	"sync"
)

// LocalEventBus dispatches events in-process. Handlers run synchronously in
// the publisher's goroutine, which keeps ordering deterministic.
type LocalEventBus struct {
	handlers map[EventType][]EventHandler
	mu       sync.RWMutex
}

func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{handlers: make(map[EventType][]EventHandler)}
}

func (b *LocalEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		_ = handler.Handle(ctx, event)
	}
	return nil
}

func (b *LocalEventBus) Subscribe(eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}
