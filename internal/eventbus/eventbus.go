// Package eventbus provides a generic typed event bus.
package eventbus

import "sync"

// Subscription represents a subscription to events.
type Subscription struct {
	id      int
	unsubFn func()
}

// Unsubscribe removes the subscription.
func (s *Subscription) Unsubscribe() {
	if s.unsubFn != nil {
		s.unsubFn()
	}
}

// Bus is a generic typed event bus. Publish is synchronous: handlers run on
// the publisher's goroutine in registration order.
type Bus[T any] struct {
	mu       sync.RWMutex
	handlers map[int]func(T)
	order    []int
	nextID   int
	closed   bool
}

// New creates a new Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{
		handlers: make(map[int]func(T)),
	}
}

// Subscribe adds a handler for events.
func (b *Bus[T]) Subscribe(handler func(T)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return &Subscription{}
	}

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.order = append(b.order, id)

	return &Subscription{
		id: id,
		unsubFn: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
		},
	}
}

// SubscribeFiltered adds a handler that only receives matching events.
func (b *Bus[T]) SubscribeFiltered(predicate func(T) bool, handler func(T)) *Subscription {
	return b.Subscribe(func(event T) {
		if predicate(event) {
			handler(event)
		}
	})
}

// Publish sends an event to all subscribers synchronously.
func (b *Bus[T]) Publish(event T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.handlers))
	for _, id := range b.order {
		if h, ok := b.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Close drops all handlers and rejects new subscriptions.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[int]func(T))
	b.order = nil
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
