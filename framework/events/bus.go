// Package events предоставляет реализацию EventBus.
package events

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryEventBus шина событий в памяти.
//
// Доставка синхронная и best-effort: публикация событий жизненного
// цикла не участвует в durable-состоянии саги, ошибка обработчика не
// влияет на ход выполнения.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler
	stopped  bool
	wg       sync.WaitGroup
}

// NewInMemoryEventBus создает новую шину событий
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]EventHandler),
	}
}

// Publish публикует событие всем подписчикам его типа
func (b *InMemoryEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is stopped")
	}
	handlers := make([]EventHandler, len(b.handlers[event.EventType()]))
	copy(handlers, b.handlers[event.EventType()])
	b.wg.Add(1)
	b.mu.RUnlock()
	defer b.wg.Done()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("handler for %s failed: %w", event.EventType(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish failed: %v", errs)
	}
	return nil
}

// Subscribe подписывается на тип события
func (b *InMemoryEventBus) Subscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.handlers[eventType] {
		if h == handler {
			return fmt.Errorf("handler already subscribed to event type %s", eventType)
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// Unsubscribe отписывается от типа события
func (b *InMemoryEventBus) Unsubscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			b.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("handler not found for event type %s", eventType)
}

// Shutdown останавливает шину и дожидается активных публикаций
func (b *InMemoryEventBus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
