// Package events предоставляет базовые интерфейсы для работы с событиями
// жизненного цикла саг.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event представляет событие жизненного цикла
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает тип события
	EventType() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
	// AggregateID возвращает идентификатор агрегата (для саг - execution ID)
	AggregateID() string
	// Metadata возвращает метаданные события
	Metadata() EventMetadata
}

// EventMetadata метаданные события
type EventMetadata map[string]interface{}

// Get получает значение метаданных по ключу
func (m EventMetadata) Get(key string) (interface{}, bool) {
	val, ok := m[key]
	return val, ok
}

// GetString получает строковое значение метаданных
func (m EventMetadata) GetString(key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// CorrelationID возвращает correlation ID
func (m EventMetadata) CorrelationID() string {
	return m.GetString("correlation_id")
}

// BaseEvent базовая реализация события
type BaseEvent struct {
	eventID     string
	eventType   string
	occurredAt  time.Time
	aggregateID string
	metadata    EventMetadata
}

// NewBaseEvent создает новое базовое событие
func NewBaseEvent(eventType, aggregateID string) *BaseEvent {
	return &BaseEvent{
		eventID:     uuid.NewString(),
		eventType:   eventType,
		occurredAt:  time.Now(),
		aggregateID: aggregateID,
		metadata:    make(EventMetadata),
	}
}

// WithMetadata добавляет метаданные к событию
func (e *BaseEvent) WithMetadata(key string, value interface{}) *BaseEvent {
	e.metadata[key] = value
	return e
}

// WithCorrelationID устанавливает correlation ID
func (e *BaseEvent) WithCorrelationID(id string) *BaseEvent {
	e.metadata["correlation_id"] = id
	return e
}

func (e *BaseEvent) EventID() string {
	return e.eventID
}

func (e *BaseEvent) EventType() string {
	return e.eventType
}

func (e *BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e *BaseEvent) AggregateID() string {
	return e.aggregateID
}

func (e *BaseEvent) Metadata() EventMetadata {
	return e.metadata
}

// EventHandler обработчик событий
type EventHandler interface {
	// Handle обрабатывает событие
	Handle(ctx context.Context, event Event) error
	// EventType возвращает тип события, который обрабатывает этот handler
	EventType() string
}

// EventHandlerFunc адаптер функции к EventHandler.
// Используется через указатель: шина различает подписчиков по значению
// интерфейса.
type EventHandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, event Event) error
}

// NewEventHandlerFunc создает обработчик из функции
func NewEventHandlerFunc(eventType string, fn func(ctx context.Context, event Event) error) *EventHandlerFunc {
	return &EventHandlerFunc{Type: eventType, Fn: fn}
}

func (h *EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

func (h *EventHandlerFunc) EventType() string {
	return h.Type
}

// EventPublisher публикатор событий
type EventPublisher interface {
	// Publish публикует событие
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber подписчик на события
type EventSubscriber interface {
	// Subscribe подписывается на тип события
	Subscribe(eventType string, handler EventHandler) error
	// Unsubscribe отписывается от типа события
	Unsubscribe(eventType string, handler EventHandler) error
}

// EventBus объединяет Publisher и Subscriber
type EventBus interface {
	EventPublisher
	EventSubscriber
}
