// Package events предоставляет адаптеры для публикации событий
// жизненного цикла саг во внешние брокеры.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/akriventsev/kiln/framework/events"
)

// RetryConfig конфигурация повторов публикации
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию повторов по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// envelope транспортное представление события жизненного цикла
type envelope struct {
	EventID     string                 `json:"event_id"`
	EventType   string                 `json:"event_type"`
	ExecutionID string                 `json:"execution_id"`
	SagaType    string                 `json:"saga_type"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// serializeEvent сериализует событие в транспортный конверт
func serializeEvent(event events.Event) ([]byte, error) {
	env := envelope{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		ExecutionID: event.AggregateID(),
		SagaType:    event.Metadata().GetString("saga_type"),
		OccurredAt:  event.OccurredAt(),
		Metadata:    event.Metadata(),
	}
	return json.Marshal(env)
}

// subjectFor формирует subject/topic suffix события.
// Формат: {prefix}.{saga_type}.{event_type}.
func subjectFor(prefix string, event events.Event) string {
	sagaType := event.Metadata().GetString("saga_type")
	if sagaType == "" {
		sagaType = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, sagaType, event.EventType())
}
