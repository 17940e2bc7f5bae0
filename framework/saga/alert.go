// Package saga предоставляет оповещение оператора о сагах,
// требующих вмешательства.
package saga

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Alert оповещение о выполнении, требующем ручного вмешательства.
// Поднимается, когда компенсация исчерпала попытки и сага
// переведена в failed.
type Alert struct {
	ExecutionID string
	SagaType    string
	StepIndex   int
	Reason      string
	RaisedAt    time.Time
}

// Alerter приемник оповещений оператора
type Alerter interface {
	// Raise доставляет оповещение. Ошибка доставки логируется
	// и не влияет на статус саги.
	Raise(ctx context.Context, alert Alert) error
}

// NoopAlerter отбрасывает оповещения
type NoopAlerter struct{}

func (NoopAlerter) Raise(ctx context.Context, alert Alert) error {
	return nil
}

// LogAlerter пишет оповещения в лог уровнем error
type LogAlerter struct {
	logger zerolog.Logger
}

// NewLogAlerter создает Alerter поверх логгера
func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Raise(ctx context.Context, alert Alert) error {
	a.logger.Error().
		Str("execution_id", alert.ExecutionID).
		Str("saga_type", alert.SagaType).
		Int("step_index", alert.StepIndex).
		Str("reason", alert.Reason).
		Time("raised_at", alert.RaisedAt).
		Msg("saga requires manual intervention")
	return nil
}

// ChannelAlerter доставляет оповещения в канал.
// Используется в тестах и для интеграции с внешними системами оповещений.
type ChannelAlerter struct {
	ch chan Alert
}

// NewChannelAlerter создает Alerter с буфером указанного размера
func NewChannelAlerter(buffer int) *ChannelAlerter {
	return &ChannelAlerter{ch: make(chan Alert, buffer)}
}

// Alerts возвращает канал оповещений
func (a *ChannelAlerter) Alerts() <-chan Alert {
	return a.ch
}

func (a *ChannelAlerter) Raise(ctx context.Context, alert Alert) error {
	select {
	case a.ch <- alert:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
