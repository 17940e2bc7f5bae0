// Package saga предоставляет события жизненного цикла саг.
package saga

import (
	"github.com/akriventsev/kiln/framework/events"
)

// Типы событий жизненного цикла саги
const (
	EventSagaStarted         = "saga.started"
	EventSagaStepCompleted   = "saga.step.completed"
	EventSagaStepFailed      = "saga.step.failed"
	EventSagaCompleted       = "saga.completed"
	EventSagaCompensating    = "saga.compensating"
	EventSagaStepCompensated = "saga.step.compensated"
	EventSagaCompensated     = "saga.compensated"
	EventSagaFailed          = "saga.failed"
	EventSagaCancelRequested = "saga.cancel.requested"
	EventSagaResumed         = "saga.resumed"
)

// SagaStartedEvent сага запущена
type SagaStartedEvent struct {
	*events.BaseEvent
	SagaType   string
	TotalSteps int
}

// NewSagaStartedEvent создает событие запуска саги
func NewSagaStartedEvent(executionID, sagaType string, totalSteps int) *SagaStartedEvent {
	return &SagaStartedEvent{
		BaseEvent:  events.NewBaseEvent(EventSagaStarted, executionID).WithMetadata("saga_type", sagaType),
		SagaType:   sagaType,
		TotalSteps: totalSteps,
	}
}

// StepCompletedEvent шаг выполнен успешно
type StepCompletedEvent struct {
	*events.BaseEvent
	SagaType  string
	StepName  string
	StepIndex int
}

// NewStepCompletedEvent создает событие успешного шага
func NewStepCompletedEvent(executionID, sagaType, stepName string, stepIndex int) *StepCompletedEvent {
	return &StepCompletedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaStepCompleted, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		StepName:  stepName,
		StepIndex: stepIndex,
	}
}

// StepFailedEvent шаг исчерпал попытки или вернул бизнес-ошибку
type StepFailedEvent struct {
	*events.BaseEvent
	SagaType  string
	StepName  string
	StepIndex int
	Reason    string
	Terminal  bool
}

// NewStepFailedEvent создает событие отказа шага
func NewStepFailedEvent(executionID, sagaType, stepName string, stepIndex int, reason string, terminal bool) *StepFailedEvent {
	return &StepFailedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaStepFailed, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		StepName:  stepName,
		StepIndex: stepIndex,
		Reason:    reason,
		Terminal:  terminal,
	}
}

// SagaCompletedEvent все шаги саги выполнены
type SagaCompletedEvent struct {
	*events.BaseEvent
	SagaType string
}

// NewSagaCompletedEvent создает событие успешного завершения саги
func NewSagaCompletedEvent(executionID, sagaType string) *SagaCompletedEvent {
	return &SagaCompletedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaCompleted, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
	}
}

// SagaCompensatingEvent сага перешла к компенсации
type SagaCompensatingEvent struct {
	*events.BaseEvent
	SagaType string
	Reason   string
}

// NewSagaCompensatingEvent создает событие начала компенсации
func NewSagaCompensatingEvent(executionID, sagaType, reason string) *SagaCompensatingEvent {
	return &SagaCompensatingEvent{
		BaseEvent: events.NewBaseEvent(EventSagaCompensating, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		Reason:    reason,
	}
}

// StepCompensatedEvent шаг компенсирован
type StepCompensatedEvent struct {
	*events.BaseEvent
	SagaType  string
	StepName  string
	StepIndex int
}

// NewStepCompensatedEvent создает событие компенсации шага
func NewStepCompensatedEvent(executionID, sagaType, stepName string, stepIndex int) *StepCompensatedEvent {
	return &StepCompensatedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaStepCompensated, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		StepName:  stepName,
		StepIndex: stepIndex,
	}
}

// SagaCompensatedEvent все выполненные шаги компенсированы
type SagaCompensatedEvent struct {
	*events.BaseEvent
	SagaType string
}

// NewSagaCompensatedEvent создает событие полной компенсации
func NewSagaCompensatedEvent(executionID, sagaType string) *SagaCompensatedEvent {
	return &SagaCompensatedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaCompensated, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
	}
}

// SagaFailedEvent компенсация не удалась, требуется вмешательство оператора
type SagaFailedEvent struct {
	*events.BaseEvent
	SagaType string
	Reason   string
}

// NewSagaFailedEvent создает событие отказа саги
func NewSagaFailedEvent(executionID, sagaType, reason string) *SagaFailedEvent {
	return &SagaFailedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaFailed, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		Reason:    reason,
	}
}

// SagaResumedEvent брошенная сага возобновлена
type SagaResumedEvent struct {
	*events.BaseEvent
	SagaType string
	Status   ExecutionStatus
}

// NewSagaResumedEvent создает событие возобновления саги
func NewSagaResumedEvent(executionID, sagaType string, status ExecutionStatus) *SagaResumedEvent {
	return &SagaResumedEvent{
		BaseEvent: events.NewBaseEvent(EventSagaResumed, executionID).WithMetadata("saga_type", sagaType),
		SagaType:  sagaType,
		Status:    status,
	}
}
