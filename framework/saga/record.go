// Package saga предоставляет движок оркестрации саг: линейные последовательности
// шагов с компенсацией в обратном порядке и восстановлением после сбоев процесса.
package saga

import (
	"time"
)

// ExecutionStatus статус выполнения саги
type ExecutionStatus string

const (
	StatusStarted      ExecutionStatus = "started"
	StatusInProgress   ExecutionStatus = "in_progress"
	StatusCompensating ExecutionStatus = "compensating"
	StatusCompensated  ExecutionStatus = "compensated"
	StatusCompleted    ExecutionStatus = "completed"
	StatusFailed       ExecutionStatus = "failed"
)

// IsTerminal проверяет, является ли статус терминальным.
// Терминальная запись становится неизменяемой и хранится для аудита.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated, StatusFailed:
		return true
	}
	return false
}

// NonTerminalStatuses возвращает статусы, по которым Recovery Scanner
// ищет брошенные выполнения
func NonTerminalStatuses() []ExecutionStatus {
	return []ExecutionStatus{StatusStarted, StatusInProgress, StatusCompensating}
}

// ExecutionRecord durable-состояние одного запуска саги.
//
// CurrentStepIndex интерпретируется в зависимости от статуса:
// при in_progress это следующий шаг для выполнения (равен числу успешно
// выполненных шагов), при compensating - следующий шаг для компенсации.
// После полной компенсации индекс опускается до -1.
type ExecutionRecord struct {
	ExecutionID      string                 `json:"execution_id" bson:"_id"`
	SagaType         string                 `json:"saga_type" bson:"saga_type"`
	Status           ExecutionStatus        `json:"status" bson:"status"`
	CurrentStepIndex int                    `json:"current_step_index" bson:"current_step_index"`
	TotalSteps       int                    `json:"total_steps" bson:"total_steps"`
	Context          map[string]interface{} `json:"context" bson:"context"`
	RetryCount       int                    `json:"retry_count" bson:"retry_count"`
	LastError        string                 `json:"last_error,omitempty" bson:"last_error,omitempty"`
	CancelRequested  bool                   `json:"cancel_requested" bson:"cancel_requested"`
	CreatedAt        time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at" bson:"updated_at"`
	Version          int64                  `json:"version" bson:"version"`
}

// Clone возвращает копию записи с собственной копией контекста
func (r *ExecutionRecord) Clone() *ExecutionRecord {
	clone := *r
	clone.Context = cloneContextMap(r.Context)
	return &clone
}

func cloneContextMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
