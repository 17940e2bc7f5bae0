// Package saga предоставляет builder для декларативного описания саг.
package saga

import (
	"time"
)

// SagaBuilder builder для создания определения саги
type SagaBuilder struct {
	sagaType string
	steps    []Step
	errs     []error
}

// NewSaga создает новый builder саги
func NewSaga(sagaType string) *SagaBuilder {
	return &SagaBuilder{
		sagaType: sagaType,
		steps:    make([]Step, 0),
	}
}

// AddStep добавляет готовый шаг
func (b *SagaBuilder) AddStep(step Step) *SagaBuilder {
	b.steps = append(b.steps, step)
	return b
}

// Step начинает описание нового шага
func (b *SagaBuilder) Step(name string) *StepBuilder {
	return &StepBuilder{
		saga: b,
		step: NewStep(name),
	}
}

// Build создает определение саги
func (b *SagaBuilder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	return NewDefinition(b.sagaType, b.steps...)
}

// MustBuild создает определение, паникуя при ошибке
func (b *SagaBuilder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// StepBuilder builder для создания шага внутри саги
type StepBuilder struct {
	saga *SagaBuilder
	step *BaseStep
}

// Execute устанавливает функцию выполнения шага
func (sb *StepBuilder) Execute(fn StepFunc) *StepBuilder {
	sb.step.WithExecute(fn)
	return sb
}

// Compensate устанавливает функцию компенсации шага
func (sb *StepBuilder) Compensate(fn StepFunc) *StepBuilder {
	sb.step.WithCompensate(fn)
	return sb
}

// Timeout устанавливает таймаут попытки шага
func (sb *StepBuilder) Timeout(timeout time.Duration) *StepBuilder {
	sb.step.WithTimeout(timeout)
	return sb
}

// Retry устанавливает политику повторов шага
func (sb *StepBuilder) Retry(policy RetryPolicy) *StepBuilder {
	sb.step.WithRetry(policy)
	return sb
}

// End завершает описание шага и возвращает builder саги
func (sb *StepBuilder) End() *SagaBuilder {
	sb.saga.steps = append(sb.saga.steps, sb.step)
	return sb.saga
}
