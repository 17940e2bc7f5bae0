// Package saga предоставляет контракт шага саги и политику повторов.
package saga

import (
	"context"
	"time"
)

// StepFunc функция выполнения или компенсации шага
type StepFunc func(ctx context.Context, sagaCtx SagaContext) error

// Step шаг саги.
//
// Execute и Compensate обязаны быть идемпотентными: после падения процесса
// движок может повторить последний незафиксированный вызов. Ключ
// идемпотентности доступен через sagaCtx.IdempotencyKey().
type Step interface {
	// Name возвращает имя шага
	Name() string
	// Execute выполняет шаг
	Execute(ctx context.Context, sagaCtx SagaContext) error
	// Compensate отменяет эффект выполненного шага
	Compensate(ctx context.Context, sagaCtx SagaContext) error
	// Timeout возвращает таймаут одной попытки
	Timeout() time.Duration
	// RetryPolicy возвращает политику повторов шага
	RetryPolicy() RetryPolicy
}

// RetryPolicy политика повторов transient-ошибок.
// Бюджет действует на каждый вызов шага отдельно и для execute,
// и для compensate.
type RetryPolicy struct {
	// MaxAttempts общее число попыток, включая первую
	MaxAttempts int
	// InitialDelay задержка перед второй попыткой
	InitialDelay time.Duration
	// MaxDelay потолок задержки
	MaxDelay time.Duration
}

// NoRetry единственная попытка без повторов
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// DefaultRetry политика повторов по умолчанию
func DefaultRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// ExponentialBackoff создает политику с экспоненциальной задержкой
func ExponentialBackoff(maxAttempts int, initialDelay, maxDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
	}
}

// Delay возвращает задержку перед попыткой attempt (первая попытка - 0).
// Задержка удваивается с каждым повтором и ограничена MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialDelay <= 0 {
		return 0
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// DefaultStepTimeout таймаут попытки шага по умолчанию
const DefaultStepTimeout = 30 * time.Second

// BaseStep базовая реализация шага
type BaseStep struct {
	name        string
	execute     StepFunc
	compensate  StepFunc
	timeout     time.Duration
	retryPolicy RetryPolicy
}

// NewStep создает новый шаг с настройками по умолчанию
func NewStep(name string) *BaseStep {
	return &BaseStep{
		name:        name,
		timeout:     DefaultStepTimeout,
		retryPolicy: DefaultRetry(),
	}
}

// WithExecute устанавливает функцию выполнения
func (s *BaseStep) WithExecute(fn StepFunc) *BaseStep {
	s.execute = fn
	return s
}

// WithCompensate устанавливает функцию компенсации.
// Шаг без компенсации компенсируется no-op'ом.
func (s *BaseStep) WithCompensate(fn StepFunc) *BaseStep {
	s.compensate = fn
	return s
}

// WithTimeout устанавливает таймаут одной попытки
func (s *BaseStep) WithTimeout(timeout time.Duration) *BaseStep {
	s.timeout = timeout
	return s
}

// WithRetry устанавливает политику повторов
func (s *BaseStep) WithRetry(policy RetryPolicy) *BaseStep {
	s.retryPolicy = policy
	return s
}

func (s *BaseStep) Name() string {
	return s.name
}

func (s *BaseStep) Execute(ctx context.Context, sagaCtx SagaContext) error {
	if s.execute == nil {
		return nil
	}
	return s.execute(ctx, sagaCtx)
}

func (s *BaseStep) Compensate(ctx context.Context, sagaCtx SagaContext) error {
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx, sagaCtx)
}

func (s *BaseStep) Timeout() time.Duration {
	if s.timeout <= 0 {
		return DefaultStepTimeout
	}
	return s.timeout
}

func (s *BaseStep) RetryPolicy() RetryPolicy {
	return s.retryPolicy
}
