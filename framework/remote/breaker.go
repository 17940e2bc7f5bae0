// Package remote предоставляет адаптер вызовов внешних коллабораторов
// с таймаутом и circuit breaker.
package remote

import (
	"errors"
	"sync"
	"time"
)

// BreakerState состояние circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String возвращает имя состояния
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrCircuitOpen вызов отклонен открытым circuit breaker.
// Ошибка transient: шаг саги расходует на нее retry-бюджет.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig конфигурация circuit breaker
type BreakerConfig struct {
	// FailureThreshold число подряд идущих отказов до открытия
	FailureThreshold int
	// SuccessThreshold число подряд идущих успехов в half-open до закрытия
	SuccessThreshold int
	// OpenTimeout время до перехода из open в half-open
	OpenTimeout time.Duration
}

// DefaultBreakerConfig возвращает конфигурацию по умолчанию
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker circuit breaker с состояниями closed, open и half-open
type Breaker struct {
	mu            sync.Mutex
	config        BreakerConfig
	state         BreakerState
	failureCount  int
	successCount  int
	lastFailureAt time.Time
}

// NewBreaker создает circuit breaker
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// State возвращает текущее состояние
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

// Allow сообщает, допустим ли вызов в текущем состоянии
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state != StateOpen
}

// RecordSuccess записывает успешный вызов
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	}
}

// RecordFailure записывает отказ вызова
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()

	switch b.state {
	case StateClosed:
		b.failureCount++
		b.lastFailureAt = time.Now()
		if b.failureCount >= b.config.FailureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.lastFailureAt = time.Now()
		b.successCount = 0
	}
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == StateOpen && time.Since(b.lastFailureAt) >= b.config.OpenTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
	}
}
