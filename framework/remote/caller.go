// Package remote предоставляет Caller для вызовов коллабораторов из шагов саг.
package remote

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/akriventsev/kiln/framework/saga"
)

// CallerConfig конфигурация вызова коллаборатора
type CallerConfig struct {
	// Timeout таймаут одного вызова
	Timeout time.Duration
	// Breaker параметры circuit breaker
	Breaker BreakerConfig
}

// DefaultCallerConfig возвращает конфигурацию по умолчанию
func DefaultCallerConfig() CallerConfig {
	return CallerConfig{
		Timeout: 5 * time.Second,
		Breaker: DefaultBreakerConfig(),
	}
}

// Caller оборачивает вызовы одного внешнего коллаборатора таймаутом
// и circuit breaker.
//
// Бизнес-ошибки коллаборатора не считаются отказами для breaker:
// сервис ответил, недоступности нет. Отказами считаются таймауты
// и транспортные ошибки.
type Caller struct {
	name    string
	timeout time.Duration
	breaker *Breaker
	logger  zerolog.Logger
}

// NewCaller создает Caller для коллаборатора
func NewCaller(name string, config CallerConfig) *Caller {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultCallerConfig().Timeout
	}
	return &Caller{
		name:    name,
		timeout: timeout,
		breaker: NewBreaker(config.Breaker),
		logger:  zerolog.Nop(),
	}
}

// WithLogger устанавливает логгер
func (c *Caller) WithLogger(logger zerolog.Logger) *Caller {
	c.logger = logger
	return c
}

// Name возвращает имя коллаборатора
func (c *Caller) Name() string {
	return c.name
}

// Breaker возвращает circuit breaker вызова
func (c *Caller) Breaker() *Breaker {
	return c.breaker
}

// Call выполняет вызов коллаборатора. В открытом состоянии breaker
// возвращает ErrCircuitOpen не дожидаясь таймаута.
func (c *Caller) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !c.breaker.Allow() {
		c.logger.Debug().Str("collaborator", c.name).Msg("call rejected by open circuit")
		return ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil || saga.IsTerminal(err) {
		c.breaker.RecordSuccess()
		return err
	}

	c.breaker.RecordFailure()
	c.logger.Debug().Str("collaborator", c.name).Err(err).Msg("call failed")
	return err
}
