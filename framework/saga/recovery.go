// Package saga предоставляет Recovery Scanner для возобновления
// брошенных выполнений.
package saga

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akriventsev/kiln/framework/core"
	"github.com/akriventsev/kiln/framework/metrics"
)

// Resumer возобновляет выполнение по execution ID
type Resumer interface {
	Resume(ctx context.Context, executionID string) error
}

// RecoveryConfig конфигурация Recovery Scanner
type RecoveryConfig struct {
	// Interval период между проходами сканера
	Interval time.Duration
	// StaleAfter запись без обновлений дольше этого порога считается
	// брошенной и возобновляется
	StaleAfter time.Duration
	// StuckAfter запись без обновлений дольше этого порога дополнительно
	// поднимает оповещение оператора
	StuckAfter time.Duration
	// BatchSize максимум записей, подбираемых за один проход
	BatchSize int
}

// DefaultRecoveryConfig возвращает конфигурацию сканера по умолчанию
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Interval:   30 * time.Second,
		StaleAfter: 2 * time.Minute,
		StuckAfter: 30 * time.Minute,
		BatchSize:  100,
	}
}

// RecoveryScanner периодически ищет нетерминальные записи, которые
// давно не обновлялись, и возобновляет их через Resumer.
//
// Порог StaleAfter должен заметно превышать максимальную длительность
// попытки шага с учетом retry-пауз, иначе сканер будет подбирать живые
// выполнения. Гонка двух владельцев при этом не ломает корректность:
// проигравший CAS отступает.
type RecoveryScanner struct {
	store   ExecutionStore
	resumer Resumer
	config  RecoveryConfig
	alerter Alerter
	metrics *metrics.Metrics
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ core.Lifecycle = (*RecoveryScanner)(nil)

// NewRecoveryScanner создает сканер поверх хранилища и Resumer
func NewRecoveryScanner(store ExecutionStore, resumer Resumer, config RecoveryConfig) *RecoveryScanner {
	return &RecoveryScanner{
		store:   store,
		resumer: resumer,
		config:  config,
		alerter: NoopAlerter{},
		logger:  zerolog.Nop(),
	}
}

// WithAlerter устанавливает приемник оповещений о застрявших сагах
func (s *RecoveryScanner) WithAlerter(alerter Alerter) *RecoveryScanner {
	s.alerter = alerter
	return s
}

// WithMetrics устанавливает сборщик метрик
func (s *RecoveryScanner) WithMetrics(m *metrics.Metrics) *RecoveryScanner {
	s.metrics = m
	return s
}

// WithLogger устанавливает логгер
func (s *RecoveryScanner) WithLogger(logger zerolog.Logger) *RecoveryScanner {
	s.logger = logger
	return s
}

// Start запускает фоновый цикл сканирования
func (s *RecoveryScanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(s.stopCh)
	return nil
}

// Stop останавливает цикл сканирования и ждет завершения текущего прохода
func (s *RecoveryScanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning проверяет, запущен ли сканер
func (s *RecoveryScanner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RecoveryScanner) loop(stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(context.Background()); err != nil {
				s.logger.Warn().Err(err).Msg("recovery sweep failed")
			}
		case <-stopCh:
			return
		}
	}
}

// Sweep выполняет один проход: находит брошенные записи и возобновляет
// каждую в отдельной горутине. Записи старше StuckAfter не возобновляются:
// бесконечное перевыполнение им не поможет, вместо этого поднимается
// оповещение оператора.
func (s *RecoveryScanner) Sweep(ctx context.Context) error {
	now := time.Now()
	stale, err := s.store.FindStale(ctx, NonTerminalStatuses(), now.Add(-s.config.StaleAfter), s.config.BatchSize)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, record := range stale {
		if record.UpdatedAt.Before(now.Add(-s.config.StuckAfter)) {
			if err := s.alerter.Raise(ctx, Alert{
				ExecutionID: record.ExecutionID,
				SagaType:    record.SagaType,
				StepIndex:   record.CurrentStepIndex,
				Reason:      "execution stuck beyond threshold",
				RaisedAt:    now,
			}); err != nil {
				s.logger.Warn().Err(err).Str("execution_id", record.ExecutionID).Msg("failed to raise stuck alert")
			}
			continue
		}

		s.logger.Info().
			Str("execution_id", record.ExecutionID).
			Str("saga_type", record.SagaType).
			Str("status", string(record.Status)).
			Time("updated_at", record.UpdatedAt).
			Msg("resuming abandoned execution")
		if s.metrics != nil {
			s.metrics.RecordRecovered(ctx, record.SagaType)
		}

		wg.Add(1)
		go func(executionID string) {
			defer wg.Done()
			if err := s.resumer.Resume(ctx, executionID); err != nil {
				s.logger.Warn().Err(err).Str("execution_id", executionID).Msg("resume failed")
			}
		}(record.ExecutionID)
	}
	wg.Wait()
	return nil
}
