// Package saga предоставляет оркестратор выполнения саг.
package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akriventsev/kiln/framework/events"
	"github.com/akriventsev/kiln/framework/metrics"
)

// фазы вызова шага в метриках и логах
const (
	phaseExecute    = "execute"
	phaseCompensate = "compensate"
)

// cancelUpdateAttempts число повторов Cancel при проигрыше CAS
const cancelUpdateAttempts = 3

// Orchestrator движок выполнения саг.
//
// Каждый переход состояния следует порядку execute-then-persist: сначала
// выполняется действие шага, затем результат фиксируется в store. Падение
// процесса между этими двумя точками оставляет запись, по которой Recovery
// Scanner повторит последний вызов; идемпотентность шагов поглощает повтор.
type Orchestrator struct {
	registry *Registry
	store    ExecutionStore
	eventBus events.EventPublisher
	metrics  *metrics.Metrics
	alerter  Alerter
	logger   zerolog.Logger

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewOrchestrator создает оркестратор поверх реестра и хранилища
func NewOrchestrator(registry *Registry, store ExecutionStore) *Orchestrator {
	runCtx, runCancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry:  registry,
		store:     store,
		alerter:   NoopAlerter{},
		logger:    zerolog.Nop(),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
}

// WithEventBus устанавливает публикатор событий жизненного цикла
func (o *Orchestrator) WithEventBus(bus events.EventPublisher) *Orchestrator {
	o.eventBus = bus
	return o
}

// WithMetrics устанавливает сборщик метрик
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithAlerter устанавливает приемник оповещений оператора
func (o *Orchestrator) WithAlerter(alerter Alerter) *Orchestrator {
	o.alerter = alerter
	return o
}

// WithLogger устанавливает логгер
func (o *Orchestrator) WithLogger(logger zerolog.Logger) *Orchestrator {
	o.logger = logger
	return o
}

// Start запускает новое выполнение саги и возвращает execution ID.
// Запись создается синхронно, сами шаги выполняются в фоне: отмена
// контекста вызывающего не прерывает выполнение.
func (o *Orchestrator) Start(ctx context.Context, sagaType string, initial map[string]interface{}) (string, error) {
	def, err := o.registry.Get(sagaType)
	if err != nil {
		return "", err
	}

	record := &ExecutionRecord{
		ExecutionID:      uuid.NewString(),
		SagaType:         sagaType,
		Status:           StatusStarted,
		CurrentStepIndex: 0,
		TotalSteps:       def.StepCount(),
		Context:          cloneContextMap(initial),
	}
	if record.Context == nil {
		record.Context = make(map[string]interface{})
	}

	if err := o.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to create execution record: %w", err)
	}

	o.logger.Info().
		Str("execution_id", record.ExecutionID).
		Str("saga_type", sagaType).
		Int("total_steps", record.TotalSteps).
		Msg("saga started")
	o.publish(ctx, NewSagaStartedEvent(record.ExecutionID, sagaType, record.TotalSteps))
	if o.metrics != nil {
		o.metrics.RecordSagaStarted(ctx, sagaType)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(o.runCtx, def, record)
	}()

	return record.ExecutionID, nil
}

// GetStatus возвращает текущую запись выполнения
func (o *Orchestrator) GetStatus(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	return o.store.Get(ctx, executionID)
}

// Cancel запрашивает отмену выполнения.
// Флаг отмены проверяется движком между шагами: текущий шаг не
// прерывается. Отмена после начала компенсации не имеет смысла и
// отклоняется, терминальное выполнение отменить нельзя.
func (o *Orchestrator) Cancel(ctx context.Context, executionID string) error {
	for attempt := 0; attempt < cancelUpdateAttempts; attempt++ {
		record, err := o.store.Get(ctx, executionID)
		if err != nil {
			return err
		}
		if record.Status.IsTerminal() {
			return ErrExecutionTerminal
		}
		if record.Status == StatusCompensating {
			return ErrCancelNotAllowed
		}
		if record.CancelRequested {
			return nil
		}

		record.CancelRequested = true
		err = o.store.Update(ctx, record)
		if err == nil {
			o.publish(ctx, events.NewBaseEvent(EventSagaCancelRequested, executionID).
				WithMetadata("saga_type", record.SagaType))
			return nil
		}
		if err != ErrVersionConflict {
			return err
		}
	}
	return ErrVersionConflict
}

// Resume синхронно возобновляет брошенное выполнение с сохраненной
// позиции. Вызывается Recovery Scanner'ом; повторный вызов шага,
// результат которого не был зафиксирован, поглощается идемпотентностью.
func (o *Orchestrator) Resume(ctx context.Context, executionID string) error {
	record, err := o.store.Get(ctx, executionID)
	if err != nil {
		return err
	}
	if record.Status.IsTerminal() {
		return ErrExecutionTerminal
	}

	def, err := o.registry.Get(record.SagaType)
	if err != nil {
		return err
	}
	if def.StepCount() != record.TotalSteps {
		return fmt.Errorf("%w: saga %q has %d steps, record %s expects %d",
			ErrStepCountMismatch, record.SagaType, def.StepCount(), executionID, record.TotalSteps)
	}

	o.logger.Info().
		Str("execution_id", executionID).
		Str("saga_type", record.SagaType).
		Str("status", string(record.Status)).
		Int("step_index", record.CurrentStepIndex).
		Msg("saga resumed")
	o.publish(ctx, NewSagaResumedEvent(executionID, record.SagaType, record.Status))

	o.run(ctx, def, record)
	return nil
}

// Shutdown прерывает выполняющиеся саги и ждет завершения их горутин.
// Прерванные выполнения остаются в store и подбираются Recovery Scanner'ом.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.runCancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run ведет выполнение от текущего статуса записи до терминального
// статуса либо до abandonment (проигранный CAS или отмена runCtx)
func (o *Orchestrator) run(ctx context.Context, def *Definition, record *ExecutionRecord) {
	record = record.Clone()

	if record.Status == StatusStarted {
		record.Status = StatusInProgress
		if !o.persist(ctx, record) {
			return
		}
	}

	if record.Status == StatusInProgress {
		next, ok := o.runForward(ctx, def, record)
		if !ok {
			return
		}
		record = next
	}

	if record.Status == StatusCompensating {
		o.runCompensation(ctx, def, record)
	}
}

// runForward выполняет шаги вперед. Возвращает актуальную запись и
// false при abandonment; true означает, что выполнение завершилось
// либо перешло к компенсации.
func (o *Orchestrator) runForward(ctx context.Context, def *Definition, record *ExecutionRecord) (*ExecutionRecord, bool) {
	steps := def.Steps()

	for record.CurrentStepIndex < record.TotalSteps {
		fresh, err := o.store.Get(ctx, record.ExecutionID)
		if err != nil {
			o.abandon(record, "refresh failed", err)
			return record, false
		}
		if fresh.Status != StatusInProgress {
			// выполнение увел другой владелец
			o.abandon(record, "status changed", ErrVersionConflict)
			return record, false
		}
		// конкурентная запись (например, флаг отмены) не повод отступать:
		// принимаем свежее состояние, CAS при persist по-прежнему
		// гарантирует не более одного продвижения на версию
		record = fresh

		if record.CancelRequested {
			// компенсация начинается с текущего шага: он мог выполниться,
			// не успев зафиксировать успех; для незапускавшегося шага
			// компенсация безопасна
			record.Status = StatusCompensating
			record.RetryCount = 0
			record.LastError = "canceled"
			if !o.persist(ctx, record) {
				return record, false
			}
			o.publish(ctx, NewSagaCompensatingEvent(record.ExecutionID, record.SagaType, "canceled"))
			if o.metrics != nil {
				o.metrics.RecordCompensationStarted(ctx, record.SagaType)
			}
			return record, true
		}

		step := steps[record.CurrentStepIndex]
		stepErr, abandoned := o.attemptStep(ctx, record, step, phaseExecute)
		if abandoned {
			return record, false
		}

		if stepErr == nil {
			record.CurrentStepIndex++
			record.RetryCount = 0
			record.LastError = ""
			if record.CurrentStepIndex == record.TotalSteps {
				record.Status = StatusCompleted
			}
			if !o.persist(ctx, record) {
				return record, false
			}
			o.publish(ctx, NewStepCompletedEvent(record.ExecutionID, record.SagaType, step.Name(), record.CurrentStepIndex-1))
			continue
		}

		// бизнес-ошибка или исчерпанный retry-бюджет: компенсируем
		// шаги 0..CurrentStepIndex, включая частично выполненный
		terminal := IsTerminal(stepErr)
		o.logger.Warn().
			Str("execution_id", record.ExecutionID).
			Str("step", step.Name()).
			Int("step_index", record.CurrentStepIndex).
			Bool("terminal", terminal).
			Err(stepErr).
			Msg("step failed, compensating")
		o.publish(ctx, NewStepFailedEvent(record.ExecutionID, record.SagaType, step.Name(), record.CurrentStepIndex, stepErr.Error(), terminal))

		record.Status = StatusCompensating
		record.RetryCount = 0
		record.LastError = stepErr.Error()
		if !o.persist(ctx, record) {
			return record, false
		}
		o.publish(ctx, NewSagaCompensatingEvent(record.ExecutionID, record.SagaType, stepErr.Error()))
		if o.metrics != nil {
			o.metrics.RecordCompensationStarted(ctx, record.SagaType)
		}
		return record, true
	}

	o.finish(ctx, record)
	return record, true
}

// runCompensation компенсирует шаги в обратном порядке, начиная с
// CurrentStepIndex и заканчивая нулевым
func (o *Orchestrator) runCompensation(ctx context.Context, def *Definition, record *ExecutionRecord) {
	steps := def.Steps()

	for record.CurrentStepIndex >= 0 {
		step := steps[record.CurrentStepIndex]
		stepErr, abandoned := o.attemptStep(ctx, record, step, phaseCompensate)
		if abandoned {
			return
		}

		if stepErr != nil {
			// компенсация исчерпала попытки: сага требует оператора
			record.Status = StatusFailed
			record.LastError = stepErr.Error()
			if !o.persist(ctx, record) {
				return
			}
			o.logger.Error().
				Str("execution_id", record.ExecutionID).
				Str("step", step.Name()).
				Int("step_index", record.CurrentStepIndex).
				Err(stepErr).
				Msg("compensation failed, manual intervention required")
			o.publish(ctx, NewSagaFailedEvent(record.ExecutionID, record.SagaType, stepErr.Error()))
			if err := o.alerter.Raise(ctx, Alert{
				ExecutionID: record.ExecutionID,
				SagaType:    record.SagaType,
				StepIndex:   record.CurrentStepIndex,
				Reason:      stepErr.Error(),
				RaisedAt:    time.Now(),
			}); err != nil {
				o.logger.Warn().Err(err).Str("execution_id", record.ExecutionID).Msg("failed to raise alert")
			}
			if o.metrics != nil {
				o.metrics.RecordSagaFinished(ctx, record.SagaType, string(StatusFailed))
			}
			return
		}

		compensatedIndex := record.CurrentStepIndex
		record.CurrentStepIndex--
		record.RetryCount = 0
		if record.CurrentStepIndex < 0 {
			record.Status = StatusCompensated
		}
		if !o.persist(ctx, record) {
			return
		}
		o.publish(ctx, NewStepCompensatedEvent(record.ExecutionID, record.SagaType, step.Name(), compensatedIndex))
	}

	o.finish(ctx, record)
}

// finish публикует событие и метрики терминального статуса
func (o *Orchestrator) finish(ctx context.Context, record *ExecutionRecord) {
	switch record.Status {
	case StatusCompleted:
		o.logger.Info().
			Str("execution_id", record.ExecutionID).
			Str("saga_type", record.SagaType).
			Msg("saga completed")
		o.publish(ctx, NewSagaCompletedEvent(record.ExecutionID, record.SagaType))
	case StatusCompensated:
		o.logger.Info().
			Str("execution_id", record.ExecutionID).
			Str("saga_type", record.SagaType).
			Msg("saga compensated")
		o.publish(ctx, NewSagaCompensatedEvent(record.ExecutionID, record.SagaType))
	}
	if o.metrics != nil {
		o.metrics.RecordSagaFinished(ctx, record.SagaType, string(record.Status))
	}
}

// attemptStep выполняет execute или compensate шага с учетом
// retry-политики. Возвращает abandoned=true, если выполнение следует
// молча оставить записи в store: проигран CAS либо отменен runCtx.
func (o *Orchestrator) attemptStep(ctx context.Context, record *ExecutionRecord, step Step, phase string) (error, bool) {
	policy := step.RetryPolicy()
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if o.metrics != nil {
				o.metrics.RecordRetry(ctx, record.SagaType, step.Name(), phase)
			}
			select {
			case <-time.After(policy.Delay(attempt)):
			case <-ctx.Done():
				o.abandon(record, "interrupted during backoff", ctx.Err())
				return nil, true
			}
		}

		sagaCtx := newExecutionContext(record, record.CurrentStepIndex)
		attemptCtx, cancel := context.WithTimeout(ctx, step.Timeout())
		start := time.Now()
		var err error
		if phase == phaseExecute {
			err = step.Execute(attemptCtx, sagaCtx)
		} else {
			err = step.Compensate(attemptCtx, sagaCtx)
		}
		cancel()

		if o.metrics != nil {
			o.metrics.RecordStepAttempt(ctx, record.SagaType, step.Name(), phase, time.Since(start), err == nil)
		}

		if err == nil {
			record.Context = sagaCtx.ToMap()
			return nil, false
		}

		if ctx.Err() != nil {
			o.abandon(record, "interrupted during step", ctx.Err())
			return nil, true
		}

		lastErr = err
		record.RetryCount = attempt + 1
		record.LastError = err.Error()
		if !o.persist(ctx, record) {
			return nil, true
		}

		if IsTerminal(err) {
			break
		}
		o.logger.Debug().
			Str("execution_id", record.ExecutionID).
			Str("step", step.Name()).
			Str("phase", phase).
			Int("attempt", attempt+1).
			Err(err).
			Msg("step attempt failed")
	}

	return lastErr, false
}

// persist фиксирует запись через CAS. Проигранный конфликт означает,
// что выполнением владеет другой процесс: false и отступаем.
func (o *Orchestrator) persist(ctx context.Context, record *ExecutionRecord) bool {
	if err := o.store.Update(ctx, record); err != nil {
		o.abandon(record, "persist failed", err)
		return false
	}
	return true
}

// abandon логирует отступление от выполнения без изменения записи
func (o *Orchestrator) abandon(record *ExecutionRecord, stage string, err error) {
	o.logger.Warn().
		Str("execution_id", record.ExecutionID).
		Str("saga_type", record.SagaType).
		Str("stage", stage).
		Err(err).
		Msg("abandoning execution")
}

// publish отправляет событие жизненного цикла, ошибки доставки логируются
func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.eventBus == nil {
		return
	}
	if err := o.eventBus.Publish(ctx, event); err != nil {
		o.logger.Warn().Err(err).Str("event_type", event.EventType()).Msg("failed to publish lifecycle event")
	}
}
