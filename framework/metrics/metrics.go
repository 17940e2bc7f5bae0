// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик движка саг
type Metrics struct {
	meter              metric.Meter
	sagasStartedTotal  metric.Int64Counter
	sagasFinishedTotal metric.Int64Counter
	stepAttemptsTotal  metric.Int64Counter
	stepDuration       metric.Float64Histogram
	retriesTotal       metric.Int64Counter
	compensationsTotal metric.Int64Counter
	recoveredTotal     metric.Int64Counter
	activeSagas        metric.Int64UpDownCounter
}

// NewMetrics создает новый сборщик метрик
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("kiln")

	sagasStartedTotal, err := meter.Int64Counter(
		"sagas_started_total",
		metric.WithDescription("Total number of saga executions started"),
	)
	if err != nil {
		return nil, err
	}

	sagasFinishedTotal, err := meter.Int64Counter(
		"sagas_finished_total",
		metric.WithDescription("Total number of saga executions reaching a terminal status"),
	)
	if err != nil {
		return nil, err
	}

	stepAttemptsTotal, err := meter.Int64Counter(
		"saga_step_attempts_total",
		metric.WithDescription("Total number of step execute and compensate attempts"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"saga_step_duration_seconds",
		metric.WithDescription("Step attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retriesTotal, err := meter.Int64Counter(
		"saga_step_retries_total",
		metric.WithDescription("Total number of step retries after transient failures"),
	)
	if err != nil {
		return nil, err
	}

	compensationsTotal, err := meter.Int64Counter(
		"saga_compensations_total",
		metric.WithDescription("Total number of saga executions entering compensation"),
	)
	if err != nil {
		return nil, err
	}

	recoveredTotal, err := meter.Int64Counter(
		"saga_recovered_total",
		metric.WithDescription("Total number of abandoned executions resumed by the recovery scanner"),
	)
	if err != nil {
		return nil, err
	}

	activeSagas, err := meter.Int64UpDownCounter(
		"active_sagas",
		metric.WithDescription("Number of saga executions currently running in this process"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:              meter,
		sagasStartedTotal:  sagasStartedTotal,
		sagasFinishedTotal: sagasFinishedTotal,
		stepAttemptsTotal:  stepAttemptsTotal,
		stepDuration:       stepDuration,
		retriesTotal:       retriesTotal,
		compensationsTotal: compensationsTotal,
		recoveredTotal:     recoveredTotal,
		activeSagas:        activeSagas,
	}, nil
}

// RecordSagaStarted записывает запуск саги
func (m *Metrics) RecordSagaStarted(ctx context.Context, sagaType string) {
	m.sagasStartedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
	))
	m.activeSagas.Add(ctx, 1)
}

// RecordSagaFinished записывает достижение терминального статуса
func (m *Metrics) RecordSagaFinished(ctx context.Context, sagaType, status string) {
	m.sagasFinishedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
		attribute.String("status", status),
	))
	m.activeSagas.Add(ctx, -1)
}

// RecordStepAttempt записывает попытку шага.
// phase - "execute" или "compensate".
func (m *Metrics) RecordStepAttempt(ctx context.Context, sagaType, stepName, phase string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("saga_type", sagaType),
		attribute.String("step", stepName),
		attribute.String("phase", phase),
		attribute.Bool("success", success),
	}
	m.stepAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry записывает повтор шага после transient-ошибки
func (m *Metrics) RecordRetry(ctx context.Context, sagaType, stepName, phase string) {
	m.retriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
		attribute.String("step", stepName),
		attribute.String("phase", phase),
	))
}

// RecordCompensationStarted записывает переход саги к компенсации
func (m *Metrics) RecordCompensationStarted(ctx context.Context, sagaType string) {
	m.compensationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
	))
}

// RecordRecovered записывает возобновление брошенного выполнения
func (m *Metrics) RecordRecovered(ctx context.Context, sagaType string) {
	m.recoveredTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("saga_type", sagaType),
	))
}
