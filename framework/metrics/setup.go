// Package metrics предоставляет функции для настройки системы метрик.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// MetricsConfig конфигурация метрик
type MetricsConfig struct {
	ExporterType  string
	ResourceAttrs map[string]string
}

// DefaultMetricsConfig возвращает конфигурацию метрик по умолчанию
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ExporterType: "prometheus",
	}
}

// SetupMetrics настраивает экспорт метрик и устанавливает глобальный
// MeterProvider
func SetupMetrics(config *MetricsConfig) (*metric.MeterProvider, error) {
	if config == nil {
		config = DefaultMetricsConfig()
	}

	var reader metric.Reader
	var err error

	switch config.ExporterType {
	case "prometheus":
		reader, err = prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
	case "manual":
		reader = metric.NewManualReader()
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(buildResourceAttributes(config.ResourceAttrs)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(reader),
		metric.WithResource(res),
	)

	otel.SetMeterProvider(provider)

	return provider, nil
}

// buildResourceAttributes строит resource attributes
func buildResourceAttributes(attrs map[string]string) []attribute.KeyValue {
	result := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, attribute.String(k, v))
	}
	return result
}

// ShutdownMetrics корректно завершает работу метрик
func ShutdownMetrics(ctx context.Context, provider *metric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
