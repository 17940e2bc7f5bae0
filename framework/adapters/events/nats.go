// Package events предоставляет NATS-адаптер публикации событий саг.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/akriventsev/kiln/framework/events"
)

// NATSPublisherConfig конфигурация NATS-публикатора
type NATSPublisherConfig struct {
	Conn          *nats.Conn
	SubjectPrefix string
	Retry         RetryConfig
}

// DefaultNATSPublisherConfig возвращает конфигурацию по умолчанию
func DefaultNATSPublisherConfig() NATSPublisherConfig {
	return NATSPublisherConfig{
		SubjectPrefix: "sagas",
		Retry:         DefaultRetryConfig(),
	}
}

// NATSPublisher публикует события жизненного цикла саг в NATS.
// Subject имеет вид sagas.{saga_type}.{event_type}.
type NATSPublisher struct {
	config NATSPublisherConfig
	conn   *nats.Conn
}

// NewNATSPublisher создает NATS-публикатор событий
func NewNATSPublisher(config NATSPublisherConfig) (*NATSPublisher, error) {
	if config.Conn == nil {
		return nil, fmt.Errorf("NATS connection is required")
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "sagas"
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}
	return &NATSPublisher{config: config, conn: config.Conn}, nil
}

// Publish публикует событие с повторами при сбоях брокера
func (p *NATSPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := serializeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	subject := subjectFor(p.config.SubjectPrefix, event)
	delay := p.config.Retry.InitialDelay

	var lastErr error
	for attempt := 0; attempt < p.config.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * p.config.Retry.BackoffMultiplier)
			if delay > p.config.Retry.MaxDelay {
				delay = p.config.Retry.MaxDelay
			}
		}

		if lastErr = p.conn.Publish(subject, data); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to publish event to %s after %d attempts: %w",
		subject, p.config.Retry.MaxAttempts, lastErr)
}
