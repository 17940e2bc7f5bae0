// Package events предоставляет Kafka-адаптер публикации событий саг.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akriventsev/kiln/framework/events"
)

// KafkaPublisherConfig конфигурация Kafka-публикатора
type KafkaPublisherConfig struct {
	Brokers []string
	Topic   string
	Retry   RetryConfig
}

// DefaultKafkaPublisherConfig возвращает конфигурацию по умолчанию
func DefaultKafkaPublisherConfig() KafkaPublisherConfig {
	return KafkaPublisherConfig{
		Topic: "saga-events",
		Retry: DefaultRetryConfig(),
	}
}

// KafkaPublisher публикует события жизненного цикла саг в Kafka.
// Ключом сообщения служит execution ID: события одного выполнения
// попадают в одну партицию и сохраняют порядок.
type KafkaPublisher struct {
	config KafkaPublisherConfig
	writer *kafka.Writer
}

// NewKafkaPublisher создает Kafka-публикатор событий
func NewKafkaPublisher(config KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		config.Topic = "saga-events"
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(config.Brokers...),
		Topic:    config.Topic,
		Balancer: &kafka.Hash{},
	}

	return &KafkaPublisher{config: config, writer: writer}, nil
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Publish публикует событие с повторами при сбоях брокера
func (p *KafkaPublisher) Publish(ctx context.Context, event events.Event) error {
	data, err := serializeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.AggregateID()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	}

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

		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to publish event to topic %s after %d attempts: %w",
		p.config.Topic, p.config.Retry.MaxAttempts, lastErr)
}
