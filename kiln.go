// Package kiln предоставляет движок оркестрации саг: линейные
// последовательности шагов с компенсацией в обратном порядке,
// durable-записями выполнения и восстановлением после сбоев процесса.
//
// Основные возможности:
//   - Декларативное описание саг через builder
//   - Execute-then-persist с optimistic locking по версии записи
//   - Retry-политики с экспоненциальным backoff и классификацией ошибок
//   - Recovery Scanner для возобновления брошенных выполнений
//   - Хранилища записей: PostgreSQL, Redis, MongoDB, in-memory
//   - События жизненного цикла с адаптерами NATS и Kafka
//   - Метрики на основе OpenTelemetry
//
// Пример использования:
//
//	registry := saga.NewRegistry()
//	registry.MustRegister(def)
//	orchestrator := saga.NewOrchestrator(registry, store)
//	executionID, err := orchestrator.Start(ctx, "order_processing", initial)
package kiln

// Version представляет версию движка
const (
	Version = "1.0.0"
	Major   = 1
	Minor   = 0
	Patch   = 0
)

// Metadata содержит метаданные о движке
type Metadata struct {
	Name        string
	Version     string
	Description string
	License     string
}

// GetMetadata возвращает метаданные движка
func GetMetadata() Metadata {
	return Metadata{
		Name:        "Kiln",
		Version:     Version,
		Description: "Saga orchestration engine with durable execution records and crash recovery",
		License:     "MIT",
	}
}
