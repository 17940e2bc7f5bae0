// Package saga предоставляет контекст выполнения саги с данными шагов.
package saga

import (
	"fmt"
	"sync"
)

// SagaContext контекст выполнения саги.
//
// Контекст - единственный канал передачи данных между шагами: значение,
// записанное шагом N (например, reservation ID), читается шагом N+1 и
// компенсацией шага N. Контекст сериализуется в запись выполнения после
// каждого шага, поэтому шаги не должны удерживать ссылку на него за
// пределами собственного вызова.
type SagaContext interface {
	// Get получает значение по ключу
	Get(key string) interface{}
	// Set устанавливает значение по ключу
	Set(key string, value interface{})
	// GetString получает строковое значение
	GetString(key string) string
	// GetInt получает целочисленное значение
	GetInt(key string) int
	// GetBool получает булево значение
	GetBool(key string) bool
	// GetFloat64 получает значение float64
	GetFloat64(key string) float64
	// GetStringSlice получает слайс строк
	GetStringSlice(key string) []string
	// ExecutionID возвращает идентификатор выполнения саги
	ExecutionID() string
	// StepIndex возвращает индекс шага текущего вызова
	StepIndex() int
	// IdempotencyKey возвращает ключ идемпотентности текущего вызова,
	// производный от execution ID и индекса шага
	IdempotencyKey() string
	// ToMap преобразует контекст в map
	ToMap() map[string]interface{}
	// FromMap восстанавливает контекст из map
	FromMap(data map[string]interface{}) error
}

// ContextImpl реализация SagaContext
type ContextImpl struct {
	mu          sync.RWMutex
	data        map[string]interface{}
	executionID string
	stepIndex   int
}

// NewContext создает новый контекст саги
func NewContext() SagaContext {
	return &ContextImpl{
		data: make(map[string]interface{}),
	}
}

// newExecutionContext создает контекст для одного вызова execute/compensate
// из durable-состояния записи выполнения
func newExecutionContext(record *ExecutionRecord, stepIndex int) *ContextImpl {
	return &ContextImpl{
		data:        cloneContextMap(record.Context),
		executionID: record.ExecutionID,
		stepIndex:   stepIndex,
	}
}

func (c *ContextImpl) Get(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

func (c *ContextImpl) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]interface{})
	}
	c.data[key] = value
}

func (c *ContextImpl) GetString(key string) string {
	val := c.Get(key)
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func (c *ContextImpl) GetInt(key string) int {
	val := c.Get(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (c *ContextImpl) GetBool(key string) bool {
	val := c.Get(key)
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

func (c *ContextImpl) GetFloat64(key string) float64 {
	val := c.Get(key)
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0.0
}

func (c *ContextImpl) GetStringSlice(key string) []string {
	val := c.Get(key)
	if val == nil {
		return nil
	}

	if strSlice, ok := val.([]string); ok {
		return strSlice
	}

	// Контекст мог пройти через JSON-сериализацию
	if interfaceSlice, ok := val.([]interface{}); ok {
		result := make([]string, 0, len(interfaceSlice))
		for _, item := range interfaceSlice {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}

	return nil
}

func (c *ContextImpl) ExecutionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.executionID
}

func (c *ContextImpl) StepIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stepIndex
}

func (c *ContextImpl) IdempotencyKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return IdempotencyKey(c.executionID, c.stepIndex)
}

func (c *ContextImpl) ToMap() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		result[k] = v
	}
	return result
}

func (c *ContextImpl) FromMap(data map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]interface{}, len(data))
	for k, v := range data {
		c.data[k] = v
	}
	return nil
}

// IdempotencyKey возвращает ключ идемпотентности для пары выполнение/шаг.
// Повторный вызов с тем же ключом у коллаборатора обязан иметь эффект
// однократного вызова.
func IdempotencyKey(executionID string, stepIndex int) string {
	return fmt.Sprintf("%s-%d", executionID, stepIndex)
}
