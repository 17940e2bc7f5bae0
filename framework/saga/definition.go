// Package saga предоставляет определение саги и реестр типов саг.
package saga

import (
	"fmt"

	"github.com/akriventsev/kiln/framework/core"
)

// Definition определение саги: именованная упорядоченная
// последовательность шагов
type Definition struct {
	sagaType string
	steps    []Step
}

// NewDefinition создает определение саги
func NewDefinition(sagaType string, steps ...Step) (*Definition, error) {
	if sagaType == "" {
		return nil, core.NewValidationError("saga type cannot be empty", nil)
	}
	if len(steps) == 0 {
		return nil, core.NewValidationError(
			fmt.Sprintf("saga %q must have at least one step", sagaType), nil)
	}
	names := make(map[string]bool, len(steps))
	for i, step := range steps {
		if step == nil {
			return nil, core.NewValidationError(
				fmt.Sprintf("saga %q: step %d is nil", sagaType, i), nil)
		}
		if names[step.Name()] {
			return nil, core.NewValidationError(
				fmt.Sprintf("saga %q: duplicate step name %q", sagaType, step.Name()), nil)
		}
		names[step.Name()] = true
	}
	return &Definition{sagaType: sagaType, steps: steps}, nil
}

// SagaType возвращает тип саги
func (d *Definition) SagaType() string {
	return d.sagaType
}

// Steps возвращает шаги саги в порядке выполнения
func (d *Definition) Steps() []Step {
	return d.steps
}

// StepCount возвращает число шагов
func (d *Definition) StepCount() int {
	return len(d.steps)
}

// Registry реестр определений саг.
//
// Реестр заполняется при старте процесса до приема запросов и далее
// только читается, поэтому не синхронизируется. Определение для типа
// регистрируется ровно один раз.
type Registry struct {
	definitions map[string]*Definition
}

// NewRegistry создает новый реестр определений
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
	}
}

// Register регистрирует определение саги.
// Повторная регистрация того же типа - ошибка конфигурации.
func (r *Registry) Register(def *Definition) error {
	if def == nil {
		return core.NewValidationError("definition cannot be nil", nil)
	}
	if _, exists := r.definitions[def.SagaType()]; exists {
		return core.NewConfigurationError(
			fmt.Sprintf("saga type %q already registered", def.SagaType()), nil)
	}
	r.definitions[def.SagaType()] = def
	return nil
}

// MustRegister регистрирует определение, паникуя при ошибке.
// Предназначен для инициализации в main.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get возвращает определение по типу саги
func (r *Registry) Get(sagaType string) (*Definition, error) {
	def, ok := r.definitions[sagaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSagaType, sagaType)
	}
	return def, nil
}

// Types возвращает зарегистрированные типы саг
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	return types
}
