// Package saga предоставляет классификацию ошибок выполнения шагов.
package saga

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutionNotFound запись выполнения не найдена в store
	ErrExecutionNotFound = errors.New("execution not found")
	// ErrVersionConflict optimistic-lock проигран другому писателю
	ErrVersionConflict = errors.New("execution version conflict")
	// ErrUnknownSagaType тип саги не зарегистрирован в реестре
	ErrUnknownSagaType = errors.New("unknown saga type")
	// ErrStepCountMismatch число шагов definition не совпадает с сохраненной записью
	ErrStepCountMismatch = errors.New("step count mismatch between definition and execution record")
	// ErrExecutionTerminal запись уже в терминальном статусе
	ErrExecutionTerminal = errors.New("execution already terminal")
	// ErrCancelNotAllowed отмена допустима только до начала компенсации
	ErrCancelNotAllowed = errors.New("execution cannot be canceled in its current status")
)

// TerminalError бизнес-ошибка шага: повтор не имеет смысла,
// forward-фаза завершается немедленно и начинается компенсация
type TerminalError struct {
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Terminal помечает ошибку как бизнес-ошибку (например, "insufficient stock")
func Terminal(err error, reason string) error {
	return &TerminalError{Reason: reason, Err: err}
}

// Terminalf создает бизнес-ошибку из форматированного сообщения
func Terminalf(format string, args ...interface{}) error {
	return &TerminalError{Reason: fmt.Sprintf(format, args...)}
}

// IsTerminal проверяет, является ли ошибка бизнес-ошибкой.
// Все прочие ошибки считаются transient и расходуют retry-бюджет шага.
func IsTerminal(err error) bool {
	var terminal *TerminalError
	return errors.As(err, &terminal)
}

// Retryable сообщает, подлежит ли ошибка шага повтору
func Retryable(err error) bool {
	return err != nil && !IsTerminal(err)
}
