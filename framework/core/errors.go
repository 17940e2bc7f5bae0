// Package core предоставляет систему ошибок фреймворка.
package core

import (
	"fmt"
	"runtime"
	"strings"
)

// Коды ошибок фреймворка
const (
	ErrValidationFailed = "VALIDATION_FAILED"
	ErrInvalidConfig    = "INVALID_CONFIG"
)

// FrameworkError базовый тип ошибки фреймворка
type FrameworkError struct {
	Code       string
	Message    string
	Cause      error
	StackTrace string
}

// Error реализует интерфейс error
func (e *FrameworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *FrameworkError) Unwrap() error {
	return e.Cause
}

// Is проверяет, соответствует ли ошибка коду
func (e *FrameworkError) Is(target error) bool {
	if t, ok := target.(*FrameworkError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewValidationError создает ошибку валидации
func NewValidationError(message string, cause error) *FrameworkError {
	return &FrameworkError{
		Code:       ErrValidationFailed,
		Message:    message,
		Cause:      cause,
		StackTrace: captureStackTrace(),
	}
}

// NewConfigurationError создает ошибку конфигурации
func NewConfigurationError(message string, cause error) *FrameworkError {
	return &FrameworkError{
		Code:       ErrInvalidConfig,
		Message:    message,
		Cause:      cause,
		StackTrace: captureStackTrace(),
	}
}

// captureStackTrace захватывает stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// Убираем первые несколько строк (сама функция captureStackTrace)
	lines := strings.Split(stack, "\n")
	if len(lines) > 4 {
		lines = lines[4:]
	}
	return strings.Join(lines, "\n")
}
