// Package observability предоставляет структурированное логирование
// компонентов фреймворка.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimestampFieldName = "timestamp"
}

// LoggingConfig конфигурация логирования
type LoggingConfig struct {
	Level string
	// Console включает человекочитаемый вывод вместо JSON
	Console bool
}

// DefaultLoggingConfig возвращает конфигурацию логирования по умолчанию
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info"}
}

// NewLogger создает логгер компонента.
// При nil writer вывод идет в stdout.
func NewLogger(component string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return zerolog.New(w).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// NewLoggerWithConfig создает логгер компонента с конфигурацией
func NewLoggerWithConfig(component string, w io.Writer, config LoggingConfig) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if config.Console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(ParseLevel(config.Level)).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// ParseLevel преобразует строковый уровень в zerolog.Level.
// Неизвестный уровень трактуется как info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	}
	return zerolog.InfoLevel
}

// Nop возвращает логгер, отбрасывающий все записи
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
