package saga

import (
	"errors"
	"fmt"
	"testing"
)

func TestTerminalError(t *testing.T) {
	cause := errors.New("insufficient stock")
	err := Terminal(cause, "reservation rejected")

	if !IsTerminal(err) {
		t.Error("Expected terminal error")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be unwrappable")
	}
	if err.Error() != "reservation rejected: insufficient stock" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestTerminalf(t *testing.T) {
	err := Terminalf("payment declined for order %s", "order-1")

	if !IsTerminal(err) {
		t.Error("Expected terminal error")
	}
	if err.Error() != "payment declined for order order-1" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestIsTerminal_WrappedError(t *testing.T) {
	err := fmt.Errorf("step failed: %w", Terminalf("declined"))
	if !IsTerminal(err) {
		t.Error("Expected terminal classification to survive wrapping")
	}
}

func TestIsTerminal_TransientError(t *testing.T) {
	if IsTerminal(errors.New("connection refused")) {
		t.Error("Expected plain errors to be transient")
	}
	if IsTerminal(nil) {
		t.Error("Expected nil to be non-terminal")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(errors.New("connection refused")) {
		t.Error("Expected plain errors to be retryable")
	}
	if Retryable(Terminalf("declined")) {
		t.Error("Expected business errors to be non-retryable")
	}
	if Retryable(nil) {
		t.Error("Expected nil to be non-retryable")
	}
}
