package saga

import (
	"errors"
	"testing"
)

func TestNewDefinition_Validation(t *testing.T) {
	step := NewStep("only")

	if _, err := NewDefinition("", step); err == nil {
		t.Error("Expected error for empty saga type")
	}
	if _, err := NewDefinition("order_processing"); err == nil {
		t.Error("Expected error for empty step list")
	}
	if _, err := NewDefinition("order_processing", step, nil); err == nil {
		t.Error("Expected error for nil step")
	}
	if _, err := NewDefinition("order_processing", NewStep("dup"), NewStep("dup")); err == nil {
		t.Error("Expected error for duplicate step names")
	}

	def, err := NewDefinition("order_processing", step)
	if err != nil {
		t.Fatalf("Failed to create definition: %v", err)
	}
	if def.SagaType() != "order_processing" {
		t.Errorf("Expected order_processing, got %s", def.SagaType())
	}
	if def.StepCount() != 1 {
		t.Errorf("Expected 1 step, got %d", def.StepCount())
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	def, _ := NewDefinition("order_processing", NewStep("reserve"))

	if err := registry.Register(def); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	got, err := registry.Get("order_processing")
	if err != nil {
		t.Fatalf("Failed to get definition: %v", err)
	}
	if got != def {
		t.Error("Expected the registered definition")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewRegistry()
	def, _ := NewDefinition("order_processing", NewStep("reserve"))

	if err := registry.Register(def); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if err := registry.Register(def); err == nil {
		t.Error("Expected error on duplicate registration")
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Get("missing")
	if !errors.Is(err, ErrUnknownSagaType) {
		t.Errorf("Expected ErrUnknownSagaType, got %v", err)
	}
}

func TestRegistry_Types(t *testing.T) {
	registry := NewRegistry()
	a, _ := NewDefinition("a", NewStep("s"))
	b, _ := NewDefinition("b", NewStep("s"))
	registry.MustRegister(a)
	registry.MustRegister(b)

	types := registry.Types()
	if len(types) != 2 {
		t.Errorf("Expected 2 types, got %d", len(types))
	}
}
