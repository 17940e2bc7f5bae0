package saga

import (
	"context"
	"testing"
	"time"
)

func TestSagaBuilder_FluentDefinition(t *testing.T) {
	var order []string

	def, err := NewSaga("order_processing").
		Step("reserve_inventory").
		Execute(func(ctx context.Context, sagaCtx SagaContext) error {
			order = append(order, "reserve")
			return nil
		}).
		Compensate(func(ctx context.Context, sagaCtx SagaContext) error {
			order = append(order, "release")
			return nil
		}).
		Timeout(3 * time.Second).
		Retry(ExponentialBackoff(2, time.Millisecond, time.Second)).
		End().
		Step("process_payment").
		Execute(func(ctx context.Context, sagaCtx SagaContext) error {
			order = append(order, "pay")
			return nil
		}).
		End().
		Build()
	if err != nil {
		t.Fatalf("Failed to build saga: %v", err)
	}

	if def.SagaType() != "order_processing" {
		t.Errorf("Expected order_processing, got %s", def.SagaType())
	}
	if def.StepCount() != 2 {
		t.Fatalf("Expected 2 steps, got %d", def.StepCount())
	}

	steps := def.Steps()
	if steps[0].Name() != "reserve_inventory" || steps[1].Name() != "process_payment" {
		t.Errorf("Unexpected step order: %s, %s", steps[0].Name(), steps[1].Name())
	}
	if steps[0].Timeout() != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", steps[0].Timeout())
	}
	if steps[0].RetryPolicy().MaxAttempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", steps[0].RetryPolicy().MaxAttempts)
	}

	sagaCtx := NewContext()
	_ = steps[0].Execute(context.Background(), sagaCtx)
	_ = steps[1].Execute(context.Background(), sagaCtx)
	_ = steps[0].Compensate(context.Background(), sagaCtx)
	want := []string{"reserve", "pay", "release"}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, order[i])
		}
	}
}

func TestSagaBuilder_AddStep(t *testing.T) {
	def, err := NewSaga("mixed").
		AddStep(NewStep("first")).
		Step("second").End().
		Build()
	if err != nil {
		t.Fatalf("Failed to build saga: %v", err)
	}
	if def.StepCount() != 2 {
		t.Errorf("Expected 2 steps, got %d", def.StepCount())
	}
}

func TestSagaBuilder_EmptySaga(t *testing.T) {
	if _, err := NewSaga("empty").Build(); err == nil {
		t.Error("Expected error for saga without steps")
	}
}

func TestSagaBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic from MustBuild")
		}
	}()
	NewSaga("").MustBuild()
}
