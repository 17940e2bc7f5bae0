package saga

import (
	"testing"
)

func TestContext_SetGet(t *testing.T) {
	ctx := NewContext()

	ctx.Set("order_id", "order-1")
	ctx.Set("amount", 49.99)
	ctx.Set("count", 3)
	ctx.Set("confirmed", true)
	ctx.Set("tags", []string{"a", "b"})

	if got := ctx.GetString("order_id"); got != "order-1" {
		t.Errorf("Expected order-1, got %s", got)
	}
	if got := ctx.GetFloat64("amount"); got != 49.99 {
		t.Errorf("Expected 49.99, got %f", got)
	}
	if got := ctx.GetInt("count"); got != 3 {
		t.Errorf("Expected 3, got %d", got)
	}
	if !ctx.GetBool("confirmed") {
		t.Error("Expected confirmed to be true")
	}
	if got := ctx.GetStringSlice("tags"); len(got) != 2 || got[0] != "a" {
		t.Errorf("Expected [a b], got %v", got)
	}
}

func TestContext_TypeCoercion(t *testing.T) {
	ctx := NewContext()

	// значения, прошедшие через JSON, приходят как float64
	ctx.Set("count", float64(7))
	if got := ctx.GetInt("count"); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}

	ctx.Set("tags", []interface{}{"x", "y"})
	if got := ctx.GetStringSlice("tags"); len(got) != 2 || got[1] != "y" {
		t.Errorf("Expected [x y], got %v", got)
	}
}

func TestContext_MissingKeys(t *testing.T) {
	ctx := NewContext()

	if got := ctx.GetString("missing"); got != "" {
		t.Errorf("Expected empty string, got %s", got)
	}
	if got := ctx.GetInt("missing"); got != 0 {
		t.Errorf("Expected 0, got %d", got)
	}
	if ctx.GetBool("missing") {
		t.Error("Expected false for missing key")
	}
	if got := ctx.GetStringSlice("missing"); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestContext_ToMapFromMap(t *testing.T) {
	ctx := NewContext()
	ctx.Set("a", "1")
	ctx.Set("b", 2)

	m := ctx.ToMap()
	if len(m) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(m))
	}

	// копия не связана с контекстом
	m["c"] = 3
	if ctx.Get("c") != nil {
		t.Error("ToMap should return a copy")
	}

	restored := NewContext()
	if err := restored.FromMap(m); err != nil {
		t.Fatalf("FromMap failed: %v", err)
	}
	if got := restored.GetString("a"); got != "1" {
		t.Errorf("Expected 1, got %s", got)
	}
}

func TestContext_ExecutionScope(t *testing.T) {
	record := &ExecutionRecord{
		ExecutionID: "exec-42",
		Context:     map[string]interface{}{"order_id": "order-1"},
	}

	ctx := newExecutionContext(record, 2)

	if got := ctx.ExecutionID(); got != "exec-42" {
		t.Errorf("Expected exec-42, got %s", got)
	}
	if got := ctx.StepIndex(); got != 2 {
		t.Errorf("Expected 2, got %d", got)
	}
	if got := ctx.IdempotencyKey(); got != "exec-42-2" {
		t.Errorf("Expected exec-42-2, got %s", got)
	}

	// мутации контекста не трогают исходную запись до снапшота
	ctx.Set("payment_id", "pay-1")
	if _, ok := record.Context["payment_id"]; ok {
		t.Error("Execution context must not mutate the record directly")
	}
}

func TestIdempotencyKey(t *testing.T) {
	if got := IdempotencyKey("exec-1", 0); got != "exec-1-0" {
		t.Errorf("Expected exec-1-0, got %s", got)
	}
	if got := IdempotencyKey("exec-1", 5); got != "exec-1-5" {
		t.Errorf("Expected exec-1-5, got %s", got)
	}
}
