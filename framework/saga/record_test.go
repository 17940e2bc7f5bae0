package saga

import (
	"testing"
)

func TestExecutionStatus_IsTerminal(t *testing.T) {
	terminal := []ExecutionStatus{StatusCompleted, StatusCompensated, StatusFailed}
	for _, status := range terminal {
		if !status.IsTerminal() {
			t.Errorf("Expected %s to be terminal", status)
		}
	}

	active := []ExecutionStatus{StatusStarted, StatusInProgress, StatusCompensating}
	for _, status := range active {
		if status.IsTerminal() {
			t.Errorf("Expected %s to be non-terminal", status)
		}
	}
}

func TestNonTerminalStatuses(t *testing.T) {
	statuses := NonTerminalStatuses()
	if len(statuses) != 3 {
		t.Fatalf("Expected 3 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.IsTerminal() {
			t.Errorf("Expected %s to be non-terminal", status)
		}
	}
}

func TestExecutionRecord_Clone(t *testing.T) {
	record := &ExecutionRecord{
		ExecutionID:      "exec-1",
		SagaType:         "order_processing",
		Status:           StatusInProgress,
		CurrentStepIndex: 1,
		TotalSteps:       3,
		Context:          map[string]interface{}{"order_id": "order-1"},
		Version:          2,
	}

	clone := record.Clone()
	clone.Status = StatusCompleted
	clone.Context["payment_id"] = "pay-1"

	if record.Status != StatusInProgress {
		t.Errorf("Clone must not mutate the original status, got %s", record.Status)
	}
	if _, ok := record.Context["payment_id"]; ok {
		t.Error("Clone must have its own context copy")
	}
	if clone.Version != 2 {
		t.Errorf("Expected version preserved, got %d", clone.Version)
	}
}

func TestExecutionRecord_CloneNilContext(t *testing.T) {
	record := &ExecutionRecord{ExecutionID: "exec-1"}
	clone := record.Clone()
	if clone.Context != nil {
		t.Error("Expected nil context to stay nil")
	}
}
