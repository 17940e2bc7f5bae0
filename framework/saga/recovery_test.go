package saga

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeResumer записывает execution ID возобновленных выполнений
type fakeResumer struct {
	mu      sync.Mutex
	resumed []string
}

func (r *fakeResumer) Resume(ctx context.Context, executionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumed = append(r.resumed, executionID)
	return nil
}

func (r *fakeResumer) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.resumed...)
}

func TestRecoveryScanner_SweepResumesStale(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for _, c := range []struct {
		id     string
		status ExecutionStatus
		age    time.Duration
	}{
		{"abandoned", StatusInProgress, 5 * time.Minute},
		{"mid-compensation", StatusCompensating, 5 * time.Minute},
		{"live", StatusInProgress, 0},
		{"finished", StatusCompleted, time.Hour},
	} {
		record := newTestRecord(c.id)
		record.Status = c.status
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create %s: %v", c.id, err)
		}
		store.touch(c.id, now.Add(-c.age))
	}

	resumer := &fakeResumer{}
	config := DefaultRecoveryConfig()
	config.StaleAfter = 2 * time.Minute
	scanner := NewRecoveryScanner(store, resumer, config)

	if err := scanner.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	resumed := resumer.snapshot()
	if len(resumed) != 2 {
		t.Fatalf("Expected 2 resumed executions, got %v", resumed)
	}
	seen := map[string]bool{}
	for _, id := range resumed {
		seen[id] = true
	}
	if !seen["abandoned"] || !seen["mid-compensation"] {
		t.Errorf("Expected abandoned and mid-compensation, got %v", resumed)
	}
}

func TestRecoveryScanner_StuckExecutionAlerted(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	stuck := newTestRecord("stuck")
	stuck.Status = StatusInProgress
	if err := store.Create(ctx, stuck); err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}
	store.touch("stuck", now.Add(-time.Hour))

	stale := newTestRecord("merely-stale")
	stale.Status = StatusInProgress
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}
	store.touch("merely-stale", now.Add(-5*time.Minute))

	resumer := &fakeResumer{}
	alerter := NewChannelAlerter(4)
	config := DefaultRecoveryConfig()
	config.StaleAfter = 2 * time.Minute
	config.StuckAfter = 30 * time.Minute
	scanner := NewRecoveryScanner(store, resumer, config).WithAlerter(alerter)

	if err := scanner.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	// застрявшая запись оповещается вместо бесконечного перевыполнения
	resumed := resumer.snapshot()
	if len(resumed) != 1 || resumed[0] != "merely-stale" {
		t.Errorf("Expected only merely-stale resumed, got %v", resumed)
	}

	select {
	case alert := <-alerter.Alerts():
		if alert.ExecutionID != "stuck" {
			t.Errorf("Expected alert for stuck, got %s", alert.ExecutionID)
		}
	default:
		t.Error("Expected a stuck alert")
	}
	select {
	case alert := <-alerter.Alerts():
		t.Errorf("Unexpected second alert for %s", alert.ExecutionID)
	default:
	}
}

func TestRecoveryScanner_BatchSize(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"a", "b", "c"} {
		record := newTestRecord(id)
		record.Status = StatusInProgress
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create %s: %v", id, err)
		}
		store.touch(id, now.Add(-5*time.Minute))
	}

	resumer := &fakeResumer{}
	config := DefaultRecoveryConfig()
	config.StaleAfter = time.Minute
	config.BatchSize = 2
	scanner := NewRecoveryScanner(store, resumer, config)

	if err := scanner.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(resumer.snapshot()) != 2 {
		t.Errorf("Expected batch of 2, got %v", resumer.snapshot())
	}
}

func TestRecoveryScanner_Lifecycle(t *testing.T) {
	store := NewInMemoryStore()
	resumer := &fakeResumer{}
	config := DefaultRecoveryConfig()
	config.Interval = 5 * time.Millisecond
	scanner := NewRecoveryScanner(store, resumer, config)

	if scanner.IsRunning() {
		t.Error("Expected scanner to be stopped initially")
	}
	if err := scanner.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start scanner: %v", err)
	}
	if !scanner.IsRunning() {
		t.Error("Expected scanner to be running")
	}
	// повторный старт - no-op
	if err := scanner.Start(context.Background()); err != nil {
		t.Fatalf("Second start failed: %v", err)
	}

	if err := scanner.Stop(context.Background()); err != nil {
		t.Fatalf("Failed to stop scanner: %v", err)
	}
	if scanner.IsRunning() {
		t.Error("Expected scanner to be stopped")
	}
	if err := scanner.Stop(context.Background()); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
}

func TestRecoveryScanner_EndToEndResume(t *testing.T) {
	tr := &trace{}
	orchestrator, store := newTestOrchestrator(t,
		tracedStep(tr, "reserve", nil, 0, nil),
		tracedStep(tr, "pay", nil, 0, nil),
		tracedStep(tr, "confirm", nil, 0, nil),
	)
	// процесс упал, зафиксировав два шага
	seedRecord(t, store, StatusInProgress, 2, 3, false)
	store.touch("exec-seeded", time.Now().Add(-5*time.Minute))

	config := DefaultRecoveryConfig()
	config.StaleAfter = time.Minute
	scanner := NewRecoveryScanner(store, orchestrator, config)

	if err := scanner.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	record, err := store.Get(context.Background(), "exec-seeded")
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if record.Status != StatusCompleted {
		t.Errorf("Expected completed, got %s", record.Status)
	}
	tr.assertCalls(t, "execute:confirm")
}
