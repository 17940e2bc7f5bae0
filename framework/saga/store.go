// Package saga предоставляет хранилище записей выполнения саг.
package saga

import (
	"context"
	"sort"
	"sync"
	"time"
)

// ExecutionStore durable-хранилище записей выполнения.
//
// Update выполняет compare-and-swap по полю Version: запись обновляется
// только если сохраненная версия равна версии переданной записи, иначе
// возвращается ErrVersionConflict. Проигравший CAS считает выполнение
// принадлежащим другому процессу и отступает.
type ExecutionStore interface {
	// Create сохраняет новую запись выполнения
	Create(ctx context.Context, record *ExecutionRecord) error
	// Get возвращает запись по execution ID
	Get(ctx context.Context, executionID string) (*ExecutionRecord, error)
	// Update обновляет запись с optimistic-lock по Version.
	// При успехе версия записи инкрементируется, UpdatedAt обновляется.
	Update(ctx context.Context, record *ExecutionRecord) error
	// FindStale возвращает записи в указанных статусах, не обновлявшиеся
	// после olderThan, отсортированные по UpdatedAt по возрастанию
	FindStale(ctx context.Context, statuses []ExecutionStatus, olderThan time.Time, limit int) ([]*ExecutionRecord, error)
}

// InMemoryStore реализация ExecutionStore в памяти.
// Предназначена для тестов и локальной разработки.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*ExecutionRecord
}

// NewInMemoryStore создает новое хранилище в памяти
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*ExecutionRecord),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, record *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := record.Clone()
	now := time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Version == 0 {
		stored.Version = 1
	}
	s.records[stored.ExecutionID] = stored

	record.CreatedAt = stored.CreatedAt
	record.UpdatedAt = stored.UpdatedAt
	record.Version = stored.Version
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.records[executionID]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return stored.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, record *ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[record.ExecutionID]
	if !ok {
		return ErrExecutionNotFound
	}
	if stored.Version != record.Version {
		return ErrVersionConflict
	}

	updated := record.Clone()
	updated.Version = stored.Version + 1
	updated.UpdatedAt = time.Now()
	updated.CreatedAt = stored.CreatedAt
	s.records[record.ExecutionID] = updated

	record.Version = updated.Version
	record.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *InMemoryStore) FindStale(ctx context.Context, statuses []ExecutionStatus, olderThan time.Time, limit int) ([]*ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[ExecutionStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var result []*ExecutionRecord
	for _, stored := range s.records {
		if wanted[stored.Status] && stored.UpdatedAt.Before(olderThan) {
			result = append(result, stored.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// touch обновляет UpdatedAt записи без смены версии.
// Используется только в тестах для моделирования устаревших записей.
func (s *InMemoryStore) touch(executionID string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.records[executionID]; ok {
		stored.UpdatedAt = updatedAt
	}
}
