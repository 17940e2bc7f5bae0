// Package saga предоставляет PostgreSQL-реализацию ExecutionStore.
package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akriventsev/kiln/framework/core"
)

// PostgresStoreConfig конфигурация PostgreSQL-хранилища
type PostgresStoreConfig struct {
	DSN        string
	SchemaName string
	TableName  string
}

// Validate проверяет корректность конфигурации
func (c *PostgresStoreConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("DSN cannot be empty")
	}
	if c.SchemaName == "" {
		c.SchemaName = "public"
	}
	if c.TableName == "" {
		c.TableName = "saga_executions"
	}
	return nil
}

// DefaultPostgresStoreConfig возвращает конфигурацию по умолчанию
func DefaultPostgresStoreConfig() PostgresStoreConfig {
	return PostgresStoreConfig{
		SchemaName: "public",
		TableName:  "saga_executions",
	}
}

// PostgresStore реализация ExecutionStore для PostgreSQL.
// CAS выражается условием version в UPDATE: конкурирующие писатели
// сериализуются уровнем строки.
type PostgresStore struct {
	config PostgresStoreConfig
	pool   *pgxpool.Pool
}

var (
	_ ExecutionStore       = (*PostgresStore)(nil)
	_ core.HealthCheckable = (*PostgresStore)(nil)
)

// NewPostgresStore создает PostgreSQL-хранилище записей выполнения
func NewPostgresStore(ctx context.Context, config PostgresStoreConfig) (*PostgresStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}

	pool, err := pgxpool.New(ctx, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return &PostgresStore{config: config, pool: pool}, nil
}

// NewPostgresStoreWithPool создает хранилище поверх готового пула
func NewPostgresStoreWithPool(pool *pgxpool.Pool, config PostgresStoreConfig) (*PostgresStore, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	return &PostgresStore{config: config, pool: pool}, nil
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// HealthCheck проверяет доступность базы
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) tableName() string {
	return fmt.Sprintf("%s.%s", s.config.SchemaName, s.config.TableName)
}

func (s *PostgresStore) Create(ctx context.Context, record *ExecutionRecord) error {
	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal saga context: %w", err)
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (execution_id, saga_type, status, current_step_index, total_steps,
			context, retry_count, last_error, cancel_requested, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`, s.tableName())

	_, err = s.pool.Exec(ctx, query,
		record.ExecutionID, record.SagaType, string(record.Status),
		record.CurrentStepIndex, record.TotalSteps, contextJSON,
		record.RetryCount, record.LastError, record.CancelRequested,
		record.CreatedAt, record.UpdatedAt, record.Version)
	if err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	query := fmt.Sprintf(`
		SELECT execution_id, saga_type, status, current_step_index, total_steps,
			context, retry_count, last_error, cancel_requested, created_at, updated_at, version
		FROM %s WHERE execution_id = $1`, s.tableName())

	record, err := scanExecutionRecord(s.pool.QueryRow(ctx, query, executionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *ExecutionRecord) error {
	contextJSON, err := json.Marshal(record.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal saga context: %w", err)
	}

	newVersion := record.Version + 1
	updatedAt := time.Now()

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, current_step_index = $2, context = $3, retry_count = $4,
			last_error = $5, cancel_requested = $6, updated_at = $7, version = $8
		WHERE execution_id = $9 AND version = $10`, s.tableName())

	tag, err := s.pool.Exec(ctx, query,
		string(record.Status), record.CurrentStepIndex, contextJSON,
		record.RetryCount, record.LastError, record.CancelRequested,
		updatedAt, newVersion, record.ExecutionID, record.Version)
	if err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// строка либо отсутствует, либо версия ушла вперед
		var exists bool
		checkQuery := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE execution_id = $1)", s.tableName())
		if err := s.pool.QueryRow(ctx, checkQuery, record.ExecutionID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check execution record: %w", err)
		}
		if !exists {
			return ErrExecutionNotFound
		}
		return ErrVersionConflict
	}

	record.Version = newVersion
	record.UpdatedAt = updatedAt
	return nil
}

func (s *PostgresStore) FindStale(ctx context.Context, statuses []ExecutionStatus, olderThan time.Time, limit int) ([]*ExecutionRecord, error) {
	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}

	query := fmt.Sprintf(`
		SELECT execution_id, saga_type, status, current_step_index, total_steps,
			context, retry_count, last_error, cancel_requested, created_at, updated_at, version
		FROM %s
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3`, s.tableName())

	rows, err := s.pool.Query(ctx, query, statusStrings, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale executions: %w", err)
	}
	defer rows.Close()

	var result []*ExecutionRecord
	for rows.Next() {
		record, err := scanExecutionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale execution: %w", err)
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale executions: %w", err)
	}
	return result, nil
}

func scanExecutionRecord(row pgx.Row) (*ExecutionRecord, error) {
	var record ExecutionRecord
	var status string
	var contextJSON []byte

	err := row.Scan(&record.ExecutionID, &record.SagaType, &status,
		&record.CurrentStepIndex, &record.TotalSteps, &contextJSON,
		&record.RetryCount, &record.LastError, &record.CancelRequested,
		&record.CreatedAt, &record.UpdatedAt, &record.Version)
	if err != nil {
		return nil, err
	}

	record.Status = ExecutionStatus(status)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &record.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal saga context: %w", err)
		}
	}
	return &record, nil
}
