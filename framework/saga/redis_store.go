// Package saga предоставляет Redis-реализацию ExecutionStore.
package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akriventsev/kiln/framework/core"
)

// RedisStoreConfig конфигурация Redis-хранилища
type RedisStoreConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DefaultRedisStoreConfig возвращает конфигурацию по умолчанию
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "saga",
	}
}

// updateScript атомарный CAS по полю version хеша записи.
// Вне терминальных статусов запись остается в индексе updated_at,
// по которому Recovery Scanner ищет брошенные выполнения.
var updateScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'version')
if not current then
	return -1
end
if current ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'version', ARGV[3])
if ARGV[4] == '1' then
	redis.call('ZREM', KEYS[2], ARGV[5])
else
	redis.call('ZADD', KEYS[2], ARGV[6], ARGV[5])
end
return 1
`)

// RedisStore реализация ExecutionStore поверх Redis.
// Записи хранятся в хешах, нетерминальные выполнения дополнительно
// индексируются в sorted set по времени последнего обновления.
type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

var (
	_ ExecutionStore       = (*RedisStore)(nil)
	_ core.HealthCheckable = (*RedisStore)(nil)
)

// NewRedisStore создает Redis-хранилище записей выполнения
func NewRedisStore(config RedisStoreConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisStore{client: client, config: config}
}

// NewRedisStoreWithClient создает хранилище поверх готового клиента
func NewRedisStoreWithClient(client *redis.Client, config RedisStoreConfig) *RedisStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "saga"
	}
	return &RedisStore{client: client, config: config}
}

// Close закрывает соединение с Redis
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// HealthCheck проверяет доступность Redis
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) recordKey(executionID string) string {
	return fmt.Sprintf("%s:execution:%s", s.config.KeyPrefix, executionID)
}

func (s *RedisStore) indexKey() string {
	return fmt.Sprintf("%s:executions:by-updated", s.config.KeyPrefix)
}

func (s *RedisStore) Create(ctx context.Context, record *ExecutionRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	key := s.recordKey(record.ExecutionID)
	created, err := s.client.HSetNX(ctx, key, "version", record.Version).Result()
	if err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}
	if !created {
		return fmt.Errorf("execution %s already exists", record.ExecutionID)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(record.UpdatedAt.UnixMilli()),
		Member: record.ExecutionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index execution record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	data, err := s.client.HGet(ctx, s.recordKey(executionID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}

	var record ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Update(ctx context.Context, record *ExecutionRecord) error {
	expected := record.Version
	updated := record.Clone()
	updated.Version = expected + 1
	updated.UpdatedAt = time.Now()

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	terminal := "0"
	if updated.Status.IsTerminal() {
		terminal = "1"
	}

	res, err := updateScript.Run(ctx, s.client,
		[]string{s.recordKey(record.ExecutionID), s.indexKey()},
		expected, data, updated.Version, terminal,
		record.ExecutionID, updated.UpdatedAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}

	switch res {
	case -1:
		return ErrExecutionNotFound
	case 0:
		return ErrVersionConflict
	}

	record.Version = updated.Version
	record.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *RedisStore) FindStale(ctx context.Context, statuses []ExecutionStatus, olderThan time.Time, limit int) ([]*ExecutionRecord, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", olderThan.UnixMilli()-1),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query stale executions: %w", err)
	}

	wanted := make(map[ExecutionStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var result []*ExecutionRecord
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrExecutionNotFound) {
				continue
			}
			return nil, err
		}
		if wanted[record.Status] {
			result = append(result, record)
		}
	}
	return result, nil
}
