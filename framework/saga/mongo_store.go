// Package saga предоставляет MongoDB-реализацию ExecutionStore.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/akriventsev/kiln/framework/core"
)

// MongoStoreConfig конфигурация MongoDB-хранилища
type MongoStoreConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoStoreConfig возвращает конфигурацию по умолчанию
func DefaultMongoStoreConfig() MongoStoreConfig {
	return MongoStoreConfig{
		Database:   "kiln",
		Collection: "saga_executions",
	}
}

// MongoStore реализация ExecutionStore для MongoDB.
// CAS выражается фильтром по version в UpdateOne: нулевой MatchedCount
// при существующем документе означает проигранный конфликт.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var (
	_ ExecutionStore       = (*MongoStore)(nil)
	_ core.HealthCheckable = (*MongoStore)(nil)
)

// NewMongoStore создает MongoDB-хранилище записей выполнения
func NewMongoStore(ctx context.Context, config MongoStoreConfig) (*MongoStore, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("mongo URI cannot be empty")
	}
	if config.Database == "" {
		config.Database = "kiln"
	}
	if config.Collection == "" {
		config.Collection = "saga_executions"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)

	// индекс для FindStale
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Close отключает клиента MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// HealthCheck проверяет доступность MongoDB
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Create(ctx context.Context, record *ExecutionRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}

	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert execution record: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, executionID string) (*ExecutionRecord, error) {
	var record ExecutionRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": executionID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}
	return &record, nil
}

func (s *MongoStore) Update(ctx context.Context, record *ExecutionRecord) error {
	newVersion := record.Version + 1
	updatedAt := time.Now()

	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": record.ExecutionID, "version": record.Version},
		bson.M{"$set": bson.M{
			"status":             record.Status,
			"current_step_index": record.CurrentStepIndex,
			"context":            record.Context,
			"retry_count":        record.RetryCount,
			"last_error":         record.LastError,
			"cancel_requested":   record.CancelRequested,
			"updated_at":         updatedAt,
			"version":            newVersion,
		}})
	if err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}

	if res.MatchedCount == 0 {
		count, err := s.collection.CountDocuments(ctx, bson.M{"_id": record.ExecutionID})
		if err != nil {
			return fmt.Errorf("failed to check execution record: %w", err)
		}
		if count == 0 {
			return ErrExecutionNotFound
		}
		return ErrVersionConflict
	}

	record.Version = newVersion
	record.UpdatedAt = updatedAt
	return nil
}

func (s *MongoStore) FindStale(ctx context.Context, statuses []ExecutionStatus, olderThan time.Time, limit int) ([]*ExecutionRecord, error) {
	statusStrings := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrings[i] = string(st)
	}

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{
		"status":     bson.M{"$in": statusStrings},
		"updated_at": bson.M{"$lt": olderThan},
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale executions: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var result []*ExecutionRecord
	for cursor.Next(ctx) {
		var record ExecutionRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, fmt.Errorf("failed to decode stale execution: %w", err)
		}
		result = append(result, &record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale executions: %w", err)
	}
	return result, nil
}
