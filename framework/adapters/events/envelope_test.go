package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akriventsev/kiln/framework/events"
)

func TestSerializeEvent(t *testing.T) {
	event := events.NewBaseEvent("saga.started", "exec-1").
		WithMetadata("saga_type", "order_processing").
		WithCorrelationID("corr-1")

	data, err := serializeEvent(event)
	require.NoError(t, err)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &env))

	assert.Equal(t, "saga.started", env["event_type"])
	assert.Equal(t, "exec-1", env["execution_id"])
	assert.Equal(t, "order_processing", env["saga_type"])
	assert.NotEmpty(t, env["event_id"])
	assert.NotEmpty(t, env["occurred_at"])

	metadata, ok := env["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "corr-1", metadata["correlation_id"])
}

func TestSubjectFor(t *testing.T) {
	event := events.NewBaseEvent("saga.completed", "exec-1").
		WithMetadata("saga_type", "order_processing")

	assert.Equal(t, "sagas.order_processing.saga.completed", subjectFor("sagas", event))
}

func TestSubjectFor_UnknownSagaType(t *testing.T) {
	event := events.NewBaseEvent("saga.started", "exec-1")

	assert.Equal(t, "sagas.unknown.saga.started", subjectFor("sagas", event))
}

func TestRetryConfig_Defaults(t *testing.T) {
	config := DefaultRetryConfig()
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Greater(t, config.MaxDelay, config.InitialDelay)
}
