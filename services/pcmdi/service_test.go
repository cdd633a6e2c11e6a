package pcmdi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/mocks"
	"github.com/prodiguer/hermes/internal/pipeline"
)

func metricsEnvelope(t *testing.T, file string, correlationIDs ...string) *message.Envelope {
	t.Helper()
	env, err := message.Build(message.DefaultVocabulary(), message.Outbound{
		Type:            enum.MessagePCMDIMetrics,
		UserID:          enum.UserLibIGCM,
		AppID:           enum.AppMetrics,
		ProducerID:      enum.ProducerLibIGCM,
		ProducerVersion: "2.8",
		CorrelationIDs:  correlationIDs,
		Payload:         dto.PCMDIMetrics{Metrics: base64.StdEncoding.EncodeToString([]byte(file))},
	})
	require.NoError(t, err)
	return env
}

func TestHandle_StoresRowsInGroupCollection(t *testing.T) {
	store := mocks.NewStore()
	handler := NewService(store, store, logger.NewNopLogger()).Handler()
	simulationUID := uuid.NewString()

	file := `{"group":"cmip5-glb","columns":["variable","rms"],"metrics":[["tas",1.25],["pr",0.5]]}`
	env := metricsEnvelope(t, file, simulationUID)

	result := handler.Handle(context.Background(), env)
	require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

	documents := store.Documents["cmip5-glb"]
	require.Len(t, documents, 2)
	assert.Equal(t, "tas", documents[0]["variable"])
	assert.Equal(t, json.Number("1.25"), documents[0]["rms"])
	assert.Equal(t, simulationUID, documents[1][FieldSimulationUID])
	assert.Equal(t, env.MessageID, documents[1][FieldMessageID])
	assert.Contains(t, store.Messages, env.MessageID)
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"not json", `{"group":`},
		{"no group", `{"metrics":[{"a":1}]}`},
		{"short row", `{"group":"g","columns":["a","b"],"metrics":[[1]]}`},
		{"scalar row", `{"group":"g","metrics":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewStore()
			handler := NewService(store, store, logger.NewNopLogger()).Handler()

			result := handler.Handle(context.Background(), metricsEnvelope(t, tt.file))
			assert.Equal(t, pipeline.StatusFailed, result.Status)
			assert.Empty(t, store.Documents)
		})
	}
}

func TestHandle_InsertFailureFails(t *testing.T) {
	store := mocks.NewStore()
	failing := &failingMetrics{err: errors.New("mongo down")}
	handler := NewService(store, failing, logger.NewNopLogger()).Handler()

	result := handler.Handle(context.Background(), metricsEnvelope(t, `{"group":"g","metrics":[{"a":1}]}`))
	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, "persist-metrics", result.Step)
}

func TestDocuments_ObjectRows(t *testing.T) {
	documents, err := Documents(&dto.MetricSet{Group: "g", Metrics: []interface{}{
		map[string]interface{}{"a": 1},
		map[string]interface{}{"b": 2},
	}})
	require.NoError(t, err)
	assert.Len(t, documents, 2)
}

type failingMetrics struct {
	err error
}

func (f *failingMetrics) Insert(context.Context, string, []map[string]interface{}) (int, error) {
	return 0, f.err
}

func (f *failingMetrics) Groups(context.Context) ([]string, error) {
	return nil, f.err
}
