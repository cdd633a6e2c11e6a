package notification

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/mocks"
	"github.com/prodiguer/hermes/internal/pipeline"
)

func notificationEnvelope(t *testing.T, event string, simulationUID string) *message.Envelope {
	t.Helper()
	env, err := message.Build(message.DefaultVocabulary(), message.Internal(enum.MessageFrontEndNotification, enum.AppMonitoring,
		dto.FrontEndNotification{EventType: event, SimulationUID: simulationUID, IsSimulationStart: true}, simulationUID))
	require.NoError(t, err)
	return env
}

func TestHandle_RelaysNotification(t *testing.T) {
	relay := &mocks.NotificationRelay{}
	var relayed []byte
	relay.On("Relay", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		relayed = args.Get(1).([]byte)
	}).Return(nil)

	simulationUID := uuid.NewString()
	result := NewService(relay, logger.NewNopLogger()).Handler().Handle(context.Background(), notificationEnvelope(t, "job_start", simulationUID))
	require.Equal(t, pipeline.StatusCompleted, result.Status, "%v", result.Err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(relayed, &got))
	assert.Equal(t, "job_start", got["event_type"])
	assert.Equal(t, simulationUID, got["simulation_uid"])
	assert.Equal(t, true, got["is_simulation_start"])
}

func TestHandle_UnknownEventFails(t *testing.T) {
	relay := &mocks.NotificationRelay{}

	result := NewService(relay, logger.NewNopLogger()).Handler().Handle(context.Background(), notificationEnvelope(t, "job_paused", uuid.NewString()))
	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.True(t, hermeserrors.IsValidationError(result.Err))
	relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything)
}

func TestHandle_RelayFailureFails(t *testing.T) {
	relay := &mocks.NotificationRelay{}
	relay.On("Relay", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	result := NewService(relay, logger.NewNopLogger()).Handler().Handle(context.Background(), notificationEnvelope(t, "job_error", uuid.NewString()))
	assert.Equal(t, pipeline.StatusFailed, result.Status)
	assert.Equal(t, "relay", result.Step)
}

type fakeChannel struct {
	channel string
	message interface{}
	err     error
}

func (f *fakeChannel) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel, f.message = channel, message
	return redis.NewIntResult(1, f.err)
}

func TestRedisRelay(t *testing.T) {
	client := &fakeChannel{}
	relay := NewRedisRelay(client, "")

	require.NoError(t, relay.Relay(context.Background(), []byte(`{"event_type":"job_start"}`)))
	assert.Equal(t, DefaultChannel, client.channel)
	assert.Equal(t, []byte(`{"event_type":"job_start"}`), client.message)

	client.err = errors.New("down")
	err := relay.Relay(context.Background(), []byte(`{}`))
	assert.True(t, hermeserrors.IsCollaboratorError(err))
}
