package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/tracing"
)

func validDelivery() amqp091.Delivery {
	return amqp091.Delivery{
		MessageId:       uuid.NewString(),
		Type:            enum.MessageComputeJobStart.String(),
		UserId:          enum.UserLibIGCM.String(),
		AppId:           enum.AppMonitoring.String(),
		ContentType:     enum.ContentTypeJSON.String(),
		ContentEncoding: enum.ContentEncodingUTF8.String(),
		Priority:        uint8(enum.PriorityNormal),
		DeliveryMode:    amqp091.Persistent,
		Headers: amqp091.Table{
			message.HeaderProducerID:      enum.ProducerLibIGCM.String(),
			message.HeaderProducerVersion: "1.0",
			message.HeaderTimestamp:       int64(1431011515123456789),
		},
		Body: []byte(`{"job_uid":"x"}`),
	}
}

func TestPropertiesFromDelivery(t *testing.T) {
	d := validDelivery()
	d.Headers["ignored"] = nil
	d.Headers["bytes"] = []byte("raw")

	props := propertiesFromDelivery(d)

	assert.Equal(t, d.MessageId, props.MessageID)
	assert.Equal(t, "1000", props.Type)
	assert.Equal(t, uint8(2), props.DeliveryMode)
	assert.Equal(t, "1431011515123456789", props.Headers[message.HeaderTimestamp])
	assert.Equal(t, "raw", props.Headers["bytes"])
	assert.NotContains(t, props.Headers, "ignored")

	env, err := message.New(message.DefaultVocabulary(), props, d.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(1431011515123456789), env.Timestamp.Value.UnixNano())
}

func TestPublishingFromEnvelope(t *testing.T) {
	simulationUID := uuid.NewString()
	env, err := message.Build(message.DefaultVocabulary(), message.Outbound{
		Type:            enum.MessageFrontEndNotification,
		UserID:          enum.UserHermes,
		AppID:           enum.AppHermes,
		ProducerID:      enum.ProducerHermes,
		ProducerVersion: "1.0",
		CorrelationIDs:  []string{simulationUID},
		Payload:         map[string]interface{}{"event_type": "job_start"},
	})
	require.NoError(t, err)

	now := time.Now()
	publishing := publishingFromEnvelope(env, "trace:span:parent:1", now)

	assert.Equal(t, env.MessageID, publishing.MessageId)
	assert.Equal(t, "8888", publishing.Type)
	assert.Equal(t, "hermes-mq-user", publishing.UserId)
	assert.Equal(t, amqp091.Persistent, publishing.DeliveryMode)
	assert.Equal(t, simulationUID, publishing.Headers[message.HeaderCorrelationPrefix+"1"])
	assert.Equal(t, "trace:span:parent:1", publishing.Headers[tracing.TraceHeader])
	assert.Equal(t, env.Raw, publishing.Body)
	assert.Equal(t, now, publishing.Timestamp)
}

func TestPublishingRoundTripsThroughDelivery(t *testing.T) {
	env, err := message.Build(message.DefaultVocabulary(), message.Outbound{
		Type:            enum.MessageSupervisionFormat,
		UserID:          enum.UserHermes,
		AppID:           enum.AppSupervisor,
		ProducerID:      enum.ProducerHermes,
		ProducerVersion: "1.0",
		CorrelationIDs:  []string{"", uuid.NewString()},
		Payload:         map[string]interface{}{"supervision_id": 3},
	})
	require.NoError(t, err)

	publishing := publishingFromEnvelope(env, "", time.Now())
	delivery := amqp091.Delivery{
		Headers:         publishing.Headers,
		ContentType:     publishing.ContentType,
		ContentEncoding: publishing.ContentEncoding,
		DeliveryMode:    publishing.DeliveryMode,
		Priority:        publishing.Priority,
		MessageId:       publishing.MessageId,
		Type:            publishing.Type,
		UserId:          publishing.UserId,
		AppId:           publishing.AppId,
		Body:            publishing.Body,
	}

	received, err := message.New(message.DefaultVocabulary(), propertiesFromDelivery(delivery), delivery.Body)
	require.NoError(t, err)
	assert.Equal(t, env.MessageID, received.MessageID)
	assert.Equal(t, env.CorrelationIDs, received.CorrelationIDs)
	assert.Equal(t, env.Timestamp.Value, received.Timestamp.Value)
	assert.NotContains(t, publishing.Headers, tracing.TraceHeader)
}
