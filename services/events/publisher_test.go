package events

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/routing"
)

// unconfirmedChannel accepts every publish and never confirms it.
type unconfirmedChannel struct {
	published int
	err       error
	noConfirm bool
}

func (c *unconfirmedChannel) PublishWithDeferredConfirmWithContext(context.Context, string, string, bool, bool, amqp091.Publishing) (*amqp091.DeferredConfirmation, error) {
	c.published++
	if c.err != nil {
		return nil, c.err
	}
	if c.noConfirm {
		return nil, nil
	}
	return &amqp091.DeferredConfirmation{}, nil
}

func (c *unconfirmedChannel) IsClosed() bool { return false }
func (c *unconfirmedChannel) Close() error   { return nil }

func newTestPublisher(channel confirmChannel) *RabbitMQPublisher {
	config := DefaultPublisherConfig()
	config.PublishTimeout = 20 * time.Millisecond
	lifecycle, stop := context.WithCancel(context.Background())
	return &RabbitMQPublisher{
		publishChannel: channel,
		routes:         routing.DefaultConfig(),
		logger:         logger.NewNopLogger(),
		config:         *config,
		lifecycle:      lifecycle,
		stop:           stop,
	}
}

func notificationEnvelope(t *testing.T) *message.Envelope {
	t.Helper()
	env, err := message.Build(message.DefaultVocabulary(), message.Internal(
		enum.MessageFrontEndNotification, enum.AppMonitoring, dto.FrontEndNotification{EventType: "job_start"}))
	require.NoError(t, err)
	return env
}

func TestPublish_UnconfirmedMessageTimesOutAndRetries(t *testing.T) {
	channel := &unconfirmedChannel{}
	publisher := newTestPublisher(channel)

	started := time.Now()
	err := publisher.Publish(context.Background(), notificationEnvelope(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmation timeout")
	assert.Equal(t, DefaultMaxRetries, channel.published)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestPublish_ChannelWithoutConfirmsFails(t *testing.T) {
	channel := &unconfirmedChannel{noConfirm: true}

	err := newTestPublisher(channel).Publish(context.Background(), notificationEnvelope(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in confirm mode")
}

func TestPublish_PublishErrorIsRetried(t *testing.T) {
	channel := &unconfirmedChannel{err: errors.New("channel/connection is not open")}

	err := newTestPublisher(channel).Publish(context.Background(), notificationEnvelope(t))

	require.Error(t, err)
	assert.Equal(t, DefaultMaxRetries, channel.published)
}

func TestPublish_CancelledContextStopsRetrying(t *testing.T) {
	channel := &unconfirmedChannel{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestPublisher(channel).Publish(ctx, notificationEnvelope(t))

	require.Error(t, err)
	assert.Zero(t, channel.published)
}
