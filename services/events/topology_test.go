package events

import (
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/internal/routing"
)

type binding struct {
	queue, key, exchange string
}

type recordingChannel struct {
	exchanges map[string]string
	queues    map[string]amqp091.Table
	bindings  []binding
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{exchanges: map[string]string{}, queues: map[string]amqp091.Table{}}
}

func (c *recordingChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp091.Table) error {
	c.exchanges[name] = kind
	return nil
}

func (c *recordingChannel) QueueDeclare(name string, _, _, _, _ bool, args amqp091.Table) (amqp091.Queue, error) {
	c.queues[name] = args
	return amqp091.Queue{Name: name}, nil
}

func (c *recordingChannel) QueueBind(name, key, exchange string, _ bool, _ amqp091.Table) error {
	c.bindings = append(c.bindings, binding{name, key, exchange})
	return nil
}

func TestDeclareTopology(t *testing.T) {
	cfg := routing.DefaultConfig()
	channel := newRecordingChannel()

	require.NoError(t, declareTopology(channel, cfg, time.Hour))

	assert.Equal(t, map[string]string{
		routing.ExchangeDeadLetter: routing.ExchangeKindDirect,
		routing.ExchangeIn:         routing.ExchangeKindTopic,
		routing.ExchangeInternal:   routing.ExchangeKindTopic,
	}, channel.exchanges)

	for _, agent := range cfg.Agents() {
		queue := routing.QueueName(agent)
		dlq := routing.DeadLetterQueueName(agent)

		require.Contains(t, channel.queues, queue)
		require.Contains(t, channel.queues, dlq)
		assert.Equal(t, routing.ExchangeDeadLetter, channel.queues[queue]["x-dead-letter-exchange"])
		assert.Equal(t, queue, channel.queues[queue]["x-dead-letter-routing-key"])
		assert.Equal(t, int64(3600000), channel.queues[queue]["x-message-ttl"])
		assert.Contains(t, channel.bindings, binding{dlq, queue, routing.ExchangeDeadLetter})

		exchange, err := cfg.ExchangeFor(agent)
		require.NoError(t, err)
		for _, key := range cfg.BindingKeys(agent) {
			assert.Contains(t, channel.bindings, binding{queue, key, exchange})
		}
	}
}

func TestDeclareTopology_NoTTL(t *testing.T) {
	channel := newRecordingChannel()

	require.NoError(t, declareTopology(channel, routing.DefaultConfig(), 0))

	assert.NotContains(t, channel.queues["q-monitoring"], "x-message-ttl")
}
