package events

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/metrics"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/internal/tracing"
)

const DefaultPrefetch = 1

type SubscriberConfig struct {
	Prefetch            int
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultSubscriberConfig() *SubscriberConfig {
	return &SubscriberConfig{
		Prefetch:            DefaultPrefetch,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

// RabbitMQSubscriber consumes one agent queue. Every delivery is validated
// into an envelope before it reaches the handler; invalid deliveries are
// dead lettered without being processed.
type RabbitMQSubscriber struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	url             string
	vocab           *message.Vocabulary
	logger          logger.Logger
	config          SubscriberConfig
}

func NewRabbitMQSubscriber(rabbitmqURL string, vocab *message.Vocabulary, logger logger.Logger, config *SubscriberConfig) (*RabbitMQSubscriber, error) {
	if config == nil {
		config = DefaultSubscriberConfig()
	}
	if config.Prefetch < 1 {
		config.Prefetch = DefaultPrefetch
	}

	subscriber := &RabbitMQSubscriber{
		url:    rabbitmqURL,
		vocab:  vocab,
		logger: logger,
		config: *config,
	}

	err := subscriber.connect()
	if err != nil {
		return nil, err
	}

	return subscriber, nil
}

// Consume handles deliveries of the agent queue one at a time until ctx is
// done or, when limit is positive, limit deliveries were settled. A dropped
// channel is reopened with backoff.
func (r *RabbitMQSubscriber) Consume(ctx context.Context, agent enum.AgentType, handler pipeline.Handler, limit int) error {
	queueName := routing.QueueName(agent)
	handled := 0

	for {
		channel, msgs, err := r.openConsumer(ctx, queueName)
		if err != nil {
			return err
		}

		r.logger.Infof("Listening for messages on queue %s", queueName)

	deliveries:
		for {
			select {
			case <-ctx.Done():
				channel.Close()
				return nil
			case d, ok := <-msgs:
				if !ok {
					break deliveries
				}
				r.handleDelivery(ctx, agent, handler, d)
				handled++
				if limit > 0 && handled >= limit {
					r.logger.Infof("Consume limit of %d reached on queue %s", limit, queueName)
					channel.Close()
					return nil
				}
			}
		}

		r.logger.Warnf("Connection lost for queue %s. Reconnecting...", queueName)
	}
}

func (r *RabbitMQSubscriber) openConsumer(ctx context.Context, queueName string) (*amqp091.Channel, <-chan amqp091.Delivery, error) {
	var channel *amqp091.Channel
	var msgs <-chan amqp091.Delivery

	operation := func() error {
		if err := r.ensureConnection(); err != nil {
			return err
		}

		ch, err := r.connection.Channel()
		if err != nil {
			return errors.Wrapf(err, "Failed to open channel for queue %s", queueName)
		}
		if err := ch.Qos(r.config.Prefetch, 0, false); err != nil {
			ch.Close()
			return errors.Wrapf(err, "Failed to set prefetch on queue %s", queueName)
		}

		deliveries, err := ch.Consume(
			queueName, // queue
			"",        // consumer tag
			false,     // auto-ack
			false,     // exclusive
			false,     // no-local
			false,     // no-wait
			nil,       // args
		)
		if err != nil {
			ch.Close()
			return errors.Wrapf(err, "Failed to register consumer on queue %s", queueName)
		}

		channel, msgs = ch, deliveries
		return nil
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = r.config.ReconnectBackoff
	retry.MaxInterval = r.config.MaxReconnectBackoff
	retry.MaxElapsedTime = 0

	err := backoff.RetryNotify(operation, backoff.WithContext(retry, ctx), func(err error, wait time.Duration) {
		r.logger.Errorf("%v. Retrying in %v", err, wait)
	})
	if err != nil {
		return nil, nil, err
	}
	return channel, msgs, nil
}

// handleDelivery settles d according to the pipeline outcome. Completed and
// aborted runs are acknowledged; anything else, including invalid messages
// and handler panics, is rejected to the dead letter queue.
func (r *RabbitMQSubscriber) handleDelivery(ctx context.Context, agent enum.AgentType, handler pipeline.Handler, d amqp091.Delivery) {
	defer tracing.RecoverAndLogToJaeger(r.logger)

	settled := false
	defer func() {
		if !settled {
			r.retryAckNack(d, false)
		}
	}()

	ctx, span := tracing.StartRabbitMQMessageTracerSpanWithHeader(ctx, "RabbitMQSubscriber.HandleDelivery", traceHeader(d))
	defer span.Finish()
	tracing.TagComponentListener(span)
	tracing.TagAgent(span, agent.String())
	tracing.TagMessage(span, d.Type, d.MessageId)

	env, err := message.New(r.vocab, propertiesFromDelivery(d), d.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		field := "unknown"
		var validationErr *hermeserrors.ValidationError
		if errors.As(err, &validationErr) {
			field = validationErr.Field
		}
		r.logger.Warnw("rejected invalid message",
			"agent", agent.String(),
			"message_id", d.MessageId,
			"field", field,
			"error", err.Error())
		metrics.MessagesRejectedTotal.WithLabelValues(agent.String(), field).Inc()
		return
	}

	result := handler.Handle(ctx, env)
	metrics.MessagesHandledTotal.WithLabelValues(agent.String(), env.Type.String(), result.Status.String()).Inc()
	metrics.PipelineDuration.WithLabelValues(agent.String(), result.Status.String()).Observe(float64(result.Duration.Milliseconds()))
	span.LogKV("result.status", result.Status.String())

	if result.Failed() {
		tracing.TraceErr(span, result.Err)
		return
	}
	settled = true
	r.retryAckNack(d, true)
}

func (r *RabbitMQSubscriber) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}
	r.connection = connection
	return nil
}

func (r *RabbitMQSubscriber) ensureConnection() error {
	if r.connection == nil || r.connection.IsClosed() {
		return r.connect()
	}
	return nil
}

func (r *RabbitMQSubscriber) retryAckNack(d amqp091.Delivery, ack bool) {
	maxRetries := 5
	retryDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		var err error
		if ack {
			err = d.Ack(false)
		} else {
			err = d.Nack(false, false)
		}

		if err == nil {
			return
		}

		time.Sleep(retryDelay)
	}

	r.logger.Errorf("Failed to %s message after %d attempts",
		map[bool]string{true: "acknowledge", false: "negative acknowledge"}[ack],
		maxRetries)
}

func (r *RabbitMQSubscriber) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
