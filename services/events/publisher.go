package events

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/metrics"
	"github.com/prodiguer/hermes/internal/routing"
	"github.com/prodiguer/hermes/internal/tracing"
)

const (
	// Default configurations
	DefaultMode                = "dev"
	DefaultMessageTTL          = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

type PublisherConfig struct {
	// Mode is the deployment mode leading every routing key.
	Mode                string
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		Mode:                DefaultMode,
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

// confirmChannel is the part of a confirm-mode channel the publisher uses.
type confirmChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) (*amqp091.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// RabbitMQPublisher publishes envelopes with publisher confirms. It declares
// the whole routing topology on every (re)connection so that a message is
// never published to an exchange without its queues.
type RabbitMQPublisher struct {
	// mu guards every swap of connection and publishChannel.
	mu             sync.Mutex
	connection     *amqp091.Connection
	publishChannel confirmChannel
	url            string
	routes         *routing.Config
	logger         logger.Logger
	config         PublisherConfig

	lifecycle context.Context
	stop      context.CancelFunc
}

func NewRabbitMQPublisher(rabbitmqURL string, routes *routing.Config, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	if config == nil {
		config = DefaultPublisherConfig()
	}
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}

	lifecycle, stop := context.WithCancel(context.Background())
	publisher := &RabbitMQPublisher{
		url:       rabbitmqURL,
		routes:    routes,
		logger:    logger,
		config:    *config,
		lifecycle: lifecycle,
		stop:      stop,
	}

	publisher.mu.Lock()
	err := publisher.connectLocked()
	publisher.mu.Unlock()
	if err != nil {
		stop()
		return nil, err
	}

	return publisher, nil
}

// Publish sends the envelopes in order, each to the exchange of the agent
// consuming its type. The first envelope that cannot be published after all
// retries stops the batch.
func (r *RabbitMQPublisher) Publish(ctx context.Context, envelopes ...*message.Envelope) error {
	span, ctx := tracing.StartTracerSpan(ctx, "RabbitMQPublisher.Publish")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.LogKV("batch.size", len(envelopes))

	for _, env := range envelopes {
		if err := r.publishEnvelope(ctx, env); err != nil {
			tracing.TraceErr(span, err)
			return hermeserrors.NewCollaboratorError("broker", "publish "+env.String(), err)
		}
	}

	span.LogKV("result.published", len(envelopes))
	return nil
}

func (r *RabbitMQPublisher) publishEnvelope(ctx context.Context, env *message.Envelope) error {
	if err := env.Encode(); err != nil {
		return err
	}

	_, exchange, err := r.routes.Route(env)
	if err != nil {
		return err
	}
	routingKey := routing.RoutingKey(r.config.Mode, env)
	publishing := publishingFromEnvelope(env, tracing.TraceHeaderFromContext(ctx), time.Now())

	attempt := 0
	operation := func() error {
		attempt++
		err := r.publishWithConfirm(ctx, exchange, routingKey, publishing)
		if err != nil {
			r.logger.Warnf("Publish attempt %d of %s failed: %v", attempt, env, err)
		}
		return err
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 100 * time.Millisecond
	retry.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(retry, uint64(r.config.MaxRetries-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		metrics.MessagesPublishedTotal.WithLabelValues(exchange, env.Type.String(), "failed").Inc()
		return errors.Wrap(err, "Failed to publish message after all retries")
	}

	metrics.MessagesPublishedTotal.WithLabelValues(exchange, env.Type.String(), "published").Inc()
	return nil
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, exchange, routingKey string, publishing amqp091.Publishing) error {
	if ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}

	channel, err := r.ensureConnectionAndChannel()
	if err != nil {
		return err
	}

	confirmCtx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	defer cancel()

	confirmation, err := channel.PublishWithDeferredConfirmWithContext(
		confirmCtx,
		exchange,
		routingKey,
		true,  // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return errors.Wrap(err, "Failed to publish message")
	}
	if confirmation == nil {
		return errors.New("Publish channel is not in confirm mode")
	}

	acked, err := confirmation.WaitContext(confirmCtx)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return errors.Wrap(err, "Publish confirmation timeout")
	}
	if !acked {
		return errors.New("Message was not confirmed by server")
	}

	return nil
}

// openPublishChannel opens a confirm-mode channel on the current connection.
// The caller holds r.mu.
func (r *RabbitMQPublisher) openPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}

	err = channel.Confirm(false)
	if err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	return declareTopology(channel, r.routes, r.config.MessageTTL)
}

// connectLocked dials the broker, declares the topology and opens the publish
// channel. Each connection it opens gets exactly one watcher. The caller holds
// r.mu.
func (r *RabbitMQPublisher) connectLocked() error {
	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}
	r.connection = connection
	r.publishChannel = nil
	notifyClose := connection.NotifyClose(make(chan *amqp091.Error, 1))

	err = r.setupExchangesAndQueues()
	if err != nil {
		connection.Close()
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	err = r.openPublishChannel()
	if err != nil {
		connection.Close()
		return errors.Wrap(err, "Failed to setup publish channel")
	}

	go r.handleReconnection(connection, notifyClose)

	return nil
}

// handleReconnection waits for the connection to drop and reconnects with
// exponential backoff until it succeeds or the publisher is closed. A
// connection already replaced by a publish in the meantime is left alone.
func (r *RabbitMQPublisher) handleReconnection(watched *amqp091.Connection, notifyClose <-chan *amqp091.Error) {
	closeErr, ok := <-notifyClose
	if !ok || r.lifecycle.Err() != nil {
		return
	}
	r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", closeErr)

	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = r.config.ReconnectBackoff
	reconnect.MaxInterval = r.config.MaxReconnectBackoff
	reconnect.MaxElapsedTime = 0

	operation := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.lifecycle.Err() != nil {
			return backoff.Permanent(r.lifecycle.Err())
		}
		if r.connection != watched && r.connection != nil && !r.connection.IsClosed() {
			return nil
		}
		return r.connectLocked()
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(reconnect, r.lifecycle), func(err error, wait time.Duration) {
		r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, wait)
	})
	if err == nil {
		r.logger.Info("Successfully reconnected to RabbitMQ")
	}
}

// ensureConnectionAndChannel returns an open publish channel, reconnecting
// first when the connection dropped.
func (r *RabbitMQPublisher) ensureConnectionAndChannel() (confirmChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.publishChannel != nil && !r.publishChannel.IsClosed() {
		return r.publishChannel, nil
	}

	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connectLocked(); err != nil {
			return nil, errors.Wrap(err, "Failed to establish connection")
		}
		return r.publishChannel, nil
	}

	if err := r.openPublishChannel(); err != nil {
		return nil, errors.Wrap(err, "Failed to establish channel")
	}
	return r.publishChannel, nil
}

// IsConnected reports whether the publisher currently holds an open
// connection.
func (r *RabbitMQPublisher) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connection != nil && !r.connection.IsClosed()
}

// Close gracefully shuts down the publisher
func (r *RabbitMQPublisher) Close() error {
	r.stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.publishChannel != nil && !r.publishChannel.IsClosed() {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil && !r.connection.IsClosed() {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
