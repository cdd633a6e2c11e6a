package events

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/prodiguer/hermes/internal/routing"
)

// topologyChannel is the subset of *amqp091.Channel used to declare the
// broker topology.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

// declareTopology declares every exchange of the routing table, one durable
// queue per consuming agent bound with its topic keys, and the dead letter
// queue behind it.
func declareTopology(channel topologyChannel, cfg *routing.Config, messageTTL time.Duration) error {
	err := channel.ExchangeDeclare(
		routing.ExchangeDeadLetter,
		routing.ExchangeKindDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "Failed to declare dead letter exchange")
	}

	for _, exchange := range cfg.Exchanges() {
		err = channel.ExchangeDeclare(
			exchange.Name,
			exchange.Kind,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return errors.Wrapf(err, "Failed to declare exchange %s", exchange.Name)
		}

		for _, agent := range exchange.Agents {
			queueName := routing.QueueName(agent)
			if err := declareQueueWithDLQ(channel, queueName, routing.DeadLetterQueueName(agent), messageTTL); err != nil {
				return err
			}
			for _, key := range cfg.BindingKeys(agent) {
				if err := channel.QueueBind(queueName, key, exchange.Name, false, nil); err != nil {
					return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", queueName, exchange.Name)
				}
			}
		}
	}

	return nil
}

// declareQueueWithDLQ dead letters rejected messages of queueName to dlqName
// through the direct dead letter exchange, keyed by the source queue name.
func declareQueueWithDLQ(channel topologyChannel, queueName, dlqName string, messageTTL time.Duration) error {
	_, err := channel.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(
		dlqName,
		queueName,
		routing.ExchangeDeadLetter,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	args := amqp091.Table{
		"x-dead-letter-exchange":    routing.ExchangeDeadLetter,
		"x-dead-letter-routing-key": queueName,
	}
	if messageTTL > 0 {
		args["x-message-ttl"] = messageTTL.Milliseconds()
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		args,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}

	return nil
}
