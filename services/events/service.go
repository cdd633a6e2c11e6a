package events

import (
	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/routing"
)

// EventsService holds the two broker connections of an agent process: the
// publisher declares the topology, the subscriber reads the agent queue.
type EventsService struct {
	Publisher  *RabbitMQPublisher
	Subscriber *RabbitMQSubscriber
}

func NewEventsService(rabbitmqURL string, routes *routing.Config, vocab *message.Vocabulary, log logger.Logger, publisherConfig *PublisherConfig, subscriberConfig *SubscriberConfig) (*EventsService, error) {
	publisher, err := NewRabbitMQPublisher(rabbitmqURL, routes, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, vocab, log, subscriberConfig)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &EventsService{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Close stops consuming before publishing so that no handler publishes on a
// closed connection.
func (s *EventsService) Close() error {
	var subscriberErr, publisherErr error
	if s.Subscriber != nil {
		subscriberErr = s.Subscriber.Close()
	}
	if s.Publisher != nil {
		publisherErr = s.Publisher.Close()
	}

	switch {
	case subscriberErr != nil && publisherErr != nil:
		return errors.Errorf("errors closing events service: subscriber: %v, publisher: %v", subscriberErr, publisherErr)
	case subscriberErr != nil:
		return errors.Wrap(subscriberErr, "failed to close subscriber")
	case publisherErr != nil:
		return errors.Wrap(publisherErr, "failed to close publisher")
	}
	return nil
}
