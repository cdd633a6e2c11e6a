package interfaces

import (
	"context"

	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
)

type MessagePublisher interface {
	// Publish sends every envelope, routing each by its type.
	Publish(ctx context.Context, envelopes ...*message.Envelope) error
	Close() error
}

type MessageSubscriber interface {
	// Consume delivers messages from the agent's queue to handler until ctx
	// is done or limit messages were handled; limit 0 means no limit.
	Consume(ctx context.Context, agent enum.AgentType, handler pipeline.Handler, limit int) error
	Close() error
}
