package routing

import (
	"context"

	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
)

// Handlers maps a message type to the pipeline consuming it.
type Handlers map[enum.MessageType]pipeline.Handler

type dispatchContext struct {
	pipeline.Base
	handler pipeline.Handler
	result  pipeline.Result
}

type dispatcher struct {
	pipeline *pipeline.Pipeline[*dispatchContext]
}

// NewDispatcher selects the consumer for an envelope by its type and runs
// it. An unknown type fails the message through the normal step failure
// path with a RoutingError.
func NewDispatcher(agent string, log logger.Logger, handlers Handlers) pipeline.Handler {
	return newDispatcher(agent, log, handlers, false)
}

// NewDelegator is a dispatcher that decodes the envelope before selecting a
// sub-consumer. It is used where several message types share one queue but
// need different step sequences.
func NewDelegator(agent string, log logger.Logger, handlers Handlers) pipeline.Handler {
	return newDispatcher(agent, log, handlers, true)
}

func newDispatcher(agent string, log logger.Logger, handlers Handlers, decode bool) pipeline.Handler {
	table := make(Handlers, len(handlers))
	for messageType, handler := range handlers {
		table[messageType] = handler
	}

	var steps []pipeline.Step[*dispatchContext]
	if decode {
		steps = append(steps, pipeline.Step[*dispatchContext]{Name: "decode", Run: decodeEnvelope})
	}
	steps = append(steps,
		pipeline.Step[*dispatchContext]{Name: "select", Run: func(_ context.Context, c *dispatchContext) error {
			handler, ok := table[c.Message.Type]
			if !ok {
				return hermeserrors.NewRoutingError(c.Message.Type.String(), "no consumer registered for "+agent)
			}
			c.handler = handler
			return nil
		}},
		pipeline.Step[*dispatchContext]{Name: "invoke", Run: invoke},
	)

	return &dispatcher{pipeline: pipeline.New(agent, log, steps, nil)}
}

func (d *dispatcher) Handle(ctx context.Context, env *message.Envelope) pipeline.Result {
	c := &dispatchContext{Base: pipeline.NewBase(env)}
	result := d.pipeline.Run(ctx, c)
	if result.Status == pipeline.StatusCompleted {
		return c.result
	}
	return result
}

func decodeEnvelope(_ context.Context, c *dispatchContext) error {
	return c.Message.Decode()
}

// invoke runs the selected consumer. Its abort and failure outcomes are
// carried back unchanged so the caller can acknowledge accordingly.
func invoke(ctx context.Context, c *dispatchContext) error {
	c.result = c.handler.Handle(ctx, c.Message)
	return nil
}
