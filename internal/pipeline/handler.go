package pipeline

import (
	"context"

	"github.com/prodiguer/hermes/internal/message"
)

// Handler processes one envelope to completion.
type Handler interface {
	Handle(ctx context.Context, env *message.Envelope) Result
}

type HandlerFunc func(ctx context.Context, env *message.Envelope) Result

func (f HandlerFunc) Handle(ctx context.Context, env *message.Envelope) Result {
	return f(ctx, env)
}

type consumer[C Context] struct {
	pipeline   *Pipeline[C]
	newContext func(env *message.Envelope) C
}

// Bind turns a pipeline into a Handler that runs it against a fresh context
// for every envelope.
func Bind[C Context](p *Pipeline[C], newContext func(env *message.Envelope) C) Handler {
	return &consumer[C]{pipeline: p, newContext: newContext}
}

func (h *consumer[C]) Handle(ctx context.Context, env *message.Envelope) Result {
	return h.pipeline.Run(ctx, h.newContext(env))
}
