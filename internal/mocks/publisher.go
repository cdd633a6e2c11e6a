package mocks

import (
	"context"
	"sync"

	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/message"
)

// Publisher records every published envelope. Err, when set, fails every
// publish without recording.
type Publisher struct {
	mu        sync.Mutex
	Envelopes []*message.Envelope
	Batches   int
	Err       error
}

func (p *Publisher) Publish(_ context.Context, envelopes ...*message.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.Envelopes = append(p.Envelopes, envelopes...)
	p.Batches++
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

// OfType returns the recorded envelopes of the given type, in publish order.
func (p *Publisher) OfType(messageType enum.MessageType) []*message.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	var found []*message.Envelope
	for _, env := range p.Envelopes {
		if env.Type == messageType {
			found = append(found, env)
		}
	}
	return found
}
