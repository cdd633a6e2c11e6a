package pipeline

import (
	"github.com/prodiguer/hermes/internal/message"
)

// Context is the per-message state threaded through a pipeline. Concrete
// contexts embed Base and add their own named fields.
type Context interface {
	Envelope() *message.Envelope
	Abort()
	Aborted() bool
}

// Base carries the originating envelope and the cooperative abort flag.
type Base struct {
	Message *message.Envelope
	abort   bool
}

func NewBase(env *message.Envelope) Base {
	return Base{Message: env}
}

func (b *Base) Envelope() *message.Envelope {
	return b.Message
}

// Abort stops the pipeline before its next step. It is not a failure: the
// error steps do not run.
func (b *Base) Abort() {
	b.abort = true
}

func (b *Base) Aborted() bool {
	return b.abort
}
