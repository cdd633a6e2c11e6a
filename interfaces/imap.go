package interfaces

import (
	"context"

	"github.com/prodiguer/hermes/dto"
)

type MailClient interface {
	Connect(ctx context.Context) (MailSession, error)
}

// MailSession is one authenticated connection to the monitored mailbox.
type MailSession interface {
	UIDs(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*dto.RawEmail, error)
	Delete(ctx context.Context, uid uint32) error
	Move(ctx context.Context, uid uint32, folder string) error
	Size(ctx context.Context) (int, error)
	Close() error
}
