package interfaces

import (
	"context"

	"github.com/prodiguer/hermes/dto"
)

type Mailer interface {
	Send(ctx context.Context, email *dto.OutboundEmail) error
}

type NotificationRelay interface {
	Relay(ctx context.Context, notification []byte) error
}
