package notification

import (
	"context"
	"encoding/json"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/routing"
)

var events = map[enum.FrontEndEvent]struct{}{
	enum.FrontEndJobStart:           {},
	enum.FrontEndJobComplete:        {},
	enum.FrontEndJobError:           {},
	enum.FrontEndSimulationComplete: {},
	enum.FrontEndSimulationError:    {},
}

type relayContext struct {
	pipeline.Base
	notification *dto.FrontEndNotification
	data         []byte
}

// Service forwards front end notifications to the dashboard relay.
type Service struct {
	relay interfaces.NotificationRelay
	log   logger.Logger
}

func NewService(relay interfaces.NotificationRelay, log logger.Logger) *Service {
	return &Service{relay: relay, log: log}
}

func (s *Service) Handler() pipeline.Handler {
	agent := enum.AgentFrontEnd.String()
	relay := pipeline.New(agent, s.log, []pipeline.Step[*relayContext]{
		{Name: "unpack", Run: s.unpack},
		{Name: "encode", Run: encode},
		{Name: "relay", Run: s.forward},
	}, nil)

	return routing.NewDispatcher(agent, s.log, routing.Handlers{
		enum.MessageFrontEndNotification: pipeline.Bind(relay, func(env *message.Envelope) *relayContext {
			return &relayContext{Base: pipeline.NewBase(env)}
		}),
	})
}

func (s *Service) unpack(_ context.Context, c *relayContext) error {
	notification, err := message.Unmarshal[dto.FrontEndNotification](c.Message)
	if err != nil {
		return err
	}
	if _, ok := events[enum.FrontEndEvent(notification.EventType)]; !ok {
		return hermeserrors.NewValidationError("event_type", notification.EventType)
	}
	c.notification = notification
	return nil
}

func encode(_ context.Context, c *relayContext) error {
	data, err := json.Marshal(c.notification)
	if err != nil {
		return err
	}
	c.data = data
	return nil
}

func (s *Service) forward(ctx context.Context, c *relayContext) error {
	if err := s.relay.Relay(ctx, c.data); err != nil {
		return err
	}
	s.log.Debugw("notification relayed", "event_type", c.notification.EventType, "simulation_uid", c.notification.SimulationUID)
	return nil
}
