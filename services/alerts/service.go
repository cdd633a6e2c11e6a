package alerts

import (
	"context"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/metrics"
	"github.com/prodiguer/hermes/internal/pipeline"
	"github.com/prodiguer/hermes/internal/utils"
)

// New describes an operator alert message raised by app.
func New(trigger enum.AlertTrigger, app enum.AppID, payload map[string]interface{}) message.Outbound {
	out := message.Internal(enum.MessageOperatorAlert, app, dto.Alert{Trigger: trigger.String(), Payload: payload})
	out.Priority = enum.PriorityHigh
	return out
}

type Config struct {
	Recipients []string
}

type alertContext struct {
	pipeline.Base
	alert *dto.Alert
	email *dto.OutboundEmail
}

// Dispatcher mails every alert it receives to the operators. Alerts are
// neither deduplicated nor rate limited.
type Dispatcher struct {
	config   Config
	mailer   interfaces.Mailer
	log      logger.Logger
	pipeline *pipeline.Pipeline[*alertContext]
}

func NewDispatcher(config Config, mailer interfaces.Mailer, log logger.Logger) *Dispatcher {
	d := &Dispatcher{config: config, mailer: mailer, log: log}
	d.pipeline = pipeline.New(enum.AgentAlert.String(), log,
		[]pipeline.Step[*alertContext]{
			{Name: "unpack", Run: d.unpack},
			{Name: "render", Run: d.render},
			{Name: "send", Run: d.send},
		}, nil)
	return d
}

func (d *Dispatcher) Handle(ctx context.Context, env *message.Envelope) pipeline.Result {
	return d.pipeline.Run(ctx, &alertContext{Base: pipeline.NewBase(env)})
}

func (d *Dispatcher) unpack(_ context.Context, c *alertContext) error {
	alert, err := message.Unmarshal[dto.Alert](c.Message)
	if err != nil {
		return err
	}
	c.alert = alert
	return nil
}

// render aborts on an unknown trigger: a bad alert must never fail the
// consumer that raised it.
func (d *Dispatcher) render(_ context.Context, c *alertContext) error {
	trigger := enum.AlertTrigger(c.alert.Trigger)
	tmpl, ok := templates[trigger]
	if !ok {
		d.log.Warnw("unsupported alert trigger", "trigger", c.alert.Trigger, "message_id", c.Message.MessageID)
		metrics.AlertsSentTotal.WithLabelValues(c.alert.Trigger, "unsupported").Inc()
		c.Abort()
		return nil
	}

	subject, body, err := tmpl.render(c.alert.Payload)
	if err != nil {
		return errors.Wrapf(err, "failed to render %s alert", trigger)
	}

	c.email = &dto.OutboundEmail{
		To:       d.config.Recipients,
		Subject:  subject,
		Body:     body,
		SentAt:   utils.Now(),
		Priority: "high",
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, c *alertContext) error {
	if err := d.mailer.Send(ctx, c.email); err != nil {
		metrics.AlertsSentTotal.WithLabelValues(c.alert.Trigger, "failed").Inc()
		return err
	}
	metrics.AlertsSentTotal.WithLabelValues(c.alert.Trigger, "sent").Inc()
	d.log.Infow("alert sent", "trigger", c.alert.Trigger, "recipients", len(c.email.To))
	return nil
}
