package checker

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/message"
	"github.com/prodiguer/hermes/internal/metrics"
	"github.com/prodiguer/hermes/internal/tracing"
	"github.com/prodiguer/hermes/services/alerts"
)

const (
	DefaultRetryDelay    = 600 * time.Second
	DefaultMaxEmails     = 50
	DefaultLatencyMaxSec = 900
)

type Config struct {
	RetryDelay    time.Duration
	MaxEmails     int
	LatencyMaxSec int
}

// Checker watches the health of the SMTP ingestion: too many emails
// waiting in the mailbox means the extraction agents are not keeping up.
type Checker struct {
	config    Config
	mail      interfaces.MailClient
	publisher interfaces.MessagePublisher
	vocab     *message.Vocabulary
	log       logger.Logger
}

func NewChecker(config Config, mail interfaces.MailClient, publisher interfaces.MessagePublisher, vocab *message.Vocabulary, log logger.Logger) *Checker {
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.MaxEmails <= 0 {
		config.MaxEmails = DefaultMaxEmails
	}
	if config.LatencyMaxSec <= 0 {
		config.LatencyMaxSec = DefaultLatencyMaxSec
	}
	return &Checker{
		config:    config,
		mail:      mail,
		publisher: publisher,
		vocab:     vocab,
		log:       log,
	}
}

// Interval is the delay between two cycles.
func (c *Checker) Interval() time.Duration {
	return c.config.RetryDelay
}

// Cycle runs every check once and reports whether all of them succeeded.
func (c *Checker) Cycle(ctx context.Context) bool {
	span, ctx := tracing.StartTracerSpan(ctx, "Checker.Cycle")
	defer span.Finish()
	tracing.TagComponentCronJob(span)
	tracing.TagAgent(span, enum.AgentSMTPChecker.String())

	ok := true
	for name, check := range map[string]func(context.Context) error{
		"count":   c.checkCount,
		"latency": c.checkLatency,
	} {
		if err := c.run(ctx, check); err != nil {
			tracing.TraceErr(span, err)
			c.log.Errorw("smtp check failed", "check", name, "error", err.Error())
			ok = false
		}
	}

	status := "ok"
	if !ok {
		status = "failed"
	}
	metrics.CheckerCyclesTotal.WithLabelValues(status).Inc()
	return ok
}

func (c *Checker) run(ctx context.Context, check func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("check panicked: %v", r)
		}
	}()
	return check(ctx)
}

// checkCount raises an alert whenever the mailbox holds at least the
// configured number of emails.
func (c *Checker) checkCount(ctx context.Context) error {
	session, err := c.mail.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.log.Warnf("Failed to close mail session: %v", err)
		}
	}()

	size, err := session.Size(ctx)
	if err != nil {
		return err
	}
	metrics.MailboxSize.Set(float64(size))

	if size < c.config.MaxEmails {
		return nil
	}

	c.log.Warnw("mailbox backlog over limit", "count", size, "limit", c.config.MaxEmails)
	env, err := message.Build(c.vocab, alerts.New(enum.AlertSMTPCheckerCount, enum.AppSMTP, map[string]interface{}{
		"count": size,
		"limit": c.config.MaxEmails,
	}))
	if err != nil {
		return err
	}
	return c.publisher.Publish(ctx, env)
}

// checkLatency is disabled until the latency measure has been validated
// against production mailboxes.
func (c *Checker) checkLatency(_ context.Context) error {
	return nil
}
