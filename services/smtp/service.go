package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/prodiguer/hermes/dto"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
	"github.com/prodiguer/hermes/internal/utils"
)

const BreakerName = "smtp-relay"

// Config describes the relay operator alerts are sent through.
type Config struct {
	Host     string
	Port     int
	Security enum.EmailSecurity
	Username string
	Password string
	From     string
}

type deliverFunc func(ctx context.Context, from string, recipients []string, message []byte) error

// Mailer sends operator notifications. Sending goes through a circuit
// breaker so a dead relay fails alerts fast instead of stalling consumers.
type Mailer struct {
	config  Config
	domain  string
	log     logger.Logger
	breaker *breaker
	deliver deliverFunc
}

func NewMailer(config Config, log logger.Logger) (*Mailer, error) {
	validation := mailvalidate.ValidateEmailSyntax(config.From)
	if !validation.IsValid {
		return nil, errors.Errorf("from address %q is not valid", config.From)
	}

	m := &Mailer{
		config:  config,
		domain:  validation.Domain,
		log:     log,
		breaker: newBreaker(DefaultBreakerConfig(BreakerName)),
	}
	m.deliver = m.sendToServer
	return m, nil
}

func (m *Mailer) Send(ctx context.Context, email *dto.OutboundEmail) error {
	span, ctx := tracing.StartTracerSpan(ctx, "Mailer.Send")
	defer span.Finish()
	tracing.TagComponentService(span)

	recipients, err := validateEmail(email)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	buffer, err := buildMessage(m.config.From, recipients, email, utils.GenerateMessageID(m.domain, ""))
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	err = m.breaker.execute(ctx, func() error {
		return m.deliver(ctx, m.config.From, recipients, buffer.Bytes())
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.log.Warnw("smtp relay unavailable, alert not sent", "subject", email.Subject)
		}
		tracing.TraceErr(span, err)
		return hermeserrors.NewCollaboratorError("smtp", "send "+email.Subject, err)
	}

	span.LogKV("recipients", len(recipients))
	return nil
}

// validateEmail checks the notification and returns its recipients,
// deduplicated, with every address syntactically valid.
func validateEmail(email *dto.OutboundEmail) ([]string, error) {
	if email == nil {
		return nil, errors.New("email cannot be nil")
	}
	if strings.TrimSpace(email.Subject) == "" {
		return nil, errors.New("email must have a subject")
	}
	if email.Body == "" {
		return nil, errors.New("email must have text content")
	}

	recipients := utils.UniqueEmails(email.To)
	if len(recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	for _, recipient := range recipients {
		if !mailvalidate.ValidateEmailSyntax(recipient).IsValid {
			return nil, errors.Errorf("recipient %q is not valid", recipient)
		}
	}
	return recipients, nil
}

func (m *Mailer) sendToServer(ctx context.Context, from string, recipients []string, message []byte) error {
	span, _ := tracing.StartTracerSpan(ctx, "Mailer.sendToServer")
	defer span.Finish()
	span.LogKV("smtp_server", m.config.Host, "smtp_port", m.config.Port)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	var err error
	switch m.config.Security {
	case enum.EmailSecurityTLS:
		err = m.send(addr, auth, from, recipients, message, true)
	case enum.EmailSecurityStartTLS:
		err = m.send(addr, auth, from, recipients, message, false)
	default:
		err = smtp.SendMail(addr, auth, from, recipients, message)
	}
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// send talks to the relay over implicit TLS, or over a plain connection
// upgraded with STARTTLS.
func (m *Mailer) send(addr string, auth smtp.Auth, from string, recipients []string, message []byte, implicitTLS bool) error {
	tlsConfig := &tls.Config{ServerName: m.config.Host}

	var conn net.Conn
	var err error
	if implicitTLS {
		conn, err = tls.Dial("tcp", addr, tlsConfig)
	} else {
		conn, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if !implicitTLS {
		if err = client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	for _, recipient := range recipients {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
		}
	}

	dataWriter, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err = dataWriter.Write(message); err != nil {
		return fmt.Errorf("failed to write email data: %w", err)
	}
	if err = dataWriter.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}
