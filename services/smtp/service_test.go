package smtp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodiguer/hermes/dto"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
)

type delivery struct {
	from       string
	recipients []string
	message    string
}

func newTestMailer(t *testing.T, fail error) (*Mailer, *[]delivery) {
	t.Helper()

	mailer, err := NewMailer(Config{Host: "localhost", Port: 25, From: "hermes@ipsl.fr"}, logger.NewNopLogger())
	require.NoError(t, err)

	var sent []delivery
	mailer.deliver = func(_ context.Context, from string, recipients []string, message []byte) error {
		if fail != nil {
			return fail
		}
		sent = append(sent, delivery{from: from, recipients: recipients, message: string(message)})
		return nil
	}
	return mailer, &sent
}

func TestNewMailer_RejectsInvalidFrom(t *testing.T) {
	_, err := NewMailer(Config{From: "not-an-address"}, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestSend_DeduplicatesRecipients(t *testing.T) {
	mailer, sent := newTestMailer(t, nil)

	err := mailer.Send(context.Background(), &dto.OutboundEmail{
		To:      []string{"ops@ipsl.fr", " OPS@ipsl.fr", "dev@ipsl.fr"},
		Subject: "SMTP backlog",
		Body:    "line one\nline two",
		SentAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	d := (*sent)[0]
	assert.Equal(t, "hermes@ipsl.fr", d.from)
	assert.Equal(t, []string{"ops@ipsl.fr", "dev@ipsl.fr"}, d.recipients)
	assert.Contains(t, d.message, "To: ops@ipsl.fr, dev@ipsl.fr\r\n")
	assert.Contains(t, d.message, "Subject: SMTP backlog\r\n")
	assert.Contains(t, d.message, "Message-ID: <")
	assert.Contains(t, d.message, "@ipsl.fr>\r\n")
	assert.True(t, strings.HasSuffix(d.message, "\r\n\r\nline one\r\nline two"))
}

func TestSend_Validation(t *testing.T) {
	mailer, sent := newTestMailer(t, nil)

	tests := []struct {
		name  string
		email *dto.OutboundEmail
	}{
		{"nil", nil},
		{"no subject", &dto.OutboundEmail{To: []string{"ops@ipsl.fr"}, Body: "x"}},
		{"no body", &dto.OutboundEmail{To: []string{"ops@ipsl.fr"}, Subject: "x"}},
		{"no recipient", &dto.OutboundEmail{To: []string{" "}, Subject: "x", Body: "x"}},
		{"bad recipient", &dto.OutboundEmail{To: []string{"ops"}, Subject: "x", Body: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, mailer.Send(context.Background(), tt.email))
		})
	}
	assert.Empty(t, *sent)
}

func TestBuildMessage_Priority(t *testing.T) {
	buffer, err := buildMessage("hermes@ipsl.fr", []string{"ops@ipsl.fr"}, &dto.OutboundEmail{
		Subject:  "s",
		Body:     "b",
		Priority: "HIGH",
	}, "<id@ipsl.fr>")
	require.NoError(t, err)
	assert.Contains(t, buffer.String(), "X-Priority: 1 (Highest)\r\n")

	_, err = buildMessage("hermes@ipsl.fr", []string{"ops@ipsl.fr"}, &dto.OutboundEmail{Subject: "s", Body: "b"}, "")
	assert.Error(t, err)
}

func TestSend_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mailer, _ := newTestMailer(t, errors.New("connection refused"))
	email := &dto.OutboundEmail{To: []string{"ops@ipsl.fr"}, Subject: "s", Body: "b"}

	for i := 0; i < 3; i++ {
		err := mailer.Send(context.Background(), email)
		require.Error(t, err)
		assert.True(t, hermeserrors.IsCollaboratorError(err))
	}
	assert.Equal(t, gobreaker.StateOpen, mailer.breaker.state())

	err := mailer.Send(context.Background(), email)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
