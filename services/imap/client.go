package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/prodiguer/hermes/interfaces"
	"github.com/prodiguer/hermes/internal/enum"
	hermeserrors "github.com/prodiguer/hermes/internal/errors"
	"github.com/prodiguer/hermes/internal/logger"
	"github.com/prodiguer/hermes/internal/tracing"
)

const (
	DefaultFolder      = "INBOX"
	DefaultDialTimeout = 30 * time.Second
)

// Config describes the monitored mailbox.
type Config struct {
	Host        string
	Port        int
	Security    enum.EmailSecurity
	Username    string
	Password    string
	Folder      string
	DialTimeout time.Duration
}

// Client opens sessions on the monitored mailbox. Each session is a fresh
// authenticated connection with the folder selected read-write.
type Client struct {
	config Config
	log    logger.Logger
}

func NewClient(config Config, log logger.Logger) interfaces.MailClient {
	if config.Folder == "" {
		config.Folder = DefaultFolder
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	return &Client{config: config, log: log}
}

func (c *Client) Connect(ctx context.Context) (interfaces.MailSession, error) {
	span, ctx := tracing.StartTracerSpan(ctx, "IMAPClient.Connect")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("server", c.config.Host)
	span.SetTag("port", c.config.Port)
	span.SetTag("security", string(c.config.Security))

	imapClient, err := c.dial()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "connect", err)
	}

	// Login and select are bounded by the dial timeout; normal operations
	// are not.
	imapClient.Timeout = c.config.DialTimeout
	if err := imapClient.Login(c.config.Username, c.config.Password); err != nil {
		imapClient.Logout()
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "login", fmt.Errorf("failed to login as %s: %w", c.config.Username, err))
	}
	if _, err := imapClient.Select(c.config.Folder, false); err != nil {
		imapClient.Logout()
		tracing.TraceErr(span, err)
		return nil, hermeserrors.NewCollaboratorError("imap", "select", fmt.Errorf("failed to select %s: %w", c.config.Folder, err))
	}
	imapClient.Timeout = 0

	c.log.Debugf("Connected to %s:%d folder %s", c.config.Host, c.config.Port, c.config.Folder)
	return &session{client: imapClient, folder: c.config.Folder, log: c.log}, nil
}

func (c *Client) dial() (*client.Client, error) {
	serverAddr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	dialer := &net.Dialer{
		Timeout:   c.config.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	tlsConfig := &tls.Config{ServerName: c.config.Host}

	switch c.config.Security {
	case enum.EmailSecurityTLS:
		imapClient, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
		}
		return imapClient, nil
	case enum.EmailSecurityStartTLS:
		imapClient, err := client.DialWithDialer(dialer, serverAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
		}
		if err := imapClient.StartTLS(tlsConfig); err != nil {
			imapClient.Logout()
			return nil, fmt.Errorf("failed to start TLS with %s: %w", serverAddr, err)
		}
		return imapClient, nil
	default:
		imapClient, err := client.DialWithDialer(dialer, serverAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
		}
		return imapClient, nil
	}
}
