package email

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"github.com/gofrs/uuid"
	"github.com/pitchdesk/notify/internal/errs"
)

// SMTPConfig configures the mail relay connection.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // e.g. "Pitchdesk <no-reply@pitchdesk.io>"
}

type smtpClient struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPClient builds a STARTTLS SMTP client. The relay does not hand back
// a message id, so one is generated locally and stamped into the headers for
// callback correlation.
func NewSMTPClient(cfg SMTPConfig) Client {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &smtpClient{
		dialer: d,
		from:   cfg.From,
	}
}

func (c *smtpClient) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	messageID := id.String()

	m := mail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("X-Notify-Message-ID", messageID)
	m.SetBody("text/html", msg.Body)

	if err := c.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("%w: smtp: %w", errs.ErrSendFailed, err)
	}
	return messageID, nil
}
