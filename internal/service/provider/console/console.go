// Package console provides stdout transmission providers for local
// development and tests.
package console

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/service/provider/email"
	"github.com/pitchdesk/notify/internal/service/provider/push"
	"github.com/pitchdesk/notify/internal/service/provider/sms"
)

type EmailClient struct {
	logger *elog.Component
}

func NewEmailClient() *EmailClient {
	return &EmailClient{logger: elog.DefaultLogger.With(elog.String("provider", "console-email"))}
}

func (c *EmailClient) Send(_ context.Context, msg email.Message) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	c.logger.Info("email", elog.String("to", msg.To), elog.String("subject", msg.Subject))
	return id.String(), nil
}

type PushClient struct {
	logger *elog.Component
}

func NewPushClient() *PushClient {
	return &PushClient{logger: elog.DefaultLogger.With(elog.String("provider", "console-push"))}
}

func (c *PushClient) Send(_ context.Context, msg push.Message) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	c.logger.Info("push", elog.Int("tokens", len(msg.Tokens)), elog.String("title", msg.Title))
	return id.String(), nil
}

type SMSClient struct {
	logger *elog.Component
}

func NewSMSClient() *SMSClient {
	return &SMSClient{logger: elog.DefaultLogger.With(elog.String("provider", "console-sms"))}
}

func (c *SMSClient) Send(_ context.Context, msg sms.Message) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	c.logger.Info("sms", elog.String("phone", msg.Phone))
	return id.String(), nil
}
