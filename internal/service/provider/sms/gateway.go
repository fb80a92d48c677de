package sms

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pitchdesk/notify/internal/errs"
)

// GatewayConfig configures the HTTP SMS gateway.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Sender  string // registered sender id
	Timeout time.Duration
}

type gatewayClient struct {
	http   *resty.Client
	sender string
}

func NewGatewayClient(cfg GatewayConfig) Client {
	const defaultTimeout = 5 * time.Second
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey)
	return &gatewayClient{
		http:   client,
		sender: cfg.Sender,
	}
}

type gatewayRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (c *gatewayClient) Send(ctx context.Context, msg Message) (string, error) {
	var result gatewayResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			From: c.sender,
			To:   msg.Phone,
			Body: msg.Body,
		}).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("%w: sms gateway: %w", errs.ErrSendFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: sms gateway status %d: %s",
			errs.ErrSendFailed, resp.StatusCode(), result.Error)
	}
	return result.MessageID, nil
}
