package push

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pitchdesk/notify/internal/errs"
)

// GatewayConfig configures the HTTP push gateway.
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type gatewayClient struct {
	http *resty.Client
}

// NewGatewayClient builds a client for the platform's push gateway, which
// fans a message out to the given device tokens.
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
	return &gatewayClient{http: client}
}

type gatewayRequest struct {
	Tokens    []string          `json:"tokens"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	ActionURL string            `json:"actionUrl,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
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
			Tokens:    msg.Tokens,
			Title:     msg.Title,
			Body:      msg.Body,
			ActionURL: msg.ActionURL,
			Data:      msg.Data,
		}).
		SetResult(&result).
		Post("/v1/push")
	if err != nil {
		return "", fmt.Errorf("%w: push gateway: %w", errs.ErrSendFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: push gateway status %d: %s",
			errs.ErrSendFailed, resp.StatusCode(), result.Error)
	}
	return result.MessageID, nil
}
