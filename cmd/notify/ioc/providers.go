package ioc

import (
	"time"

	"github.com/gotomicro/ego/core/econf"
	"github.com/pitchdesk/notify/internal/service/provider/console"
	"github.com/pitchdesk/notify/internal/service/provider/email"
	"github.com/pitchdesk/notify/internal/service/provider/push"
	"github.com/pitchdesk/notify/internal/service/provider/sms"
)

// InitEmailClient picks the SMTP client, or the console client when the
// block is absent (local development).
func InitEmailClient() email.Client {
	type Config struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	var cfg Config
	if err := econf.UnmarshalKey("providers.email", &cfg); err != nil || cfg.Host == "" {
		return console.NewEmailClient()
	}
	return email.NewSMTPClient(email.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func InitPushClient() push.Client {
	type Config struct {
		BaseURL string `yaml:"baseURL"`
		APIKey  string `yaml:"apiKey"`
		Timeout time.Duration
	}
	var cfg Config
	if err := econf.UnmarshalKey("providers.push", &cfg); err != nil || cfg.BaseURL == "" {
		return console.NewPushClient()
	}
	return push.NewGatewayClient(push.GatewayConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
}

func InitSMSClient() sms.Client {
	type Config struct {
		BaseURL string `yaml:"baseURL"`
		APIKey  string `yaml:"apiKey"`
		Sender  string
		Timeout time.Duration
	}
	var cfg Config
	if err := econf.UnmarshalKey("providers.sms", &cfg); err != nil || cfg.BaseURL == "" {
		return console.NewSMSClient()
	}
	return sms.NewGatewayClient(sms.GatewayConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Sender:  cfg.Sender,
		Timeout: cfg.Timeout,
	})
}
