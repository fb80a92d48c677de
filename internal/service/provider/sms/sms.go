// Package sms holds the SMS-gateway client used by the sms dispatcher.
package sms

import (
	"context"
)

// Message is one already-rendered outbound text.
type Message struct {
	Phone string
	Body  string
}

// Client is the transmission-provider contract for SMS. Send returns the
// gateway message id used to correlate delivery callbacks.
type Client interface {
	Send(ctx context.Context, msg Message) (string, error)
}
