// Package email holds the mail-relay client used by the email dispatcher.
package email

import (
	"context"
)

// Message is one already-rendered outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Client is the transmission-provider contract for email. Send returns the
// provider message id used to correlate delivery callbacks.
type Client interface {
	Send(ctx context.Context, msg Message) (string, error)
}
