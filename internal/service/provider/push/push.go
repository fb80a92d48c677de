// Package push holds the push-gateway client used by the push dispatcher.
package push

import (
	"context"
)

// Message is one already-rendered push notification for a set of device
// tokens belonging to a single user.
type Message struct {
	Tokens    []string
	Title     string
	Body      string
	ActionURL string
	Data      map[string]string
}

// Client is the transmission-provider contract for push. Send returns the
// gateway message id used to correlate delivery callbacks.
type Client interface {
	Send(ctx context.Context, msg Message) (string, error)
}
