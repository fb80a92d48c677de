// Package channel implements the uniform per-channel send contract. Adding
// a channel means adding one implementation and registering it with the
// dispatcher, never editing a switch.
package channel

import (
	"context"
	"fmt"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
)

// Channel sends one queued job through a single delivery channel.
type Channel interface {
	Send(ctx context.Context, job domain.QueueJob) (domain.SendResponse, error)
}

// Dispatcher routes a job to its channel implementation. It satisfies
// Channel itself so callers hold a single send entry point.
type Dispatcher struct {
	channels map[domain.Channel]Channel
}

func NewDispatcher(channels map[domain.Channel]Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

func (d *Dispatcher) Send(ctx context.Context, job domain.QueueJob) (domain.SendResponse, error) {
	ch, ok := d.channels[job.Channel]
	if !ok {
		return domain.SendResponse{}, fmt.Errorf("%w: %q", errs.ErrUnknownChannel, job.Channel)
	}
	return ch.Send(ctx, job)
}
