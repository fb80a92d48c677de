package channel

import (
	"context"
	"fmt"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository"
	"github.com/pitchdesk/notify/internal/service/provider/push"
)

type pushChannel struct {
	contacts repository.ContactRepository
	client   push.Client
}

func NewPushChannel(contacts repository.ContactRepository, client push.Client) Channel {
	return &pushChannel{
		contacts: contacts,
		client:   client,
	}
}

func (c *pushChannel) Send(ctx context.Context, job domain.QueueJob) (domain.SendResponse, error) {
	contact, err := c.contacts.GetByUserID(ctx, job.UserID)
	if err != nil {
		return domain.SendResponse{}, err
	}
	if len(contact.DeviceTokens) == 0 {
		return domain.SendResponse{}, fmt.Errorf("%w: user %d has no device tokens", errs.ErrMissingDestination, job.UserID)
	}

	messageID, err := c.client.Send(ctx, push.Message{
		Tokens:    contact.DeviceTokens,
		Title:     job.Payload.Title,
		Body:      job.Payload.Message,
		ActionURL: job.Payload.ActionURL,
		Data:      job.Payload.Metadata,
	})
	if err != nil {
		return domain.SendResponse{}, err
	}
	return domain.SendResponse{ProviderMessageID: messageID}, nil
}
