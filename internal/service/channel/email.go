package channel

import (
	"context"
	"fmt"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository"
	"github.com/pitchdesk/notify/internal/service/provider/email"
)

type emailChannel struct {
	contacts repository.ContactRepository
	client   email.Client
}

func NewEmailChannel(contacts repository.ContactRepository, client email.Client) Channel {
	return &emailChannel{
		contacts: contacts,
		client:   client,
	}
}

func (c *emailChannel) Send(ctx context.Context, job domain.QueueJob) (domain.SendResponse, error) {
	contact, err := c.contacts.GetByUserID(ctx, job.UserID)
	if err != nil {
		return domain.SendResponse{}, err
	}
	// A user without a verified email is a send failure, not a validation
	// error: the job keeps its retry semantics.
	if contact.Email == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: user %d has no email", errs.ErrMissingDestination, job.UserID)
	}

	body := job.Payload.Message
	if job.Payload.ActionURL != "" {
		body = fmt.Sprintf("%s\n\n<a href=%q>View on Pitchdesk</a>", body, job.Payload.ActionURL)
	}
	messageID, err := c.client.Send(ctx, email.Message{
		To:      contact.Email,
		Subject: job.Payload.Title,
		Body:    body,
	})
	if err != nil {
		return domain.SendResponse{}, err
	}
	return domain.SendResponse{ProviderMessageID: messageID}, nil
}
