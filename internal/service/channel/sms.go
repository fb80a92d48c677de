package channel

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository"
	"github.com/pitchdesk/notify/internal/service/provider/sms"
)

// SMS bodies are capped well below the multipart threshold; the title alone
// usually carries the signal.
const maxSMSBody = 160

type smsChannel struct {
	contacts repository.ContactRepository
	client   sms.Client
}

func NewSMSChannel(contacts repository.ContactRepository, client sms.Client) Channel {
	return &smsChannel{
		contacts: contacts,
		client:   client,
	}
}

func (c *smsChannel) Send(ctx context.Context, job domain.QueueJob) (domain.SendResponse, error) {
	contact, err := c.contacts.GetByUserID(ctx, job.UserID)
	if err != nil {
		return domain.SendResponse{}, err
	}
	if contact.Phone == "" {
		return domain.SendResponse{}, fmt.Errorf("%w: user %d has no phone", errs.ErrMissingDestination, job.UserID)
	}

	body := fmt.Sprintf("%s: %s", job.Payload.Title, job.Payload.Message)
	if len(body) > maxSMSBody {
		// Cut on a rune boundary; a byte slice could split a multi-byte
		// character and hand the gateway invalid UTF-8.
		cut := maxSMSBody - 3
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	messageID, err := c.client.Send(ctx, sms.Message{
		Phone: contact.Phone,
		Body:  body,
	})
	if err != nil {
		return domain.SendResponse{}, err
	}
	return domain.SendResponse{ProviderMessageID: messageID}, nil
}
