package domain

import (
	"time"
)

// DeliveryStatus is the per-channel delivery state machine:
//
//	queued → sending → {sent | failed}
//	sent → delivered → read → clicked
//	sent → bounced (provider callback, terminal)
//
// failed with attempts remaining re-enters sending on the next retry cycle;
// failed with the budget exhausted is terminal.
type DeliveryStatus string

const (
	DeliveryStatusQueued    DeliveryStatus = "queued"
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusClicked   DeliveryStatus = "clicked"
	DeliveryStatusBounced   DeliveryStatus = "bounced"
)

// DeliveryRecord tracks one (notification, channel) attempt cycle. Exactly
// one record exists per external channel a notification was routed to;
// retries update the same record in place.
type DeliveryRecord struct {
	ID                uint64
	NotificationID    uint64
	Channel           Channel
	Status            DeliveryStatus
	ProviderMessageID string
	Attempts          int32
	MaxAttempts       int32
	LastError         string
	SentAt            time.Time
	DeliveredAt       time.Time
	ReadAt            time.Time
	ClickedAt         time.Time
	CreatedAt         time.Time
}

// Terminal reports whether no further status transition is permitted.
// failed is terminal only once the retry budget is exhausted.
func (r *DeliveryRecord) Terminal() bool {
	switch r.Status {
	case DeliveryStatusBounced:
		return true
	case DeliveryStatusFailed:
		return r.Attempts >= r.MaxAttempts
	default:
		return false
	}
}

// CanTransition reports whether moving to the target status is a legal step
// of the state machine.
func (r *DeliveryRecord) CanTransition(to DeliveryStatus) bool {
	if r.Terminal() {
		return false
	}
	switch to {
	case DeliveryStatusSending:
		return r.Status == DeliveryStatusQueued || r.Status == DeliveryStatusFailed
	case DeliveryStatusSent, DeliveryStatusFailed:
		return r.Status == DeliveryStatusSending
	case DeliveryStatusDelivered, DeliveryStatusBounced:
		return r.Status == DeliveryStatusSent
	case DeliveryStatusRead:
		return r.Status == DeliveryStatusDelivered || r.Status == DeliveryStatusSent
	case DeliveryStatusClicked:
		return r.Status == DeliveryStatusRead || r.Status == DeliveryStatusDelivered
	default:
		return false
	}
}

// ProviderEvent is an inbound transmission-provider callback, keyed by the
// provider message id returned at send time.
type ProviderEvent string

const (
	ProviderEventDelivered  ProviderEvent = "delivered"
	ProviderEventBounced    ProviderEvent = "bounced"
	ProviderEventComplained ProviderEvent = "complained"
)

func (e ProviderEvent) IsValid() bool {
	switch e {
	case ProviderEventDelivered, ProviderEventBounced, ProviderEventComplained:
		return true
	default:
		return false
	}
}

// SendResponse is the uniform dispatcher result.
type SendResponse struct {
	ProviderMessageID string
}
