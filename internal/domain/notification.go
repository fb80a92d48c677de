package domain

import (
	"fmt"
	"time"

	"github.com/pitchdesk/notify/internal/errs"
)

// Channel identifies one delivery channel.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// ExternalChannels lists the channels delivered through the background
// worker. In-app is always delivered inline by the intake service.
func ExternalChannels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelSMS}
}

// NotificationType is the closed set of events the platform conveys.
type NotificationType string

const (
	TypeMessage      NotificationType = "message"
	TypeInvestment   NotificationType = "investment"
	TypeNDARequest   NotificationType = "nda_request"
	TypeNDAApproval  NotificationType = "nda_approval"
	TypeNDARejection NotificationType = "nda_rejection"
	TypePitchUpdate  NotificationType = "pitch_update"
	TypeSystem       NotificationType = "system"
	TypeMarketing    NotificationType = "marketing"
)

func (t NotificationType) IsValid() bool {
	switch t {
	case TypeMessage, TypeInvestment, TypeNDARequest, TypeNDAApproval,
		TypeNDARejection, TypePitchUpdate, TypeSystem, TypeMarketing:
		return true
	default:
		return false
	}
}

// Priority governs queue placement and channel eligibility.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// Priorities returns all tiers ordered from most to least urgent. The worker
// polls queues in this order so urgent work is never visited after low.
func Priorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}
}

// Notification is one persisted event to convey to a user. It is created
// once by intake; only the read state mutates afterwards.
type Notification struct {
	ID           uint64
	UserID       int64
	Type         NotificationType
	Title        string
	Message      string
	Priority     Priority
	RelatedPitch int64
	RelatedUser  int64
	ActionURL    string
	ExpiresAt    time.Time
	Metadata     map[string]string
	Read         bool
	ReadAt       time.Time
	CreatedAt    time.Time
}

func (n *Notification) Validate() error {
	if n.UserID <= 0 {
		return fmt.Errorf("%w: UserID = %d", errs.ErrInvalidParameter, n.UserID)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: Type = %q", errs.ErrInvalidParameter, n.Type)
	}
	if n.Title == "" {
		return fmt.Errorf("%w: Title is empty", errs.ErrInvalidParameter)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: Message is empty", errs.ErrInvalidParameter)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: Priority = %q", errs.ErrInvalidParameter, n.Priority)
	}
	return nil
}

// Category maps a notification type onto the per-category preference toggle
// that controls it.
func (n *Notification) Category() Category {
	switch n.Type {
	case TypeNDARequest, TypeNDAApproval, TypeNDARejection:
		return CategoryNDA
	case TypeInvestment:
		return CategoryInvestment
	case TypeMessage:
		return CategoryMessage
	case TypePitchUpdate:
		return CategoryPitchUpdate
	case TypeMarketing:
		return CategoryMarketing
	default:
		return CategorySystem
	}
}

// ChannelOverride is an explicit caller-supplied channel set. When present
// it is used exactly as given for the external channels, bypassing
// preference and quiet-hours logic.
type ChannelOverride struct {
	Email bool
	Push  bool
	SMS   bool
}

// SubmitRequest is the intake input.
type SubmitRequest struct {
	UserID       int64
	Type         NotificationType
	Title        string
	Message      string
	Priority     Priority
	RelatedPitch int64
	RelatedUser  int64
	ActionURL    string
	ExpiresAt    time.Time
	Metadata     map[string]string
	Channels     *ChannelOverride
	// ChannelOptions are opaque per-channel send options the caller can
	// attach; each channel's map rides along on that channel's queue job.
	ChannelOptions map[Channel]map[string]string
}

// ChannelStatus reports, per selected channel, whether it was delivered
// inline (in-app) or handed to the worker.
type ChannelStatus struct {
	Channel Channel
	Status  string // "sent" or "queued"
}

// SubmitResult is the intake output.
type SubmitResult struct {
	NotificationID uint64
	Channels       []ChannelStatus
}
