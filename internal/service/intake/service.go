// Package intake accepts internally-triggered notification events, persists
// them, delivers the in-app channel inline and enqueues every other eligible
// channel for the background worker.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/pkg/idgen"
	"github.com/pitchdesk/notify/internal/queue"
	"github.com/pitchdesk/notify/internal/repository"
	"github.com/pitchdesk/notify/internal/service/preference"
	"github.com/pitchdesk/notify/internal/service/realtime"
	"github.com/pitchdesk/notify/internal/service/tracker"
)

const (
	channelStatusSent   = "sent"
	channelStatusQueued = "queued"
)

// Service is the notification intake.
type Service interface {
	// Submit validates, persists and routes one notification. Everything
	// after successful persistence is asynchronous and never fails the
	// caller.
	Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error)
	// MarkAsRead is idempotent; the first call wins the read timestamp.
	MarkAsRead(ctx context.Context, notificationID uint64, userID int64) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
}

type service struct {
	repo        repository.NotificationRepository
	prefs       preference.Service
	gateway     realtime.Gateway
	store       queue.Store
	tracker     tracker.Service
	idgen       *idgen.Generator
	maxAttempts int32
	logger      *elog.Component
	now         func() time.Time
}

func NewService(
	repo repository.NotificationRepository,
	prefs preference.Service,
	gateway realtime.Gateway,
	store queue.Store,
	trackerSvc tracker.Service,
	gen *idgen.Generator,
	maxAttempts int32,
) Service {
	return &service{
		repo:        repo,
		prefs:       prefs,
		gateway:     gateway,
		store:       store,
		tracker:     trackerSvc,
		idgen:       gen,
		maxAttempts: maxAttempts,
		logger:      elog.DefaultLogger,
		now:         time.Now,
	}
}

func (s *service) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	notification := domain.Notification{
		UserID:       req.UserID,
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		Priority:     req.Priority,
		RelatedPitch: req.RelatedPitch,
		RelatedUser:  req.RelatedUser,
		ActionURL:    req.ActionURL,
		ExpiresAt:    req.ExpiresAt,
		Metadata:     req.Metadata,
	}
	if err := notification.Validate(); err != nil {
		return domain.SubmitResult{}, err
	}

	// Durability precedes any dispatch attempt.
	notification.ID = s.idgen.NextID(req.UserID, time.Time{})
	created, err := s.repo.Create(ctx, notification)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	channels := s.selectChannels(ctx, created, req.Channels)

	result := domain.SubmitResult{NotificationID: created.ID}

	// In-app goes out inline, best effort. A fan-out failure is logged and
	// swallowed: the row is already the user's durable inbox entry.
	if err := s.gateway.Publish(ctx, created); err != nil {
		s.logger.Warn("in-app fan-out failed",
			elog.Int64("notificationID", int64(created.ID)), elog.FieldErr(err))
	}
	result.Channels = append(result.Channels, domain.ChannelStatus{
		Channel: domain.ChannelInApp,
		Status:  channelStatusSent,
	})

	now := s.now()
	for _, ch := range channels {
		job, err := s.buildJob(created, ch, req.ChannelOptions[ch], now)
		if err != nil {
			s.logger.Error("build queue job failed",
				elog.Int64("notificationID", int64(created.ID)),
				elog.String("channel", string(ch)), elog.FieldErr(err))
			continue
		}
		if err := s.store.Push(ctx, job.QueueName(), job); err != nil {
			// Past the persistence point failures stay asynchronous; the
			// user still has the in-app copy.
			s.logger.Error("enqueue failed",
				elog.Int64("notificationID", int64(created.ID)),
				elog.String("channel", string(ch)), elog.FieldErr(err))
			continue
		}
		result.Channels = append(result.Channels, domain.ChannelStatus{
			Channel: ch,
			Status:  channelStatusQueued,
		})
	}
	return result, nil
}

// selectChannels applies the external-channel eligibility rules. An explicit
// override set is exactly what the caller gets; otherwise preferences,
// per-category toggles, quiet hours and priority decide.
func (s *service) selectChannels(ctx context.Context, n domain.Notification, override *domain.ChannelOverride) []domain.Channel {
	if override != nil {
		var channels []domain.Channel
		if override.Email {
			channels = append(channels, domain.ChannelEmail)
		}
		if override.Push {
			channels = append(channels, domain.ChannelPush)
		}
		if override.SMS {
			channels = append(channels, domain.ChannelSMS)
		}
		return channels
	}

	prefs, err := s.prefs.Resolve(ctx, n.UserID)
	if err != nil {
		// Default-safe fallback: the in-app copy always exists, and email
		// reaches users who have not opted out.
		s.logger.Warn("preference load failed, falling back to defaults",
			elog.Int64("userID", n.UserID), elog.FieldErr(err))
		prefs = domain.DefaultPreferences(n.UserID)
	}

	quiet := preference.IsQuietHours(prefs, s.now())
	urgent := n.Priority == domain.PriorityUrgent

	var channels []domain.Channel
	if prefs.Email && prefs.CategoryAllowed(n.Category()) && !quiet {
		channels = append(channels, domain.ChannelEmail)
	}
	if prefs.Push && (!quiet || urgent) {
		channels = append(channels, domain.ChannelPush)
	}
	// SMS never fires for non-urgent priority regardless of preference.
	if prefs.SMS && urgent {
		channels = append(channels, domain.ChannelSMS)
	}
	return channels
}

func (s *service) buildJob(n domain.Notification, ch domain.Channel, options map[string]string, now time.Time) (domain.QueueJob, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return domain.QueueJob{}, err
	}
	return domain.QueueJob{
		ID:             id.String(),
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        ch,
		Priority:       n.Priority,
		ScheduledAt:    now,
		// The job's attempt number: this first job performs attempt 1.
		Attempts:    1,
		MaxAttempts: s.maxAttempts,
		Payload: domain.JobPayload{
			Title:     n.Title,
			Message:   n.Message,
			ActionURL: n.ActionURL,
			Metadata:  n.Metadata,
			Options:   options,
		},
	}, nil
}

func (s *service) MarkAsRead(ctx context.Context, notificationID uint64, userID int64) error {
	if notificationID == 0 || userID <= 0 {
		return fmt.Errorf("%w: notificationID = %d, userID = %d",
			errs.ErrInvalidParameter, notificationID, userID)
	}
	if err := s.repo.MarkRead(ctx, notificationID, userID, s.now()); err != nil {
		return err
	}
	// Read annotations on the delivery records are best effort and
	// append-only; they never fail the read receipt itself.
	if err := s.tracker.AnnotateRead(ctx, notificationID); err != nil {
		s.logger.Warn("read annotation failed",
			elog.Int64("notificationID", int64(notificationID)), elog.FieldErr(err))
	}
	return nil
}

func (s *service) ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	const defaultLimit = 20
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userID = %d", errs.ErrInvalidParameter, userID)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, offset, limit)
}

func (s *service) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("%w: userID = %d", errs.ErrInvalidParameter, userID)
	}
	return s.repo.CountUnread(ctx, userID)
}
