// Package tracker owns the per-channel delivery state machine and applies
// provider callbacks and user read/click annotations.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository"
)

// Service transitions delivery records through their lifecycle.
type Service interface {
	// BeginAttempt ensures the (notification, channel) record exists and
	// moves it into sending for the given attempt number. A record already
	// in sending is resumed, so replayed jobs are never dropped.
	BeginAttempt(ctx context.Context, job domain.QueueJob) (domain.DeliveryRecord, error)
	MarkSent(ctx context.Context, record domain.DeliveryRecord, providerMessageID string) error
	// MarkFailed records the failure; the record stays re-enterable while
	// attempts remain and becomes terminal once the budget is exhausted.
	MarkFailed(ctx context.Context, record domain.DeliveryRecord, sendErr error) error
	// HandleProviderEvent maps an inbound callback onto the record keyed by
	// provider message id.
	HandleProviderEvent(ctx context.Context, providerMessageID string, event domain.ProviderEvent) error
	// AnnotateRead stamps read timestamps across a notification's records.
	// Append-only: an already-set timestamp never regresses.
	AnnotateRead(ctx context.Context, notificationID uint64) error
	AnnotateClicked(ctx context.Context, notificationID uint64) error
}

type service struct {
	repo   repository.DeliveryRecordRepository
	idgen  IDGenerator
	logger *elog.Component
	now    func() time.Time
}

// IDGenerator issues record ids.
type IDGenerator interface {
	NextID(userID int64, at time.Time) uint64
}

func NewService(repo repository.DeliveryRecordRepository, gen IDGenerator) Service {
	return &service{
		repo:   repo,
		idgen:  gen,
		logger: elog.DefaultLogger,
		now:    time.Now,
	}
}

func (s *service) BeginAttempt(ctx context.Context, job domain.QueueJob) (domain.DeliveryRecord, error) {
	record, err := s.repo.Ensure(ctx, domain.DeliveryRecord{
		ID:             s.idgen.NextID(job.UserID, time.Time{}),
		NotificationID: job.NotificationID,
		Channel:        job.Channel,
		Status:         domain.DeliveryStatusQueued,
		MaxAttempts:    job.MaxAttempts,
	})
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	if record.Status == domain.DeliveryStatusSending {
		// A replayed job: the previous attempt was cut short before its
		// status write landed (crash, store outage). Resume the attempt
		// instead of treating re-entry as a conflict.
		record.Attempts = job.Attempts
		if err := s.repo.Update(ctx, record); err != nil {
			return domain.DeliveryRecord{}, err
		}
		return record, nil
	}
	if !record.CanTransition(domain.DeliveryStatusSending) {
		return domain.DeliveryRecord{}, fmt.Errorf("%w: %s -> sending (notification %d, %s)",
			errs.ErrTerminalState, record.Status, record.NotificationID, record.Channel)
	}
	record.Status = domain.DeliveryStatusSending
	record.Attempts = job.Attempts
	if err := s.repo.Update(ctx, record); err != nil {
		return domain.DeliveryRecord{}, err
	}
	return record, nil
}

func (s *service) MarkSent(ctx context.Context, record domain.DeliveryRecord, providerMessageID string) error {
	if !record.CanTransition(domain.DeliveryStatusSent) {
		return fmt.Errorf("%w: %s -> sent", errs.ErrInvalidTransition, record.Status)
	}
	record.Status = domain.DeliveryStatusSent
	record.ProviderMessageID = providerMessageID
	record.LastError = ""
	record.SentAt = s.now()
	return s.repo.Update(ctx, record)
}

func (s *service) MarkFailed(ctx context.Context, record domain.DeliveryRecord, sendErr error) error {
	if !record.CanTransition(domain.DeliveryStatusFailed) {
		return fmt.Errorf("%w: %s -> failed", errs.ErrInvalidTransition, record.Status)
	}
	record.Status = domain.DeliveryStatusFailed
	if sendErr != nil {
		record.LastError = sendErr.Error()
	}
	if err := s.repo.Update(ctx, record); err != nil {
		return err
	}
	if record.Terminal() {
		s.logger.Warn("delivery permanently failed",
			elog.Int64("notificationID", int64(record.NotificationID)),
			elog.String("channel", string(record.Channel)),
			elog.Int("attempts", int(record.Attempts)),
			elog.String("lastError", record.LastError))
	}
	return nil
}

func (s *service) HandleProviderEvent(ctx context.Context, providerMessageID string, event domain.ProviderEvent) error {
	if providerMessageID == "" || !event.IsValid() {
		return fmt.Errorf("%w: providerMessageID = %q, event = %q",
			errs.ErrInvalidParameter, providerMessageID, event)
	}
	record, err := s.repo.GetByProviderMessageID(ctx, providerMessageID)
	if err != nil {
		return err
	}

	switch event {
	case domain.ProviderEventDelivered:
		if !record.CanTransition(domain.DeliveryStatusDelivered) {
			return fmt.Errorf("%w: %s -> delivered", errs.ErrInvalidTransition, record.Status)
		}
		record.Status = domain.DeliveryStatusDelivered
		record.DeliveredAt = s.now()
	case domain.ProviderEventBounced, domain.ProviderEventComplained:
		if !record.CanTransition(domain.DeliveryStatusBounced) {
			return fmt.Errorf("%w: %s -> bounced", errs.ErrInvalidTransition, record.Status)
		}
		record.Status = domain.DeliveryStatusBounced
		record.LastError = string(event)
	}
	return s.repo.Update(ctx, record)
}

func (s *service) AnnotateRead(ctx context.Context, notificationID uint64) error {
	return s.annotate(ctx, notificationID, domain.DeliveryStatusRead)
}

func (s *service) AnnotateClicked(ctx context.Context, notificationID uint64) error {
	return s.annotate(ctx, notificationID, domain.DeliveryStatusClicked)
}

func (s *service) annotate(ctx context.Context, notificationID uint64, status domain.DeliveryStatus) error {
	records, err := s.repo.ListByNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range records {
		record := records[i]
		switch status {
		case domain.DeliveryStatusRead:
			if !record.ReadAt.IsZero() || !record.CanTransition(domain.DeliveryStatusRead) {
				continue
			}
			record.Status = domain.DeliveryStatusRead
			record.ReadAt = now
		case domain.DeliveryStatusClicked:
			if !record.ClickedAt.IsZero() || !record.CanTransition(domain.DeliveryStatusClicked) {
				continue
			}
			record.Status = domain.DeliveryStatusClicked
			record.ClickedAt = now
		default:
			continue
		}
		if err := s.repo.Update(ctx, record); err != nil {
			return err
		}
	}
	return nil
}
