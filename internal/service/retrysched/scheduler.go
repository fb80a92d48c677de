// Package retrysched requeues failed-but-retryable jobs with exponential
// backoff and moves due retries back into their priority/channel queues.
package retrysched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/pkg/retry"
	"github.com/pitchdesk/notify/internal/queue"
)

// Scheduler computes backoff and requeues retryable jobs onto the shared
// retry list.
type Scheduler struct {
	store   queue.Store
	backoff *retry.Backoff
	logger  *elog.Component
	now     func() time.Time
}

func NewScheduler(store queue.Store, backoff *retry.Backoff) *Scheduler {
	return &Scheduler{
		store:   store,
		backoff: backoff,
		logger:  elog.DefaultLogger,
		now:     time.Now,
	}
}

// ScheduleRetry pushes a new logical job for the next attempt. It returns
// the scheduled job, or ok=false when the attempt budget is exhausted and
// the failure is permanent. The prior job was already consumed by pop-once
// dequeue, so the (notification, channel) pair never has two live jobs.
func (s *Scheduler) ScheduleRetry(ctx context.Context, failed domain.QueueJob) (domain.QueueJob, bool, error) {
	if failed.Attempts >= failed.MaxAttempts {
		return domain.QueueJob{}, false, nil
	}
	nextAttempt := failed.Attempts + 1
	delay, ok := s.backoff.DelayForAttempt(nextAttempt)
	if !ok {
		return domain.QueueJob{}, false, nil
	}

	id, err := uuid.NewV4()
	if err != nil {
		return domain.QueueJob{}, false, err
	}
	next := failed
	next.ID = id.String()
	next.Attempts = nextAttempt
	// ScheduledAt is non-decreasing across retries of one logical delivery:
	// each delay is positive and grows with the attempt number.
	next.ScheduledAt = s.now().Add(delay)

	if err := s.store.Push(ctx, domain.RetryQueueName, next); err != nil {
		return domain.QueueJob{}, false, err
	}
	s.logger.Info("retry scheduled",
		elog.Int64("notificationID", int64(next.NotificationID)),
		elog.String("channel", string(next.Channel)),
		elog.Int("attempt", int(next.Attempts)),
		elog.Any("delay", delay.String()))
	return next, true, nil
}

// Mover periodically drains due jobs off the shared retry list back into
// their (priority, channel) queue. A not-yet-due head item is parked at the
// tail, accepting approximate time ordering.
type Mover struct {
	store     queue.Store
	batchSize int
	logger    *elog.Component
	now       func() time.Time
}

func NewMover(store queue.Store, batchSize int) *Mover {
	return &Mover{
		store:     store,
		batchSize: batchSize,
		logger:    elog.DefaultLogger,
		now:       time.Now,
	}
}

// MoveDue redistributes up to batchSize due retry jobs. It stops early on
// the first not-due head item or when the list drains.
func (m *Mover) MoveDue(ctx context.Context) (int, error) {
	moved := 0
	for i := 0; i < m.batchSize; i++ {
		job, err := m.store.Pop(ctx, domain.RetryQueueName)
		if err != nil {
			if errors.Is(err, errs.ErrQueueEmpty) {
				return moved, nil
			}
			return moved, err
		}
		if !job.Due(m.now()) {
			// Park it at the tail; a later pass will pick it up.
			if err := m.store.Push(ctx, domain.RetryQueueName, job); err != nil {
				return moved, fmt.Errorf("park retry job %s: %w", job.ID, err)
			}
			return moved, nil
		}
		if err := m.store.Push(ctx, job.QueueName(), job); err != nil {
			return moved, fmt.Errorf("move retry job %s: %w", job.ID, err)
		}
		moved++
	}
	return moved, nil
}
