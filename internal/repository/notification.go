package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/repository/dao"
)

// NotificationRepository persists notifications and their read state.
type NotificationRepository interface {
	Create(ctx context.Context, notification domain.Notification) (domain.Notification, error)
	GetByID(ctx context.Context, id uint64) (domain.Notification, error)
	MarkRead(ctx context.Context, id uint64, userID int64, readAt time.Time) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

type notificationRepository struct {
	dao dao.NotificationDAO
}

func NewNotificationRepository(d dao.NotificationDAO) NotificationRepository {
	return &notificationRepository{dao: d}
}

func (r *notificationRepository) Create(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	created, err := r.dao.Create(ctx, r.toEntity(notification))
	if err != nil {
		return domain.Notification{}, err
	}
	return r.toDomain(created), nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint64) (domain.Notification, error) {
	data, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Notification{}, err
	}
	return r.toDomain(data), nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uint64, userID int64, readAt time.Time) error {
	return r.dao.MarkRead(ctx, id, userID, readAt.UnixMilli())
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]domain.Notification, error) {
	list, err := r.dao.ListByUser(ctx, userID, unreadOnly, offset, limit)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(list))
	for i := range list {
		res = append(res, r.toDomain(list[i]))
	}
	return res, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	return r.dao.CountUnread(ctx, userID)
}

func (r *notificationRepository) toEntity(n domain.Notification) dao.Notification {
	var metadata string
	if len(n.Metadata) > 0 {
		if data, err := json.Marshal(n.Metadata); err == nil {
			metadata = string(data)
		}
	}
	var expiresAt int64
	if !n.ExpiresAt.IsZero() {
		expiresAt = n.ExpiresAt.UnixMilli()
	}
	return dao.Notification{
		ID:           n.ID,
		UserID:       n.UserID,
		Type:         string(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		Priority:     string(n.Priority),
		RelatedPitch: n.RelatedPitch,
		RelatedUser:  n.RelatedUser,
		ActionURL:    n.ActionURL,
		ExpiresAt:    expiresAt,
		Metadata:     metadata,
	}
}

func (r *notificationRepository) toDomain(n dao.Notification) domain.Notification {
	var metadata map[string]string
	if n.Metadata != "" {
		_ = json.Unmarshal([]byte(n.Metadata), &metadata)
	}
	res := domain.Notification{
		ID:           n.ID,
		UserID:       n.UserID,
		Type:         domain.NotificationType(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		Priority:     domain.Priority(n.Priority),
		RelatedPitch: n.RelatedPitch,
		RelatedUser:  n.RelatedUser,
		ActionURL:    n.ActionURL,
		Metadata:     metadata,
		Read:         n.Read,
		CreatedAt:    time.UnixMilli(n.Ctime),
	}
	if n.ExpiresAt > 0 {
		res.ExpiresAt = time.UnixMilli(n.ExpiresAt)
	}
	if n.ReadAt > 0 {
		res.ReadAt = time.UnixMilli(n.ReadAt)
	}
	return res
}
