package repository

import (
	"context"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/repository/dao"
)

// DeliveryRecordRepository tracks per-channel delivery state.
type DeliveryRecordRepository interface {
	// Ensure creates the (notification, channel) record if missing and
	// returns the row of record either way.
	Ensure(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error)
	GetByNotificationAndChannel(ctx context.Context, notificationID uint64, channel domain.Channel) (domain.DeliveryRecord, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (domain.DeliveryRecord, error)
	ListByNotification(ctx context.Context, notificationID uint64) ([]domain.DeliveryRecord, error)
	Update(ctx context.Context, record domain.DeliveryRecord) error
}

type deliveryRecordRepository struct {
	dao dao.DeliveryRecordDAO
}

func NewDeliveryRecordRepository(d dao.DeliveryRecordDAO) DeliveryRecordRepository {
	return &deliveryRecordRepository{dao: d}
}

func (r *deliveryRecordRepository) Ensure(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error) {
	data, err := r.dao.Upsert(ctx, r.toEntity(record))
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	return r.toDomain(data), nil
}

func (r *deliveryRecordRepository) GetByNotificationAndChannel(ctx context.Context, notificationID uint64, channel domain.Channel) (domain.DeliveryRecord, error) {
	data, err := r.dao.GetByNotificationAndChannel(ctx, notificationID, string(channel))
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	return r.toDomain(data), nil
}

func (r *deliveryRecordRepository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (domain.DeliveryRecord, error) {
	data, err := r.dao.GetByProviderMessageID(ctx, providerMessageID)
	if err != nil {
		return domain.DeliveryRecord{}, err
	}
	return r.toDomain(data), nil
}

func (r *deliveryRecordRepository) ListByNotification(ctx context.Context, notificationID uint64) ([]domain.DeliveryRecord, error) {
	list, err := r.dao.ListByNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.DeliveryRecord, 0, len(list))
	for i := range list {
		res = append(res, r.toDomain(list[i]))
	}
	return res, nil
}

func (r *deliveryRecordRepository) Update(ctx context.Context, record domain.DeliveryRecord) error {
	return r.dao.Update(ctx, r.toEntity(record))
}

func (r *deliveryRecordRepository) toEntity(rec domain.DeliveryRecord) dao.DeliveryRecord {
	return dao.DeliveryRecord{
		ID:                rec.ID,
		NotificationID:    rec.NotificationID,
		Channel:           string(rec.Channel),
		Status:            string(rec.Status),
		ProviderMessageID: rec.ProviderMessageID,
		Attempts:          rec.Attempts,
		MaxAttempts:       rec.MaxAttempts,
		LastError:         rec.LastError,
		SentAt:            unixMilliOrZero(rec.SentAt),
		DeliveredAt:       unixMilliOrZero(rec.DeliveredAt),
		ReadAt:            unixMilliOrZero(rec.ReadAt),
		ClickedAt:         unixMilliOrZero(rec.ClickedAt),
	}
}

func (r *deliveryRecordRepository) toDomain(rec dao.DeliveryRecord) domain.DeliveryRecord {
	return domain.DeliveryRecord{
		ID:                rec.ID,
		NotificationID:    rec.NotificationID,
		Channel:           domain.Channel(rec.Channel),
		Status:            domain.DeliveryStatus(rec.Status),
		ProviderMessageID: rec.ProviderMessageID,
		Attempts:          rec.Attempts,
		MaxAttempts:       rec.MaxAttempts,
		LastError:         rec.LastError,
		SentAt:            timeOrZero(rec.SentAt),
		DeliveredAt:       timeOrZero(rec.DeliveredAt),
		ReadAt:            timeOrZero(rec.ReadAt),
		ClickedAt:         timeOrZero(rec.ClickedAt),
		CreatedAt:         timeOrZero(rec.Ctime),
	}
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeOrZero(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis)
}
