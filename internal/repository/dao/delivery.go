package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ego-component/egorm"
	"github.com/pitchdesk/notify/internal/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryRecordDAO interface {
	// Upsert creates the (notification, channel) record on the first attempt
	// and returns the stored row on subsequent ones.
	Upsert(ctx context.Context, data DeliveryRecord) (DeliveryRecord, error)
	GetByID(ctx context.Context, id uint64) (DeliveryRecord, error)
	GetByNotificationAndChannel(ctx context.Context, notificationID uint64, channel string) (DeliveryRecord, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (DeliveryRecord, error)
	ListByNotification(ctx context.Context, notificationID uint64) ([]DeliveryRecord, error)
	// Update persists the mutable lifecycle fields of an existing record.
	Update(ctx context.Context, data DeliveryRecord) error
}

// DeliveryRecord is the per-channel attempt cycle table. One row per
// external channel a notification was routed to; never one for in-app.
type DeliveryRecord struct {
	ID                uint64 `gorm:"primaryKey;comment:'snowflake id'"`
	NotificationID    uint64 `gorm:"type:BIGINT UNSIGNED;NOT NULL;uniqueIndex:idx_notification_channel,priority:1"`
	Channel           string `gorm:"type:ENUM('email','push','sms');NOT NULL;uniqueIndex:idx_notification_channel,priority:2"`
	Status            string `gorm:"type:VARCHAR(16);NOT NULL;DEFAULT:'queued'"`
	ProviderMessageID string `gorm:"type:VARCHAR(128);index:idx_provider_message_id"`
	Attempts          int32  `gorm:"NOT NULL;DEFAULT:0"`
	MaxAttempts       int32  `gorm:"NOT NULL;DEFAULT:3"`
	LastError         string `gorm:"type:VARCHAR(1024)"`
	SentAt            int64  `gorm:"comment:'unix milli, zero until sent'"`
	DeliveredAt       int64
	ReadAt            int64
	ClickedAt         int64
	Ctime             int64
	Utime             int64
}

func (DeliveryRecord) TableName() string {
	return "delivery_records"
}

type deliveryRecordDAO struct {
	db *egorm.Component
}

func NewDeliveryRecordDAO(db *egorm.Component) DeliveryRecordDAO {
	return &deliveryRecordDAO{db: db}
}

func (d *deliveryRecordDAO) Upsert(ctx context.Context, data DeliveryRecord) (DeliveryRecord, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "notification_id"}, {Name: "channel"}},
			DoNothing: true,
		}).
		Create(&data).Error
	if err != nil {
		return DeliveryRecord{}, fmt.Errorf("insert delivery record: %w", err)
	}
	return d.GetByNotificationAndChannel(ctx, data.NotificationID, data.Channel)
}

func (d *deliveryRecordDAO) GetByID(ctx context.Context, id uint64) (DeliveryRecord, error) {
	var data DeliveryRecord
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeliveryRecord{}, fmt.Errorf("%w: id = %d", errs.ErrDeliveryRecordNotFound, id)
		}
		return DeliveryRecord{}, err
	}
	return data, nil
}

func (d *deliveryRecordDAO) GetByNotificationAndChannel(ctx context.Context, notificationID uint64, channel string) (DeliveryRecord, error) {
	var data DeliveryRecord
	err := d.db.WithContext(ctx).
		Where("notification_id = ? AND channel = ?", notificationID, channel).
		First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeliveryRecord{}, fmt.Errorf("%w: notification_id = %d, channel = %s",
				errs.ErrDeliveryRecordNotFound, notificationID, channel)
		}
		return DeliveryRecord{}, err
	}
	return data, nil
}

func (d *deliveryRecordDAO) GetByProviderMessageID(ctx context.Context, providerMessageID string) (DeliveryRecord, error) {
	var data DeliveryRecord
	err := d.db.WithContext(ctx).
		Where("provider_message_id = ?", providerMessageID).
		First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DeliveryRecord{}, fmt.Errorf("%w: provider_message_id = %q",
				errs.ErrDeliveryRecordNotFound, providerMessageID)
		}
		return DeliveryRecord{}, err
	}
	return data, nil
}

func (d *deliveryRecordDAO) ListByNotification(ctx context.Context, notificationID uint64) ([]DeliveryRecord, error) {
	var list []DeliveryRecord
	err := d.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Find(&list).Error
	return list, err
}

func (d *deliveryRecordDAO) Update(ctx context.Context, data DeliveryRecord) error {
	res := d.db.WithContext(ctx).Model(&DeliveryRecord{}).
		Where("id = ?", data.ID).
		Updates(map[string]any{
			"status":              data.Status,
			"provider_message_id": data.ProviderMessageID,
			"attempts":            data.Attempts,
			"last_error":          data.LastError,
			"sent_at":             data.SentAt,
			"delivered_at":        data.DeliveredAt,
			"read_at":             data.ReadAt,
			"clicked_at":          data.ClickedAt,
			"utime":               time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id = %d", errs.ErrDeliveryRecordNotFound, data.ID)
	}
	return nil
}
