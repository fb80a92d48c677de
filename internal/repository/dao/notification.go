package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ego-component/egorm"
	"github.com/pitchdesk/notify/internal/errs"
	"gorm.io/gorm"
)

type NotificationDAO interface {
	// Create inserts one notification row. Durability precedes any dispatch.
	Create(ctx context.Context, data Notification) (Notification, error)
	GetByID(ctx context.Context, id uint64) (Notification, error)
	// MarkRead sets the read flag once; replays are no-ops and the original
	// read timestamp is preserved.
	MarkRead(ctx context.Context, id uint64, userID int64, readAt int64) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
}

// Notification is the notification table.
type Notification struct {
	ID           uint64 `gorm:"primaryKey;comment:'snowflake id'"`
	UserID       int64  `gorm:"type:BIGINT;NOT NULL;index:idx_user_read,priority:1;comment:'owning user'"`
	Type         string `gorm:"type:VARCHAR(32);NOT NULL;comment:'event type'"`
	Title        string `gorm:"type:VARCHAR(256);NOT NULL"`
	Message      string `gorm:"type:TEXT;NOT NULL"`
	Priority     string `gorm:"type:ENUM('low','normal','high','urgent');NOT NULL;DEFAULT:'normal'"`
	RelatedPitch int64  `gorm:"type:BIGINT;comment:'optional related pitch'"`
	RelatedUser  int64  `gorm:"type:BIGINT;comment:'optional related user'"`
	ActionURL    string `gorm:"type:VARCHAR(512)"`
	ExpiresAt    int64  `gorm:"comment:'unix milli, zero means no expiry'"`
	Metadata     string `gorm:"type:TEXT;comment:'JSON object'"`
	Read         bool   `gorm:"NOT NULL;DEFAULT:false;index:idx_user_read,priority:2"`
	ReadAt       int64  `gorm:"comment:'unix milli, zero until read'"`
	Ctime        int64
	Utime        int64
}

func (Notification) TableName() string {
	return "notifications"
}

type notificationDAO struct {
	db *egorm.Component
}

func NewNotificationDAO(db *egorm.Component) NotificationDAO {
	return &notificationDAO{db: db}
}

func (d *notificationDAO) Create(ctx context.Context, data Notification) (Notification, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	if err := d.db.WithContext(ctx).Create(&data).Error; err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return data, nil
}

func (d *notificationDAO) GetByID(ctx context.Context, id uint64) (Notification, error) {
	var data Notification
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Notification{}, fmt.Errorf("%w: id = %d", errs.ErrNotificationNotFound, id)
		}
		return Notification{}, err
	}
	return data, nil
}

func (d *notificationDAO) MarkRead(ctx context.Context, id uint64, userID int64, readAt int64) error {
	// The `read = false` guard makes replays no-ops without a prior SELECT.
	res := d.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ? AND `read` = ?", id, userID, false).
		Updates(map[string]any{
			"read":    true,
			"read_at": readAt,
			"utime":   readAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already read, or not this user's notification. Distinguish so the
		// caller can reject foreign ids while staying idempotent.
		var count int64
		if err := d.db.WithContext(ctx).Model(&Notification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: id = %d", errs.ErrNotificationNotFound, id)
		}
	}
	return nil
}

func (d *notificationDAO) ListByUser(ctx context.Context, userID int64, unreadOnly bool, offset, limit int) ([]Notification, error) {
	var list []Notification
	query := d.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("`read` = ?", false)
	}
	err := query.Order("ctime DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, err
}

func (d *notificationDAO) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		Count(&count).Error
	return count, err
}
