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

type PreferenceDAO interface {
	GetByUserID(ctx context.Context, userID int64) (Preference, error)
	// CreateDefault inserts the row if missing and returns the stored state
	// either way, so concurrent first reads never fail.
	CreateDefault(ctx context.Context, data Preference) (Preference, error)
	// Update applies a partial update through one fixed parameterized UPDATE
	// over the enumerated column list; nil patch fields keep current values.
	Update(ctx context.Context, userID int64, patch PreferencePatch) error
}

// Preference is one row per user; lazily created with safe defaults.
type Preference struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`

	Email bool `gorm:"NOT NULL;DEFAULT:true"`
	Push  bool `gorm:"NOT NULL;DEFAULT:true"`
	SMS   bool `gorm:"NOT NULL;DEFAULT:false"`
	InApp bool `gorm:"NOT NULL;DEFAULT:true"`

	NDA         bool `gorm:"column:nda;NOT NULL;DEFAULT:true"`
	Investment  bool `gorm:"NOT NULL;DEFAULT:true"`
	Message     bool `gorm:"NOT NULL;DEFAULT:true"`
	PitchUpdate bool `gorm:"NOT NULL;DEFAULT:true"`
	System      bool `gorm:"NOT NULL;DEFAULT:true"`
	Marketing   bool `gorm:"NOT NULL;DEFAULT:true"`

	QuietHoursEnabled bool   `gorm:"NOT NULL;DEFAULT:false"`
	QuietHoursStart   string `gorm:"type:VARCHAR(5);comment:'HH:MM local time'"`
	QuietHoursEnd     string `gorm:"type:VARCHAR(5);comment:'HH:MM local time'"`
	Timezone          string `gorm:"type:VARCHAR(64);NOT NULL;DEFAULT:'UTC'"`

	Digest string `gorm:"type:ENUM('instant','hourly','daily','weekly');NOT NULL;DEFAULT:'instant'"`

	Ctime int64
	Utime int64
}

func (Preference) TableName() string {
	return "notification_preferences"
}

// PreferencePatch mirrors domain.PreferencesPatch at the storage boundary.
type PreferencePatch struct {
	Email *bool
	Push  *bool
	SMS   *bool
	InApp *bool

	NDA         *bool
	Investment  *bool
	Message     *bool
	PitchUpdate *bool
	System      *bool
	Marketing   *bool

	QuietHoursEnabled *bool
	QuietHoursStart   *string
	QuietHoursEnd     *string
	Timezone          *string

	Digest *string
}

type preferenceDAO struct {
	db *egorm.Component
}

func NewPreferenceDAO(db *egorm.Component) PreferenceDAO {
	return &preferenceDAO{db: db}
}

func (d *preferenceDAO) GetByUserID(ctx context.Context, userID int64) (Preference, error) {
	var data Preference
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Preference{}, fmt.Errorf("%w: user_id = %d", errs.ErrPreferencesNotFound, userID)
		}
		return Preference{}, err
	}
	return data, nil
}

func (d *preferenceDAO) CreateDefault(ctx context.Context, data Preference) (Preference, error) {
	now := time.Now().UnixMilli()
	data.Ctime, data.Utime = now, now
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&data).Error
	if err != nil {
		return Preference{}, fmt.Errorf("insert default preferences: %w", err)
	}
	// A concurrent writer may have won the insert; read back the row of record.
	return d.GetByUserID(ctx, data.UserID)
}

func (d *preferenceDAO) Update(ctx context.Context, userID int64, patch PreferencePatch) error {
	// COALESCE over the full enumerated column list keeps the statement
	// fixed regardless of which patch fields are set.
	res := d.db.WithContext(ctx).Exec(
		"UPDATE `notification_preferences` SET "+
			"`email` = COALESCE(?, `email`), "+
			"`push` = COALESCE(?, `push`), "+
			"`sms` = COALESCE(?, `sms`), "+
			"`in_app` = COALESCE(?, `in_app`), "+
			"`nda` = COALESCE(?, `nda`), "+
			"`investment` = COALESCE(?, `investment`), "+
			"`message` = COALESCE(?, `message`), "+
			"`pitch_update` = COALESCE(?, `pitch_update`), "+
			"`system` = COALESCE(?, `system`), "+
			"`marketing` = COALESCE(?, `marketing`), "+
			"`quiet_hours_enabled` = COALESCE(?, `quiet_hours_enabled`), "+
			"`quiet_hours_start` = COALESCE(?, `quiet_hours_start`), "+
			"`quiet_hours_end` = COALESCE(?, `quiet_hours_end`), "+
			"`timezone` = COALESCE(?, `timezone`), "+
			"`digest` = COALESCE(?, `digest`), "+
			"`utime` = ? WHERE `user_id` = ?",
		patch.Email, patch.Push, patch.SMS, patch.InApp,
		patch.NDA, patch.Investment, patch.Message, patch.PitchUpdate,
		patch.System, patch.Marketing,
		patch.QuietHoursEnabled, patch.QuietHoursStart, patch.QuietHoursEnd,
		patch.Timezone, patch.Digest,
		time.Now().UnixMilli(), userID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero affected rows for a same-values update, so the
		// count alone cannot distinguish "no row" from "nothing changed".
		var count int64
		if err := d.db.WithContext(ctx).Model(&Preference{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: user_id = %d", errs.ErrPreferencesNotFound, userID)
		}
	}
	return nil
}
