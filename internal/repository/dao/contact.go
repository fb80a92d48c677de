package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/ego-component/egorm"
	"github.com/pitchdesk/notify/internal/errs"
	"gorm.io/gorm"
)

type ContactDAO interface {
	GetByUserID(ctx context.Context, userID int64) (Contact, error)
}

// Contact is the read-only projection of user reachability the platform
// maintains for the pipeline: verified email, phone and push tokens.
type Contact struct {
	UserID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Email        string `gorm:"type:VARCHAR(256)"`
	Phone        string `gorm:"type:VARCHAR(32)"`
	DeviceTokens string `gorm:"type:TEXT;comment:'JSON array of push tokens'"`
	Ctime        int64
	Utime        int64
}

func (Contact) TableName() string {
	return "user_contacts"
}

type contactDAO struct {
	db *egorm.Component
}

func NewContactDAO(db *egorm.Component) ContactDAO {
	return &contactDAO{db: db}
}

func (d *contactDAO) GetByUserID(ctx context.Context, userID int64) (Contact, error) {
	var data Contact
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&data).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Contact{}, fmt.Errorf("%w: user_id = %d", errs.ErrMissingDestination, userID)
		}
		return Contact{}, err
	}
	return data, nil
}
