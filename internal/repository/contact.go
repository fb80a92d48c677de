package repository

import (
	"context"
	"encoding/json"

	"github.com/pitchdesk/notify/internal/repository/dao"
)

// UserContact is the destination info a dispatcher needs.
type UserContact struct {
	UserID       int64
	Email        string
	Phone        string
	DeviceTokens []string
}

// ContactRepository resolves user destinations. The underlying table is a
// projection the marketplace platform maintains; this pipeline only reads it.
type ContactRepository interface {
	GetByUserID(ctx context.Context, userID int64) (UserContact, error)
}

type contactRepository struct {
	dao dao.ContactDAO
}

func NewContactRepository(d dao.ContactDAO) ContactRepository {
	return &contactRepository{dao: d}
}

func (r *contactRepository) GetByUserID(ctx context.Context, userID int64) (UserContact, error) {
	data, err := r.dao.GetByUserID(ctx, userID)
	if err != nil {
		return UserContact{}, err
	}
	var tokens []string
	if data.DeviceTokens != "" {
		_ = json.Unmarshal([]byte(data.DeviceTokens), &tokens)
	}
	return UserContact{
		UserID:       data.UserID,
		Email:        data.Email,
		Phone:        data.Phone,
		DeviceTokens: tokens,
	}, nil
}
