package repository

import (
	"context"
	"errors"

	"github.com/gotomicro/ego/core/elog"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository/cache"
	"github.com/pitchdesk/notify/internal/repository/dao"
)

// PreferenceRepository loads and mutates per-user preferences with a local
// cache in front of redis in front of the table. Writes invalidate both
// cache layers.
type PreferenceRepository interface {
	// GetOrCreate loads preferences, lazily creating the default row on
	// first access. It never fails a caller merely because no row exists.
	GetOrCreate(ctx context.Context, userID int64) (domain.Preferences, error)
	Update(ctx context.Context, userID int64, patch domain.PreferencesPatch) error
}

type preferenceRepository struct {
	dao    dao.PreferenceDAO
	rcache cache.PreferenceCache
	local  cache.PreferenceCache
	logger *elog.Component
}

func NewPreferenceRepository(d dao.PreferenceDAO, rcache, local cache.PreferenceCache) PreferenceRepository {
	return &preferenceRepository{
		dao:    d,
		rcache: rcache,
		local:  local,
		logger: elog.DefaultLogger,
	}
}

func (r *preferenceRepository) GetOrCreate(ctx context.Context, userID int64) (domain.Preferences, error) {
	if prefs, err := r.local.Get(ctx, userID); err == nil {
		return prefs, nil
	}
	if prefs, err := r.rcache.Get(ctx, userID); err == nil {
		if err := r.local.Set(ctx, prefs); err != nil {
			r.logger.Warn("fill local preference cache failed", elog.FieldErr(err))
		}
		return prefs, nil
	}

	data, err := r.dao.GetByUserID(ctx, userID)
	if errors.Is(err, errs.ErrPreferencesNotFound) {
		data, err = r.dao.CreateDefault(ctx, r.toEntity(domain.DefaultPreferences(userID)))
	}
	if err != nil {
		return domain.Preferences{}, err
	}

	prefs := r.toDomain(data)
	r.fillCaches(ctx, prefs)
	return prefs, nil
}

func (r *preferenceRepository) Update(ctx context.Context, userID int64, patch domain.PreferencesPatch) error {
	if err := r.dao.Update(ctx, userID, r.toPatchEntity(patch)); err != nil {
		return err
	}
	// Invalidate after write; the next read refills from the table.
	if err := r.rcache.Del(ctx, userID); err != nil {
		r.logger.Warn("invalidate redis preference cache failed",
			elog.Int64("userID", userID), elog.FieldErr(err))
	}
	if err := r.local.Del(ctx, userID); err != nil {
		r.logger.Warn("invalidate local preference cache failed",
			elog.Int64("userID", userID), elog.FieldErr(err))
	}
	return nil
}

func (r *preferenceRepository) fillCaches(ctx context.Context, prefs domain.Preferences) {
	if err := r.rcache.Set(ctx, prefs); err != nil {
		r.logger.Warn("fill redis preference cache failed", elog.FieldErr(err))
	}
	if err := r.local.Set(ctx, prefs); err != nil {
		r.logger.Warn("fill local preference cache failed", elog.FieldErr(err))
	}
}

func (r *preferenceRepository) toEntity(p domain.Preferences) dao.Preference {
	return dao.Preference{
		UserID:            p.UserID,
		Email:             p.Email,
		Push:              p.Push,
		SMS:               p.SMS,
		InApp:             p.InApp,
		NDA:               p.NDA,
		Investment:        p.Investment,
		Message:           p.Message,
		PitchUpdate:       p.PitchUpdate,
		System:            p.System,
		Marketing:         p.Marketing,
		QuietHoursEnabled: p.QuietHoursEnabled,
		QuietHoursStart:   p.QuietHoursStart,
		QuietHoursEnd:     p.QuietHoursEnd,
		Timezone:          p.Timezone,
		Digest:            string(p.Digest),
	}
}

func (r *preferenceRepository) toDomain(p dao.Preference) domain.Preferences {
	return domain.Preferences{
		UserID:            p.UserID,
		Email:             p.Email,
		Push:              p.Push,
		SMS:               p.SMS,
		InApp:             p.InApp,
		NDA:               p.NDA,
		Investment:        p.Investment,
		Message:           p.Message,
		PitchUpdate:       p.PitchUpdate,
		System:            p.System,
		Marketing:         p.Marketing,
		QuietHoursEnabled: p.QuietHoursEnabled,
		QuietHoursStart:   p.QuietHoursStart,
		QuietHoursEnd:     p.QuietHoursEnd,
		Timezone:          p.Timezone,
		Digest:            domain.DigestFrequency(p.Digest),
	}
}

func (r *preferenceRepository) toPatchEntity(p domain.PreferencesPatch) dao.PreferencePatch {
	var digest *string
	if p.Digest != nil {
		s := string(*p.Digest)
		digest = &s
	}
	return dao.PreferencePatch{
		Email:             p.Email,
		Push:              p.Push,
		SMS:               p.SMS,
		InApp:             p.InApp,
		NDA:               p.NDA,
		Investment:        p.Investment,
		Message:           p.Message,
		PitchUpdate:       p.PitchUpdate,
		System:            p.System,
		Marketing:         p.Marketing,
		QuietHoursEnabled: p.QuietHoursEnabled,
		QuietHoursStart:   p.QuietHoursStart,
		QuietHoursEnd:     p.QuietHoursEnd,
		Timezone:          p.Timezone,
		Digest:            digest,
	}
}
