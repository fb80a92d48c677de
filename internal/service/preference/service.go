// Package preference resolves per-user notification preferences and
// evaluates quiet hours.
package preference

import (
	"context"
	"fmt"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository"
)

// Service is the preference resolver.
type Service interface {
	// Resolve loads preferences, lazily creating the default row. A missing
	// row never fails the caller.
	Resolve(ctx context.Context, userID int64) (domain.Preferences, error)
	Update(ctx context.Context, userID int64, patch domain.PreferencesPatch) error
}

type service struct {
	repo repository.PreferenceRepository
}

func NewService(repo repository.PreferenceRepository) Service {
	return &service{repo: repo}
}

func (s *service) Resolve(ctx context.Context, userID int64) (domain.Preferences, error) {
	if userID <= 0 {
		return domain.Preferences{}, fmt.Errorf("%w: userID = %d", errs.ErrInvalidParameter, userID)
	}
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID int64, patch domain.PreferencesPatch) error {
	if userID <= 0 {
		return fmt.Errorf("%w: userID = %d", errs.ErrInvalidParameter, userID)
	}
	if patch.IsZero() {
		return fmt.Errorf("%w: empty preference patch", errs.ErrInvalidParameter)
	}
	if patch.QuietHoursStart != nil {
		if _, err := parseTimeOfDay(*patch.QuietHoursStart); err != nil {
			return err
		}
	}
	if patch.QuietHoursEnd != nil {
		if _, err := parseTimeOfDay(*patch.QuietHoursEnd); err != nil {
			return err
		}
	}
	if patch.Timezone != nil {
		if _, err := time.LoadLocation(*patch.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q", errs.ErrInvalidParameter, *patch.Timezone)
		}
	}
	// Ensure the row exists so a first-time update never 404s.
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, patch)
}

// IsQuietHours reports whether quiet hours suppress external channels at the
// given instant, evaluated in the preference's timezone. An overnight window
// (start > end, e.g. 22:00-06:00) holds when now >= start OR now <= end.
// Disabled quiet hours, missing bounds, or an unknown timezone yield false.
func IsQuietHours(prefs domain.Preferences, now time.Time) bool {
	if !prefs.QuietHoursEnabled || prefs.QuietHoursStart == "" || prefs.QuietHoursEnd == "" {
		return false
	}
	loc, err := time.LoadLocation(prefs.Timezone)
	if err != nil {
		return false
	}
	start, err := parseTimeOfDay(prefs.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseTimeOfDay(prefs.QuietHoursEnd)
	if err != nil {
		return false
	}

	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	if start > end {
		return cur >= start || cur <= end
	}
	return cur >= start && cur <= end
}

// parseTimeOfDay converts "HH:MM" to minutes since midnight.
func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("%w: time of day %q", errs.ErrInvalidParameter, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
