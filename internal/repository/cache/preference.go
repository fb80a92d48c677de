package cache

import (
	"context"

	"github.com/pitchdesk/notify/internal/domain"
)

// PreferenceCache fronts the preference table. Implementations may serve
// stale state up to their TTL; writers must call Del to invalidate.
type PreferenceCache interface {
	Get(ctx context.Context, userID int64) (domain.Preferences, error)
	Set(ctx context.Context, prefs domain.Preferences) error
	Del(ctx context.Context, userID int64) error
}
