package local

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository/cache"
)

// Short TTL: the local layer only absorbs read bursts between redis hits.
const (
	defaultTTL      = time.Minute
	cleanupInterval = 5 * time.Minute
)

type preferenceCache struct {
	store *gocache.Cache
}

func NewPreferenceCache() cache.PreferenceCache {
	return &preferenceCache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (c *preferenceCache) Get(_ context.Context, userID int64) (domain.Preferences, error) {
	val, ok := c.store.Get(c.key(userID))
	if !ok {
		return domain.Preferences{}, fmt.Errorf("%w: user_id = %d", errs.ErrPreferencesNotFound, userID)
	}
	prefs, ok := val.(domain.Preferences)
	if !ok {
		return domain.Preferences{}, fmt.Errorf("%w: unexpected cached type", errs.ErrPreferencesNotFound)
	}
	return prefs, nil
}

func (c *preferenceCache) Set(_ context.Context, prefs domain.Preferences) error {
	c.store.Set(c.key(prefs.UserID), prefs, gocache.DefaultExpiration)
	return nil
}

func (c *preferenceCache) Del(_ context.Context, userID int64) error {
	c.store.Delete(c.key(userID))
	return nil
}

func (c *preferenceCache) key(userID int64) string {
	return fmt.Sprintf("prefs:%d", userID)
}
