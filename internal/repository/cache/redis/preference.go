package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/repository/cache"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

type preferenceCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewPreferenceCache(client redis.Cmdable) cache.PreferenceCache {
	return &preferenceCache{
		client: client,
		ttl:    defaultTTL,
	}
}

func (c *preferenceCache) Get(ctx context.Context, userID int64) (domain.Preferences, error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Preferences{}, fmt.Errorf("%w: user_id = %d", errs.ErrPreferencesNotFound, userID)
		}
		return domain.Preferences{}, err
	}
	var prefs domain.Preferences
	if err := json.Unmarshal([]byte(val), &prefs); err != nil {
		return domain.Preferences{}, err
	}
	return prefs, nil
}

func (c *preferenceCache) Set(ctx context.Context, prefs domain.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(prefs.UserID), data, c.ttl).Err()
}

func (c *preferenceCache) Del(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *preferenceCache) key(userID int64) string {
	return fmt.Sprintf("notify:prefs:%d", userID)
}
