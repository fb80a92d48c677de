// Package realtime fans in-app notifications out to a user's active
// sessions. Delivery is best effort: the notification row is already
// durable, so a missed publish only delays the inbox badge until the next
// poll.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Gateway publishes one notification to a user's live sessions.
type Gateway interface {
	Publish(ctx context.Context, notification domain.Notification) error
}

// redisGateway publishes to the per-user channel the websocket edge
// subscribes to. Session bookkeeping lives at the edge, not here.
type redisGateway struct {
	client redis.Cmdable
}

func NewRedisGateway(client redis.Cmdable) Gateway {
	return &redisGateway{client: client}
}

type event struct {
	ID        uint64                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Priority  domain.Priority         `json:"priority"`
	ActionURL string                  `json:"actionUrl,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

func (g *redisGateway) Publish(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(event{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Priority:  n.Priority,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return err
	}
	return g.client.Publish(ctx, g.channel(n.UserID), data).Err()
}

func (g *redisGateway) channel(userID int64) string {
	return fmt.Sprintf("notify:sessions:%d", userID)
}
