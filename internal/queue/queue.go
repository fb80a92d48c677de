// Package queue implements the priority queue store: 4 priority tiers × 3
// external channels as independent FIFO lists, plus one shared retry list.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/redis/go-redis/v9"
)

// Store is the queue-store contract: push to tail, pop from head, depth
// query. Pop-once semantics give each dequeued job exactly one owner.
type Store interface {
	Push(ctx context.Context, queue string, jobs ...domain.QueueJob) error
	// Pop removes and returns the head job. errs.ErrQueueEmpty when the
	// list is empty.
	Pop(ctx context.Context, queue string) (domain.QueueJob, error)
	Len(ctx context.Context, queue string) (int64, error)
}

type redisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Push(ctx context.Context, queue string, jobs ...domain.QueueJob) error {
	if len(jobs) == 0 {
		return nil
	}
	vals := make([]any, 0, len(jobs))
	for i := range jobs {
		data, err := json.Marshal(jobs[i])
		if err != nil {
			return fmt.Errorf("%w: marshal queue job: %w", errs.ErrInvalidParameter, err)
		}
		vals = append(vals, data)
	}
	if err := s.client.RPush(ctx, queue, vals...).Err(); err != nil {
		return fmt.Errorf("%w: push %s: %w", errs.ErrStoreUnavailable, queue, err)
	}
	return nil
}

func (s *redisStore) Pop(ctx context.Context, queue string) (domain.QueueJob, error) {
	val, err := s.client.LPop(ctx, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.QueueJob{}, fmt.Errorf("%w: %s", errs.ErrQueueEmpty, queue)
		}
		return domain.QueueJob{}, fmt.Errorf("%w: pop %s: %w", errs.ErrStoreUnavailable, queue, err)
	}
	var job domain.QueueJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return domain.QueueJob{}, fmt.Errorf("unmarshal queue job from %s: %w", queue, err)
	}
	return job, nil
}

func (s *redisStore) Len(ctx context.Context, queue string) (int64, error) {
	n, err := s.client.LLen(ctx, queue).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: len %s: %w", errs.ErrStoreUnavailable, queue, err)
	}
	return n, nil
}
