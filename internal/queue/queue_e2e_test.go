//go:build e2e

package queue

import (
	"testing"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisStoreTestSuite struct {
	suite.Suite
	client *redis.Client
	store  Store
}

func (s *RedisStoreTestSuite) SetupSuite() {
	s.client = redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	s.store = NewRedisStore(s.client)
}

func (s *RedisStoreTestSuite) TearDownSuite() {
	s.client.FlushDB(s.T().Context())
	s.client.Close()
}

func (s *RedisStoreTestSuite) SetupTest() {
	s.client.FlushDB(s.T().Context())
}

func (s *RedisStoreTestSuite) job(id string) domain.QueueJob {
	return domain.QueueJob{
		ID:             id,
		NotificationID: 100,
		UserID:         42,
		Channel:        domain.ChannelEmail,
		Priority:       domain.PriorityNormal,
		ScheduledAt:    time.Now().Truncate(time.Millisecond),
		Attempts:       1,
		MaxAttempts:    3,
		Payload: domain.JobPayload{
			Title:   "hello",
			Message: "world",
		},
	}
}

func (s *RedisStoreTestSuite) TestPushPopRoundTrip() {
	queueName := domain.QueueName(domain.PriorityNormal, domain.ChannelEmail)
	pushed := s.job("j1")

	s.NoError(s.store.Push(s.T().Context(), queueName, pushed))

	popped, err := s.store.Pop(s.T().Context(), queueName)
	s.NoError(err)
	s.Equal(pushed.ID, popped.ID)
	s.Equal(pushed.NotificationID, popped.NotificationID)
	s.Equal(pushed.Payload, popped.Payload)
	s.True(pushed.ScheduledAt.Equal(popped.ScheduledAt))
}

func (s *RedisStoreTestSuite) TestFIFOOrder() {
	queueName := domain.QueueName(domain.PriorityHigh, domain.ChannelPush)
	s.NoError(s.store.Push(s.T().Context(), queueName, s.job("first"), s.job("second"), s.job("third")))

	for _, want := range []string{"first", "second", "third"} {
		job, err := s.store.Pop(s.T().Context(), queueName)
		s.NoError(err)
		s.Equal(want, job.ID)
	}
}

func (s *RedisStoreTestSuite) TestPopEmpty() {
	_, err := s.store.Pop(s.T().Context(), "notify:queue:low:sms")
	s.ErrorIs(err, errs.ErrQueueEmpty)
}

func (s *RedisStoreTestSuite) TestLen() {
	queueName := domain.QueueName(domain.PriorityLow, domain.ChannelSMS)
	depth, err := s.store.Len(s.T().Context(), queueName)
	s.NoError(err)
	s.Zero(depth)

	s.NoError(s.store.Push(s.T().Context(), queueName, s.job("j1"), s.job("j2")))
	depth, err = s.store.Len(s.T().Context(), queueName)
	s.NoError(err)
	s.EqualValues(2, depth)
}

func (s *RedisStoreTestSuite) TestQueuesAreIndependent() {
	s.NoError(s.store.Push(s.T().Context(), domain.QueueName(domain.PriorityUrgent, domain.ChannelEmail), s.job("urgent")))

	_, err := s.store.Pop(s.T().Context(), domain.QueueName(domain.PriorityLow, domain.ChannelEmail))
	s.ErrorIs(err, errs.ErrQueueEmpty)
}

func TestRedisStore(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}
