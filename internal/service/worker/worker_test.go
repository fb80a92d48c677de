package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/pkg/retry"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/pitchdesk/notify/internal/service/retrysched"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	lists   map[string][]domain.QueueJob
	pushErr map[string]error // per queue
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lists:   make(map[string][]domain.QueueJob),
		pushErr: make(map[string]error),
	}
}

func (f *fakeStore) Push(_ context.Context, queue string, jobs ...domain.QueueJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pushErr[queue]; err != nil {
		return err
	}
	f.lists[queue] = append(f.lists[queue], jobs...)
	return nil
}

func (f *fakeStore) Pop(_ context.Context, queue string) (domain.QueueJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[queue]
	if len(list) == 0 {
		return domain.QueueJob{}, errs.ErrQueueEmpty
	}
	job := list[0]
	f.lists[queue] = list[1:]
	return job, nil
}

func (f *fakeStore) Len(_ context.Context, queue string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[queue])), nil
}

func (f *fakeStore) depth(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[queue])
}

type fakeDispatcher struct {
	mu    sync.Mutex
	sent  []domain.QueueJob
	err   error
	errBy map[string]error // per job id
}

func (f *fakeDispatcher) Send(_ context.Context, job domain.QueueJob) (domain.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errBy[job.ID]; ok {
		return domain.SendResponse{}, err
	}
	if f.err != nil {
		return domain.SendResponse{}, f.err
	}
	f.sent = append(f.sent, job)
	return domain.SendResponse{ProviderMessageID: "prov-" + job.ID}, nil
}

type fakeTracker struct {
	mu        sync.Mutex
	beginErr  error
	sentErr   error
	failErr   error
	sent      []string
	failed    []string
	terminals map[uint64]bool
}

func (f *fakeTracker) BeginAttempt(_ context.Context, job domain.QueueJob) (domain.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return domain.DeliveryRecord{}, f.beginErr
	}
	if f.terminals[job.NotificationID] {
		return domain.DeliveryRecord{}, errs.ErrTerminalState
	}
	return domain.DeliveryRecord{
		NotificationID: job.NotificationID,
		Channel:        job.Channel,
		Status:         domain.DeliveryStatusSending,
		Attempts:       job.Attempts,
		MaxAttempts:    job.MaxAttempts,
	}, nil
}

func (f *fakeTracker) MarkSent(_ context.Context, record domain.DeliveryRecord, providerMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sentErr != nil {
		return f.sentErr
	}
	f.sent = append(f.sent, providerMessageID)
	return nil
}

func (f *fakeTracker) MarkFailed(_ context.Context, record domain.DeliveryRecord, sendErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.failed = append(f.failed, sendErr.Error())
	return nil
}

func (f *fakeTracker) HandleProviderEvent(_ context.Context, _ string, _ domain.ProviderEvent) error {
	return nil
}

func (f *fakeTracker) AnnotateRead(_ context.Context, _ uint64) error    { return nil }
func (f *fakeTracker) AnnotateClicked(_ context.Context, _ uint64) error { return nil }

type workerFixture struct {
	worker     *Worker
	store      *fakeStore
	dispatcher *fakeDispatcher
	tracker    *fakeTracker
	metrics    *metrics.WorkerMetrics
	now        time.Time
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	store := newFakeStore()
	dispatcher := &fakeDispatcher{errBy: make(map[string]error)}
	trackerSvc := &fakeTracker{terminals: make(map[uint64]bool)}
	workerMetrics := metrics.NewWorkerMetrics(prometheus.NewRegistry())

	backoff, err := retry.NewBackoff(retry.Config{
		InitialInterval: 30 * time.Second,
		MaxInterval:     10 * time.Minute,
		MaxAttempts:     3,
	})
	require.NoError(t, err)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	scheduler := retrysched.NewScheduler(store, backoff)
	mover := retrysched.NewMover(store, 16)

	w := New(Config{BatchSize: 16, Concurrency: 4}, store, dispatcher, trackerSvc, scheduler, mover, workerMetrics)
	w.now = func() time.Time { return now }
	return &workerFixture{
		worker:     w,
		store:      store,
		dispatcher: dispatcher,
		tracker:    trackerSvc,
		metrics:    workerMetrics,
		now:        now,
	}
}

func queuedJob(id string, notificationID uint64, attempts int32) domain.QueueJob {
	return domain.QueueJob{
		ID:             id,
		NotificationID: notificationID,
		UserID:         42,
		Channel:        domain.ChannelEmail,
		Priority:       domain.PriorityNormal,
		Attempts:       attempts,
		MaxAttempts:    3,
	}
}

func TestTickProcessesQueuedJobs(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, []string{"prov-j1"}, f.tracker.sent)
	assert.Zero(t, f.store.depth(job.QueueName()))
	snap := f.metrics.Snapshot(nil)
	assert.EqualValues(t, 1, snap.Processed)
	assert.Zero(t, snap.Failed)
}

func TestFailedJobIsRetriedWithBackoff(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	f.dispatcher.errBy["j1"] = errors.New("gateway 502")
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Equal(t, []string{"gateway 502"}, f.tracker.failed)
	require.Equal(t, 1, f.store.depth(domain.RetryQueueName))
	next, err := f.store.Pop(context.Background(), domain.RetryQueueName)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Attempts)
	// The scheduler clocks the delay off wall time.
	assert.WithinDuration(t, time.Now().Add(time.Minute), next.ScheduledAt, 10*time.Second,
		"attempt 2 waits 2x the initial interval")

	snap := f.metrics.Snapshot(nil)
	assert.EqualValues(t, 1, snap.Failed)
	assert.EqualValues(t, 1, snap.Retried)
}

func TestExhaustedJobIsNotRetried(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 3)
	f.dispatcher.errBy["j1"] = errors.New("still down")
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Len(t, f.tracker.failed, 1)
	assert.Zero(t, f.store.depth(domain.RetryQueueName), "budget exhausted, failure is permanent")
	snap := f.metrics.Snapshot(nil)
	assert.Zero(t, snap.Retried)
}

func TestTerminalJobIsDropped(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	f.tracker.terminals[100] = true
	job := queuedJob("j1", 100, 2)
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Empty(t, f.dispatcher.sent, "terminal deliveries never reach a provider")
	assert.Zero(t, f.store.depth(job.QueueName()))
	assert.Zero(t, f.store.depth(domain.RetryQueueName))
}

func TestBeginAttemptStoreErrorRequeuesJob(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	f.tracker.beginErr = errs.ErrStoreUnavailable
	job := queuedJob("j1", 100, 1)
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	err := f.worker.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.store.depth(job.QueueName()), "the job goes back so nothing is lost")
	assert.Empty(t, f.dispatcher.sent)
}

func TestMarkFailedStoreErrorRequeuesJob(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	f.dispatcher.errBy["j1"] = errors.New("gateway 502")
	f.tracker.failErr = errs.ErrStoreUnavailable
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	err := f.worker.Tick(context.Background())
	require.Error(t, err)
	// The delivery still has retry budget; it must not evaporate just
	// because the failure could not be recorded.
	assert.Equal(t, 1, f.store.depth(job.QueueName()))
	assert.Zero(t, f.store.depth(domain.RetryQueueName))
}

func TestMarkSentStoreErrorRequeuesJob(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	f.tracker.sentErr = errs.ErrStoreUnavailable
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	err := f.worker.Tick(context.Background())
	require.Error(t, err)
	// Replaying the job repairs the record stuck in sending; the possible
	// duplicate send is the at-least-once trade-off.
	assert.Equal(t, 1, f.store.depth(job.QueueName()))
}

func TestScheduleRetryStoreErrorRequeuesJob(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	f.dispatcher.errBy["j1"] = errors.New("gateway 502")
	f.store.pushErr[domain.RetryQueueName] = errs.ErrStoreUnavailable
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))

	err := f.worker.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"gateway 502"}, f.tracker.failed)
	assert.Equal(t, 1, f.store.depth(job.QueueName()), "falls back to the origin queue")
}

func TestDequeueBatchParksNotDueHead(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	future := queuedJob("later", 100, 1)
	future.ScheduledAt = f.now.Add(time.Minute)
	ready := queuedJob("now", 101, 1)

	queueName := future.QueueName()
	require.NoError(t, f.store.Push(context.Background(), queueName, future, ready))

	batch, err := f.worker.dequeueBatch(context.Background(), queueName)
	require.NoError(t, err)
	assert.Empty(t, batch, "a not-due head ends the batch")

	// Parked at the tail: the ready job now leads.
	head, err := f.store.Pop(context.Background(), queueName)
	require.NoError(t, err)
	assert.Equal(t, "now", head.ID)
}

func TestTickMovesDueRetries(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 2)
	job.ScheduledAt = f.now.Add(-time.Second)
	require.NoError(t, f.store.Push(context.Background(), domain.RetryQueueName, job))

	// First tick moves the due retry into its queue, then later ticks
	// process it; a single tick visits queues before the mover runs.
	require.NoError(t, f.worker.Tick(context.Background()))
	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Len(t, f.dispatcher.sent, 1)
	assert.Zero(t, f.store.depth(domain.RetryQueueName))
}

func TestOneBadJobDoesNotAbortTheBatch(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	bad := queuedJob("bad", 100, 3)
	good := queuedJob("good", 101, 1)
	f.dispatcher.errBy["bad"] = errors.New("boom")
	require.NoError(t, f.store.Push(context.Background(), bad.QueueName(), bad, good))

	require.NoError(t, f.worker.Tick(context.Background()))

	assert.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, []string{"prov-good"}, f.tracker.sent)
}

func TestQueueDepths(t *testing.T) {
	t.Parallel()
	f := newWorkerFixture(t)
	job := queuedJob("j1", 100, 1)
	require.NoError(t, f.store.Push(context.Background(), job.QueueName(), job))
	require.NoError(t, f.store.Push(context.Background(), domain.RetryQueueName, queuedJob("j2", 101, 2)))

	depths := f.worker.QueueDepths(context.Background())
	assert.EqualValues(t, 1, depths[job.QueueName()])
	assert.EqualValues(t, 1, depths[domain.RetryQueueName])
	assert.Zero(t, depths[domain.QueueName(domain.PriorityUrgent, domain.ChannelSMS)])
}
