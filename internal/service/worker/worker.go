// Package worker drains the priority/channel queues: one scheduler loop
// visits every registered queue each tick, dequeues a bounded batch and
// fans it out with bounded concurrency.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/hashicorp/go-multierror"
	"github.com/pitchdesk/notify/internal/domain"
	"github.com/pitchdesk/notify/internal/errs"
	"github.com/pitchdesk/notify/internal/queue"
	"github.com/pitchdesk/notify/internal/service/channel"
	"github.com/pitchdesk/notify/internal/service/metrics"
	"github.com/pitchdesk/notify/internal/service/retrysched"
	"github.com/pitchdesk/notify/internal/service/tracker"
	"golang.org/x/sync/errgroup"
)

// Config tunes the processing loop.
type Config struct {
	TickInterval    time.Duration `json:"tickInterval"`
	BatchSize       int           `json:"batchSize"`
	Concurrency     int           `json:"concurrency"`
	BatchTimeout    time.Duration `json:"batchTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return c
}

// Worker is the background processor.
type Worker struct {
	cfg        Config
	store      queue.Store
	dispatcher channel.Channel
	tracker    tracker.Service
	retries    *retrysched.Scheduler
	mover      *retrysched.Mover
	metrics    *metrics.WorkerMetrics
	queues     []string

	inflight sync.WaitGroup
	logger   *elog.Component
	now      func() time.Time
}

func New(
	cfg Config,
	store queue.Store,
	dispatcher channel.Channel,
	trackerSvc tracker.Service,
	retries *retrysched.Scheduler,
	mover *retrysched.Mover,
	workerMetrics *metrics.WorkerMetrics,
) *Worker {
	return &Worker{
		cfg:        cfg.withDefaults(),
		store:      store,
		dispatcher: dispatcher,
		tracker:    trackerSvc,
		retries:    retries,
		mover:      mover,
		metrics:    workerMetrics,
		queues:     domain.AllQueueNames(),
		logger:     elog.DefaultLogger.With(elog.String("component", "worker")),
		now:        time.Now,
	}
}

// Run ticks until ctx is cancelled, then waits for in-flight batches up to
// the shutdown timeout. It is the biz func handed to a loopjob.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Warn("tick finished with errors", elog.FieldErr(err))
			}
		}
	}
}

// Tick visits every queue once, most urgent first, then redistributes due
// retry jobs and refreshes depth gauges. A failing queue only loses its own
// tick; nothing is lost because jobs stay in the queue store until popped.
func (w *Worker) Tick(ctx context.Context) error {
	var errsAll error
	for _, q := range w.queues {
		if ctx.Err() != nil {
			break
		}
		if err := w.processQueue(ctx, q); err != nil {
			errsAll = multierror.Append(errsAll, fmt.Errorf("queue %s: %w", q, err))
		}
	}
	if ctx.Err() == nil {
		if _, err := w.mover.MoveDue(ctx); err != nil {
			errsAll = multierror.Append(errsAll, fmt.Errorf("retry mover: %w", err))
		}
		w.refreshDepths(ctx)
	}
	return errsAll
}

func (w *Worker) processQueue(ctx context.Context, queueName string) error {
	batch, err := w.dequeueBatch(ctx, queueName)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	w.inflight.Add(1)
	defer w.inflight.Done()

	// In-flight batches outlive a shutdown signal up to the batch timeout;
	// individual sends are never cancelled midway.
	batchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.BatchTimeout)
	defer cancel()

	var mu sync.Mutex
	var jobErrs error
	g := new(errgroup.Group)
	g.SetLimit(w.cfg.Concurrency)
	for i := range batch {
		job := batch[i]
		g.Go(func() error {
			// One job's failure must not abort its siblings.
			if err := w.processJob(batchCtx, queueName, job); err != nil {
				mu.Lock()
				jobErrs = multierror.Append(jobErrs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return jobErrs
}

// dequeueBatch pops up to batchSize due jobs. A not-yet-due head item is
// parked at the tail and ends the batch: approximate time ordering, degrades
// toward plain FIFO under sustained mixed schedules.
func (w *Worker) dequeueBatch(ctx context.Context, queueName string) ([]domain.QueueJob, error) {
	batch := make([]domain.QueueJob, 0, w.cfg.BatchSize)
	for len(batch) < w.cfg.BatchSize {
		job, err := w.store.Pop(ctx, queueName)
		if err != nil {
			if errors.Is(err, errs.ErrQueueEmpty) {
				return batch, nil
			}
			return batch, err
		}
		if !job.Due(w.now()) {
			if err := w.store.Push(ctx, queueName, job); err != nil {
				return batch, fmt.Errorf("park job %s: %w", job.ID, err)
			}
			return batch, nil
		}
		batch = append(batch, job)
	}
	return batch, nil
}

func (w *Worker) processJob(ctx context.Context, queueName string, job domain.QueueJob) error {
	start := w.now()

	record, err := w.tracker.BeginAttempt(ctx, job)
	if err != nil {
		if errors.Is(err, errs.ErrTerminalState) {
			// A stale job for an already-terminal delivery; drop it so a
			// permanent failure is never recorded twice.
			w.logger.Warn("dropping job for terminal delivery",
				elog.Int64("notificationID", int64(job.NotificationID)),
				elog.String("channel", string(job.Channel)))
			return nil
		}
		// The job was already popped; put it back so nothing is lost.
		return w.requeue(ctx, queueName, job, fmt.Errorf("begin attempt: %w", err))
	}

	resp, sendErr := w.dispatcher.Send(ctx, job)
	if sendErr == nil {
		if err := w.tracker.MarkSent(ctx, record, resp.ProviderMessageID); err != nil {
			// The provider accepted the message but the record is stuck in
			// sending; replay the job so the next pass repairs it. The
			// duplicate send this can cause is the at-least-once trade-off.
			return w.requeue(ctx, queueName, job, fmt.Errorf("mark sent: %w", err))
		}
		w.metrics.ObserveProcessed(queueName, w.now().Sub(start), true)
		return nil
	}

	w.logger.Warn("send failed",
		elog.Int64("notificationID", int64(job.NotificationID)),
		elog.String("channel", string(job.Channel)),
		elog.Int("attempt", int(job.Attempts)),
		elog.FieldErr(sendErr))
	record.Attempts = job.Attempts
	if err := w.tracker.MarkFailed(ctx, record, sendErr); err != nil {
		w.metrics.ObserveProcessed(queueName, w.now().Sub(start), false)
		return w.requeue(ctx, queueName, job, fmt.Errorf("mark failed: %w", err))
	}

	_, retried, err := w.retries.ScheduleRetry(ctx, job)
	if err != nil {
		w.metrics.ObserveProcessed(queueName, w.now().Sub(start), false)
		return w.requeue(ctx, queueName, job, fmt.Errorf("schedule retry: %w", err))
	}
	if retried {
		w.metrics.ObserveRetried(queueName)
	}
	w.metrics.ObserveProcessed(queueName, w.now().Sub(start), false)
	return nil
}

// requeue puts an already-popped job back in its queue so a store failure
// mid-processing never loses a delivery with budget remaining.
func (w *Worker) requeue(ctx context.Context, queueName string, job domain.QueueJob, cause error) error {
	if pushErr := w.store.Push(ctx, queueName, job); pushErr != nil {
		return fmt.Errorf("%w (requeue also failed: %w)", cause, pushErr)
	}
	return cause
}

func (w *Worker) refreshDepths(ctx context.Context) {
	for _, q := range append(append([]string{}, w.queues...), domain.RetryQueueName) {
		depth, err := w.store.Len(ctx, q)
		if err != nil {
			continue
		}
		w.metrics.SetQueueDepth(q, depth)
	}
}

// QueueDepths reports the current depth of every queue, retry list included.
func (w *Worker) QueueDepths(ctx context.Context) map[string]int64 {
	depths := make(map[string]int64, len(w.queues)+1)
	for _, q := range append(append([]string{}, w.queues...), domain.RetryQueueName) {
		depth, err := w.store.Len(ctx, q)
		if err != nil {
			continue
		}
		depths[q] = depth
	}
	return depths
}

func (w *Worker) drain() {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		w.logger.Info("worker drained")
	case <-time.After(w.cfg.ShutdownTimeout):
		w.logger.Warn("shutdown timeout reached with batches still in flight")
	}
}
