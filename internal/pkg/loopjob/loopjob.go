// Package loopjob runs a long-lived business loop under a distributed lock,
// so exactly one worker instance drives a given loop at a time.
package loopjob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotomicro/ego/core/elog"
	"github.com/meoying/dlock-go"
)

const defaultTimeout = 3 * time.Second

// InfiniteLoop keeps re-acquiring the lock named by key and, while held,
// invokes biz repeatedly until ctx is cancelled.
type InfiniteLoop struct {
	dclient dlock.Client
	key     string
	lockTTL time.Duration
	logger  *elog.Component
	biz     func(ctx context.Context) error
}

func NewInfiniteLoop(dclient dlock.Client, biz func(ctx context.Context) error, key string) *InfiniteLoop {
	const lockTTL = time.Minute
	return &InfiniteLoop{
		dclient: dclient,
		key:     key,
		lockTTL: lockTTL,
		logger:  elog.DefaultLogger.With(elog.String("loop", key)),
		biz:     biz,
	}
}

// Run blocks until ctx is cancelled. Lock-acquisition failures pause and
// retry; they never abort the loop.
func (l *InfiniteLoop) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		lock, err := l.dclient.NewLock(ctx, l.key, l.lockTTL)
		if err != nil {
			l.logger.Error("create distributed lock failed, backing off", elog.FieldErr(err))
			if !l.sleep(ctx, l.lockTTL) {
				return
			}
			continue
		}

		lockCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		err = lock.Lock(lockCtx)
		cancel()
		if err != nil {
			// Held elsewhere or the lock store hiccuped; either way wait and
			// try again.
			if !l.sleep(ctx, l.lockTTL) {
				return
			}
			continue
		}

		err = l.bizLoop(ctx, lock)
		if err != nil {
			l.logger.Error("loop interrupted", elog.FieldErr(err))
		}

		// The original ctx may already be cancelled; unlock must still go out.
		unlockCtx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		//nolint:contextcheck // unlock must survive cancellation of the loop ctx
		unlockErr := lock.Unlock(unlockCtx)
		cancel()
		if unlockErr != nil {
			l.logger.Error("release distributed lock failed", elog.FieldErr(unlockErr))
		}

		err = ctx.Err()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			l.logger.Info("loop cancelled, exiting")
			return
		}
		if !l.sleep(ctx, l.lockTTL) {
			return
		}
	}
}

func (l *InfiniteLoop) bizLoop(ctx context.Context, lock dlock.Lock) error {
	for {
		err := l.biz(ctx)
		if err != nil {
			l.logger.Error("loop body failed", elog.FieldErr(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		refreshCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		err = lock.Refresh(refreshCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("refresh distributed lock: %w", err)
		}
	}
}

func (l *InfiniteLoop) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
