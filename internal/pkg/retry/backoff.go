// Package retry wraps the ekit retry strategies behind the config shape the
// rest of the pipeline consumes.
package retry

import (
	"fmt"
	"time"

	"github.com/ecodeclub/ekit/retry"
	"github.com/pitchdesk/notify/internal/errs"
)

// Config describes the exponential backoff schedule:
// delay(n) = min(InitialInterval * 2^(n-1), MaxInterval) for attempt n,
// with at most MaxAttempts attempts in total.
type Config struct {
	InitialInterval time.Duration `json:"initialInterval"`
	MaxInterval     time.Duration `json:"maxInterval"`
	MaxAttempts     int32         `json:"maxAttempts"`
}

func (c Config) Validate() error {
	if c.InitialInterval <= 0 || c.MaxInterval < c.InitialInterval || c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry config %+v", errs.ErrInvalidParameter, c)
	}
	return nil
}

// Backoff computes per-attempt delays. It is stateless; each computation
// replays a fresh strategy so concurrent callers never share counters.
type Backoff struct {
	cfg Config
}

func NewBackoff(cfg Config) (*Backoff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backoff{cfg: cfg}, nil
}

// MaxAttempts is the total attempt budget.
func (b *Backoff) MaxAttempts() int32 {
	return b.cfg.MaxAttempts
}

// DelayForAttempt returns the wait before performing the given attempt
// (1-based). ok is false outside the attempt budget.
func (b *Backoff) DelayForAttempt(attempt int32) (time.Duration, bool) {
	if attempt < 1 || attempt > b.cfg.MaxAttempts {
		return 0, false
	}
	strategy, err := retry.NewExponentialBackoffRetryStrategy(
		b.cfg.InitialInterval, b.cfg.MaxInterval, b.cfg.MaxAttempts)
	if err != nil {
		return 0, false
	}
	var delay time.Duration
	var ok bool
	for i := int32(0); i < attempt; i++ {
		delay, ok = strategy.Next()
		if !ok {
			return 0, false
		}
	}
	return delay, true
}
