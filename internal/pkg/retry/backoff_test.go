package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayForAttempt(t *testing.T) {
	t.Parallel()
	b, err := NewBackoff(Config{
		InitialInterval: 30 * time.Second,
		MaxInterval:     10 * time.Minute,
		MaxAttempts:     5,
	})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		attempt   int32
		wantDelay time.Duration
		wantOK    bool
	}{
		{name: "first attempt", attempt: 1, wantDelay: 30 * time.Second, wantOK: true},
		{name: "second doubles", attempt: 2, wantDelay: time.Minute, wantOK: true},
		{name: "third doubles again", attempt: 3, wantDelay: 2 * time.Minute, wantOK: true},
		{name: "fourth", attempt: 4, wantDelay: 4 * time.Minute, wantOK: true},
		{name: "fifth hits the cap", attempt: 5, wantDelay: 8 * time.Minute, wantOK: true},
		{name: "zero is out of range", attempt: 0, wantOK: false},
		{name: "negative is out of range", attempt: -1, wantOK: false},
		{name: "beyond the budget", attempt: 6, wantOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			delay, ok := b.DelayForAttempt(tc.attempt)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantDelay, delay)
			}
		})
	}
}

func TestDelayForAttemptCapped(t *testing.T) {
	t.Parallel()
	b, err := NewBackoff(Config{
		InitialInterval: time.Minute,
		MaxInterval:     2 * time.Minute,
		MaxAttempts:     4,
	})
	require.NoError(t, err)

	delay, ok := b.DelayForAttempt(4)
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, delay, "delay never exceeds the configured maximum")
}

func TestDelaysNonDecreasing(t *testing.T) {
	t.Parallel()
	b, err := NewBackoff(Config{
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		MaxAttempts:     10,
	})
	require.NoError(t, err)

	prev := time.Duration(0)
	for attempt := int32(1); attempt <= 10; attempt++ {
		delay, ok := b.DelayForAttempt(attempt)
		require.True(t, ok)
		assert.GreaterOrEqual(t, delay, prev)
		prev = delay
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg:  Config{InitialInterval: time.Second, MaxInterval: time.Minute, MaxAttempts: 3},
		},
		{
			name:    "zero initial interval",
			cfg:     Config{MaxInterval: time.Minute, MaxAttempts: 3},
			wantErr: true,
		},
		{
			name:    "max below initial",
			cfg:     Config{InitialInterval: time.Minute, MaxInterval: time.Second, MaxAttempts: 3},
			wantErr: true,
		},
		{
			name:    "no attempts",
			cfg:     Config{InitialInterval: time.Second, MaxInterval: time.Minute},
			wantErr: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
