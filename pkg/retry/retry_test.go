package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smdl/pkg/config"
	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

// constantBackoff waits the same delay before every retry
type constantBackoff struct {
	Delay time.Duration
}

func (cb *constantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// recordingSleep captures requested delays without waiting
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{12, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysCapped(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.5,
	}

	seen := make(map[time.Duration]bool)
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(6)
		assert.LessOrEqual(t, d, 30*time.Second)
		assert.GreaterOrEqual(t, d, 16*time.Second)
		seen[backoff.NextDelay(2)] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary delays")
}

func TestDefaultPolicySchedule(t *testing.T) {
	var delays []time.Duration
	p := DefaultPolicy()
	p.Logger = logger.NewNopLogger()
	p.Sleep = recordingSleep(&delays)

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		assert.Equal(t, attempts, attempt)
		return errs.New(errs.ErrorTypeTransport, "connection refused")
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Attempts)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, delays, "no wait follows the final attempt")
	assert.True(t, errs.Is(err, errs.ErrorTypeTransport))
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	p := &Policy{
		MaxAttempts: 5,
		Backoff:     &constantBackoff{Delay: 10 * time.Millisecond},
		Logger:      logger.NewNopLogger(),
		Sleep:       recordingSleep(&delays),
	}

	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		if attempt < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, delays, 2)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	p := DefaultPolicy()
	p.Logger = logger.NewNopLogger()
	p.Sleep = func(context.Context, time.Duration) error {
		t.Fatal("should not wait")
		return nil
	}

	authErr := errs.New(errs.ErrorTypeAuth, "bad password")
	attempts := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return authErr
	})

	assert.Same(t, authErr, err)
	assert.Equal(t, 1, attempts)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultPolicy()
	p.Logger = logger.NewNopLogger()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	attempts := 0
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("flaky")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)

	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestOnRetryCallback(t *testing.T) {
	var calls []int
	p := &Policy{
		MaxAttempts: 3,
		Backoff:     &constantBackoff{},
		Logger:      logger.NewNopLogger(),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, attempt)
		},
	}

	_ = p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("always")
	})
	assert.Equal(t, []int{1, 2}, calls)
}

func TestDoWithResult(t *testing.T) {
	p := &Policy{MaxAttempts: 3, Backoff: &constantBackoff{}, Logger: logger.NewNopLogger()}

	v, err := DoWithResult(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		if attempt == 1 {
			return "partial", errors.New("retry me")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(context.DeadlineExceeded))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeExtraction, "no pre block")))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeResolve, "no url")))
	assert.True(t, DefaultRetryIf(errors.New("unexpected EOF")))
}

func TestDefaultRetryIfRetriesWrappedAttemptTimeout(t *testing.T) {
	timeout := errs.Wrap(errs.ErrorTypeTransport, context.DeadlineExceeded, "request timed out")
	assert.True(t, DefaultRetryIf(timeout))

	cancelled := errs.Wrap(errs.ErrorTypeResolve, context.Canceled, "stopped")
	assert.False(t, DefaultRetryIf(cancelled))
}

func TestDoRetriesAttemptTimeoutsUntilExhausted(t *testing.T) {
	var delays []time.Duration
	p := DefaultPolicy()
	p.Sleep = recordingSleep(&delays)
	p.Logger = logger.NewNopLogger()

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return errs.Wrap(errs.ErrorTypeTransport, context.DeadlineExceeded, "request timed out")
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, calls)
	assert.Len(t, delays, 4)
}

func TestNewPolicyFromConfig(t *testing.T) {
	p := NewPolicy(config.DefaultConfig().Retry, nil)

	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, time.Second, p.Backoff.NextDelay(1))
	assert.Equal(t, 16*time.Second, p.Backoff.NextDelay(5))
	assert.Equal(t, 30*time.Second, p.Backoff.NextDelay(6))
	assert.Equal(t, 2, p.WithMaxAttempts(2).MaxAttempts)
	assert.Equal(t, 5, p.MaxAttempts)
}
