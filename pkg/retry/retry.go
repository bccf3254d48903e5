package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smdl/pkg/config"
	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

// Operation is a single attempt; attempt numbers start at 1
type Operation func(ctx context.Context, attempt int) error

// OperationWithResult is an attempt that produces a value
type OperationWithResult[T any] func(ctx context.Context, attempt int) (T, error)

// Policy decides how many times an operation runs and how long to wait
// between attempts. A Policy is safe for concurrent use once built.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf reports whether a failed attempt may be retried
	RetryIf func(error) bool
	// OnRetry is called before waiting for the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
	// Sleep waits between attempts; tests replace it to avoid real delays
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExhaustedError is returned when every attempt failed
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// DefaultPolicy makes 5 attempts with exponential backoff from 1s to 30s
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 5,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
	}
}

// NewPolicy builds a Policy from the retry section of the configuration
func NewPolicy(cfg config.RetryConfig, log logger.Logger) *Policy {
	return &Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   cfg.Multiplier,
			JitterFactor: cfg.JitterFactor,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// WithMaxAttempts returns a copy of the policy with a different attempt budget
func (p *Policy) WithMaxAttempts(n int) *Policy {
	cp := *p
	cp.MaxAttempts = n
	return &cp
}

// DefaultRetryIf retries typed errors whose type is retryable, and any
// untyped error other than context cancellation. A typed error decides on
// its type alone, so an attempt timeout wrapped as a transport error is
// retried.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs op until it succeeds, fails with a non-retryable error, the
// context ends, or MaxAttempts attempts have been made. No wait follows
// the final attempt.
func (p *Policy) Do(ctx context.Context, op Operation) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Wait
	}
	log := logger.OrDefault(p.Logger)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
		}

		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.NextDelay(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		log.WithError(err).DebugWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"delay":        delay,
			"max_attempts": maxAttempts,
		})

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", errors.Join(err, lastErr))
		}
	}

	return &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// DoWithResult runs a value-producing operation under the policy
func DoWithResult[T any](ctx context.Context, p *Policy, op OperationWithResult[T]) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
		v, err := op(ctx, attempt)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
