package smugmug

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
	"smdl/pkg/ratelimit"
	"smdl/pkg/retry"
)

// FetcherConfig configures a Fetcher
type FetcherConfig struct {
	// Policy governs attempts and backoff; nil uses retry.DefaultPolicy
	Policy *retry.Policy
	// Limiter throttles attempts; nil means unlimited
	Limiter ratelimit.Limiter
	// RequestTimeout bounds a single attempt; zero means no bound
	RequestTimeout time.Duration
}

// Fetcher performs every API GET. Each call is retried under the policy
// and yields either the embedded JSON payload or a fetch error.
type Fetcher struct {
	session *Session
	policy  *retry.Policy
	limiter ratelimit.Limiter
	timeout time.Duration
	logger  logger.Logger
}

// NewFetcher creates a fetcher bound to a session
func NewFetcher(session *Session, cfg FetcherConfig, log logger.Logger) *Fetcher {
	if cfg.Policy == nil {
		cfg.Policy = retry.DefaultPolicy()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.Unlimited{}
	}
	return &Fetcher{
		session: session,
		policy:  cfg.Policy,
		limiter: cfg.Limiter,
		timeout: cfg.RequestTimeout,
		logger:  logger.OrDefault(log).WithField("component", "fetcher"),
	}
}

// GetJSON fetches an API path (or absolute URL) and returns its payload.
// After the policy's attempts are exhausted the error is of type fetch and
// wraps the last failure.
func (f *Fetcher) GetJSON(ctx context.Context, pathOrURL string) (json.RawMessage, error) {
	target := f.session.Endpoints().Resolve(pathOrURL)

	payload, err := retry.DoWithResult(ctx, f.policy, func(ctx context.Context, attempt int) (json.RawMessage, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		payload, err := f.fetchOnce(ctx, target)
		if err != nil && attempt < f.policy.MaxAttempts {
			f.logger.WithError(err).DebugWithFields("Fetch attempt failed", map[string]interface{}{
				"path":    pathOrURL,
				"attempt": attempt,
			})
		}
		return payload, err
	})
	if err != nil {
		f.logger.WithError(err).WarnWithFields("Fetch failed", map[string]interface{}{
			"path": pathOrURL,
		})
		return nil, errs.Wrap(errs.ErrorTypeFetch, err, "fetch failed").WithPath(pathOrURL)
	}
	return payload, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (json.RawMessage, error) {
	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := f.session.fetchPage(attemptCtx, target)
	if err != nil {
		// A per-attempt timeout is transient; only the caller's context is final
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.ErrorTypeTransport, err, "request timed out").WithPath(target)
		}
		return nil, err
	}

	payload, err := ExtractJSON(body)
	if err != nil {
		var extractErr *errs.Error
		if errors.As(err, &extractErr) {
			extractErr.Path = target
		}
		return nil, err
	}
	return payload, nil
}
