// Package retry runs operations under a bounded attempt budget with
// exponential backoff.
//
// A single Policy value is built from configuration and shared by every
// caller that needs resilience (API fetches, file transfers):
//
//	policy := retry.NewPolicy(cfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
//		return get(ctx, url)
//	})
//
// The default policy makes 5 attempts and waits 1s, 2s, 4s and 8s between
// them; delays never exceed 30s. When every attempt fails the returned
// error is an *ExhaustedError wrapping the last failure.
package retry
