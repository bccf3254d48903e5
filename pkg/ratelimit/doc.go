// Package ratelimit throttles SmugMug API requests.
//
// The fetcher calls Wait before every attempt, so retries count against the
// budget too. PerMinute(0) disables throttling.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
