// Package resilience provides retry with exponential backoff and a token
// bucket rate limiter.
//
// Retry re-runs an operation while its error is retryable:
//
//	err := resilience.Retry(ctx, cfg, func(ctx context.Context) error {
//	    return requestPrompt(ctx)
//	})
//
// RateLimiter guards a shared resource such as an HTTP endpoint:
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 5, Burst: 10})
//	if !rl.Allow() {
//	    return errors.RateLimited("results")
//	}
package resilience
