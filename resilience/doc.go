// Package resilience provides retry and timeout handling for query fetches.
//
// The patterns can be used independently or composed together:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    BaseDelay:   100 * time.Millisecond,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return fetchFromAPI(ctx)
//	})
//
// The timeout applies per attempt, inside the retry loop, so a slow
// attempt is abandoned and retried rather than consuming the whole
// retry budget. The default backoff grows linearly with the attempt
// number (BaseDelay, 2*BaseDelay, 3*BaseDelay, ...).
package resilience
