package providers

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxRetryDoublings caps how many times the retry delay doubles.
const maxRetryDoublings = 16

// RetrySchedule returns the backoff used between rate-limit retries:
// base, base*2, base*4, ... with no jitter. The delay stops growing after
// min(maxRetries, 16) doublings.
func RetrySchedule(base time.Duration, maxRetries int) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = retryCeiling(base, maxRetries)
	b.Reset()
	return b
}

func retryCeiling(base time.Duration, maxRetries int) time.Duration {
	shift := min(max(maxRetries, 1), maxRetryDoublings)
	if base > math.MaxInt64>>shift {
		return math.MaxInt64
	}
	return base << shift
}

// RetryRateLimited runs op and retries it while it fails with
// KindRateLimited, up to cfg.MaxRetries times. Every other failure is
// returned immediately. The attempt counter and schedule are local to the
// call, so concurrent calls never share retry state.
func RetryRateLimited[T any](ctx context.Context, cfg ProviderConfig, obs Observer, op func() (T, error)) (T, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	schedule := RetrySchedule(cfg.RetryDelay, cfg.MaxRetries)

	for attempt := 0; ; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		if KindOf(err) != KindRateLimited || attempt >= cfg.MaxRetries {
			if KindOf(err) == KindRateLimited && cfg.MaxRetries > 0 {
				slog.Warn("rate limit retries exhausted",
					"provider", cfg.Name,
					"attempts", attempt+1,
				)
			}
			return v, err
		}

		delay := schedule.NextBackOff()
		slog.Debug("retrying rate limited request",
			"provider", cfg.Name,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"backoff", delay,
		)
		obs.ObserveRetry(cfg.Name, attempt+1, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, RequestError(ctx, cfg.Name, ctx.Err())
		case <-timer.C:
		}
	}
}
