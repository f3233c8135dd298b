package routing

import (
	"context"
	"errors"
	"net/http"

	"mercator-hq/parley/pkg/providers"
)

// ErrNoFallback is returned by New when failover is enabled without a
// fallback provider.
var ErrNoFallback = errors.New("failover enabled but no fallback provider configured")

// ShouldFailover reports whether err justifies switching to the fallback
// provider.
//
// Structured errors decide first: rate limiting (kind or HTTP 429) fails
// over; unauthorized, malformed and cancelled never do. Other errors fall
// back to best-effort message matching on quota and rate-limit signals,
// which covers backends that report quota exhaustion without a clean status.
func ShouldFailover(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case providers.KindRateLimited:
			return true
		case providers.KindUnauthorized, providers.KindMalformed, providers.KindCancelled:
			return false
		}
		if pe.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return providers.LooksRateLimited(pe.Message)
	}

	var cerr *providers.ConfigError
	if errors.As(err, &cerr) {
		return false
	}

	return providers.LooksRateLimited(err.Error())
}
