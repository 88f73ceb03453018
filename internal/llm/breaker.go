package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// breakerProvider wraps a Provider with a circuit breaker so a hard provider
// outage fails fast instead of burning the retry budget on every request.
type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps a provider in a circuit breaker. Non-retryable errors
// (auth, bad request) do not count as breaker failures.
func WithBreaker(inner Provider, logger zerolog.Logger) Provider {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("LLM circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Permanent failures say nothing about provider health
			return !IsRetryable(err)
		},
	}

	return &breakerProvider{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *breakerProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// An open circuit means the provider is down; retrying within
			// the same request would only wait out the backoff for nothing.
			return "", &ProviderError{Provider: b.inner.Name(), Retryable: false, Err: err}
		}
		return "", err
	}
	return result.(string), nil
}

func (b *breakerProvider) Name() string {
	return b.inner.Name()
}
