package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ProviderError wraps a failed provider call. Retryable marks errors the
// caller may retry with backoff (timeouts, rate limits, 5xx responses).
type ProviderError struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AuthError means the provider rejected the configured credentials. It is
// never retried; an operator has to fix the configuration.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a generation error may succeed on retry.
// Auth failures and client-side errors are permanent.
func IsRetryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	// Timeouts without provider classification are worth retrying
	return errors.Is(err, context.DeadlineExceeded)
}

// classifyStatus converts an HTTP status from a provider into a typed error.
func classifyStatus(provider string, status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: provider, Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &ProviderError{Provider: provider, StatusCode: status, Retryable: true, Err: err}
	default:
		return &ProviderError{Provider: provider, StatusCode: status, Retryable: false, Err: err}
	}
}
