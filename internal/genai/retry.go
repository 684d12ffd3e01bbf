package genai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig configures the retry behavior for backend calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for model API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryableError determines if an error should trigger a retry.
func retryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors - always retry
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors - retry
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network errors - retry
	if containsAny(errStr, "connection reset", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// executeWithRetry runs op with exponential backoff, rate limiting each
// attempt. Generation and embedding share this loop, hence the type
// parameter.
func executeWithRetry[T any](ctx context.Context, c *Client, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := c.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		// Rate limit EACH attempt: retries compete for the same quota
		// as fresh requests.
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		result, err := op(ctx)
		if err == nil {
			c.logger.Debug("backend call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return result, nil
		}

		lastErr = err

		// Non-retryable error - fail immediately
		if !retryableError(err) {
			return zero, err
		}

		// Last attempt - don't sleep
		if attempt == c.retry.MaxRetries {
			break
		}

		c.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retry.MaxInterval)
		}
	}

	return zero, fmt.Errorf("backend call after %d retries (elapsed: %v): %w",
		c.retry.MaxRetries, time.Since(start), lastErr)
}
