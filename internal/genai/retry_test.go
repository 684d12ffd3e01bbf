package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jupiterlabs/reengage/internal/log"
)

func retryTestClient() *Client {
	return &Client{
		retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  log.NewNop(),
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"http 429", errors.New("got 429 from upstream"), true},
		{"http 503", errors.New("503 service unavailable"), true},
		{"timeout", errors.New("dial tcp: i/o timeout"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"bad request", errors.New("invalid argument: bad prompt"), false},
		{"auth", errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExecuteWithRetry(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		c := retryTestClient()
		calls := 0
		got, err := executeWithRetry(context.Background(), c, func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		if err != nil || got != "ok" {
			t.Fatalf("executeWithRetry = %q, %v", got, err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("retries transient errors until success", func(t *testing.T) {
		c := retryTestClient()
		calls := 0
		got, err := executeWithRetry(context.Background(), c, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("503 service unavailable")
			}
			return "recovered", nil
		})
		if err != nil || got != "recovered" {
			t.Fatalf("executeWithRetry = %q, %v", got, err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("non-retryable fails immediately", func(t *testing.T) {
		c := retryTestClient()
		calls := 0
		permanent := errors.New("invalid argument")
		_, err := executeWithRetry(context.Background(), c, func(context.Context) (string, error) {
			calls++
			return "", permanent
		})
		if !errors.Is(err, permanent) {
			t.Fatalf("err = %v, want wrapped permanent error", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1 (no retries)", calls)
		}
	})

	t.Run("exhausts retries", func(t *testing.T) {
		c := retryTestClient()
		calls := 0
		transient := errors.New("429 too many requests")
		_, err := executeWithRetry(context.Background(), c, func(context.Context) (string, error) {
			calls++
			return "", transient
		})
		if !errors.Is(err, transient) {
			t.Fatalf("err = %v, want wrapped transient error", err)
		}
		if calls != c.retry.MaxRetries+1 {
			t.Errorf("calls = %d, want %d", calls, c.retry.MaxRetries+1)
		}
	})

	t.Run("honors context cancellation between attempts", func(t *testing.T) {
		c := retryTestClient()
		c.retry.InitialInterval = time.Minute // never completes the backoff sleep

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := executeWithRetry(ctx, c, func(context.Context) (string, error) {
			return "", errors.New("503 unavailable")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	})
}
