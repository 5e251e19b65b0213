package wbpilot

import (
	"context"
	"log/slog"
	"time"

	"github.com/avashchuk/wbpilot/marketplace"
)

// RetryPolicy wraps a remote call with a bounded attempt budget and
// increasing backoff. A rate-limit signal gets a fixed longer pause that does
// not feed the backoff growth; any error still present after the final
// attempt surfaces as a FatalError. The policy never retries indefinitely.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	RateLimitPause time.Duration
	Logger         *slog.Logger

	// Sleep overrides the context-aware pause between attempts. Tests use it
	// to run without real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy matches the marketplace API's tolerances.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      10 * time.Second,
		RateLimitPause: 30 * time.Second,
	}
}

// Do runs fn until it succeeds or the attempt budget is spent. The pause
// suspends only the calling task; no pause follows the final attempt.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(attempt+1)
		if marketplace.IsRateLimit(err) {
			delay = p.RateLimitPause
		}

		logger.Warn("remote call failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err.Error())

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &FatalError{Op: op, Attempts: attempts, Err: lastErr}
}
