package wbpilot

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avashchuk/wbpilot/marketplace"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := p.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{10 * time.Second}, delays)
}

func TestRetryExhaustsBudget(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := p.Do(context.Background(), "create shipment", func(ctx context.Context) error {
		calls++
		return errors.New("still down")
	})

	assert.Equal(t, 3, calls)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "create shipment", fatal.Op)
	assert.Equal(t, 3, fatal.Attempts)
	// Backoff grows with the attempt; no pause after the final attempt.
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second}, delays)
}

func TestRetryRateLimitGetsFixedPause(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      10 * time.Second,
		RateLimitPause: 30 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	calls := 0
	err := p.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return marketplace.StatusError{StatusCode: http.StatusTooManyRequests, Status: "429"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second}, delays)
}

func TestRetryStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := p.Do(ctx, "op", func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
