package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureSleeps devuelve opciones sin jitter que registran cada delay en vez
// de dormir de verdad.
func captureSleeps(maxAttempts int, sleeps *[]time.Duration) RetryOptions {
	return RetryOptions{
		MaxAttempts: maxAttempts,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      false,
		Sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	var sleeps []time.Duration
	calls := 0

	err := Retry(context.Background(), captureSleeps(3, &sleeps), nil, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps, "no delay when the first attempt succeeds")
}

func TestRetry_ExponentialDelaysCappedAtMax(t *testing.T) {
	var sleeps []time.Duration
	calls := 0

	err := Retry(context.Background(), captureSleeps(5, &sleeps), nil, func(context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 5, calls)
	// 250, 500, 1000, 2000 (cap) — y sin delay tras el intento final
	assert.Equal(t, []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		1000 * time.Millisecond,
		2000 * time.Millisecond,
	}, sleeps)
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	var sleeps []time.Duration
	fatal := errors.New("fatal")
	calls := 0

	err := Retry(context.Background(), captureSleeps(5, &sleeps),
		func(err error) bool { return !errors.Is(err, fatal) },
		func(context.Context) error {
			calls++
			return fatal
		})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestRetry_RecoversAfterFailures(t *testing.T) {
	var sleeps []time.Duration
	calls := 0

	err := Retry(context.Background(), captureSleeps(3, &sleeps), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeps, 2)
}

func TestRetry_JitterStaysWithin20Percent(t *testing.T) {
	base := 1000 * time.Millisecond
	opts := RetryOptions{
		MaxAttempts: 2,
		BaseDelay:   base,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}

	// rand=0 → factor 0.8; rand=1 → factor 1.2
	opts.Rand = func() float64 { return 0 }
	assert.Equal(t, 800*time.Millisecond, backoffDelay(1, opts))

	opts.Rand = func() float64 { return 1 }
	assert.Equal(t, 1200*time.Millisecond, backoffDelay(1, opts))

	opts.Rand = func() float64 { return 0.5 }
	assert.Equal(t, base, backoffDelay(1, opts))
}

func TestRetry_ContextCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Jitter:      false,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := Retry(ctx, opts, nil, func(context.Context) error {
		calls++
		return errBoom
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no more attempts once the context is gone")
}
