package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryOptions controla el loop de reintentos.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool // ±20% uniforme sobre el delay

	// Hooks inyectables para tests. nil usa los defaults reales.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultRetryOptions son los valores de fábrica: 3 intentos, 250ms base,
// tope 2s, con jitter.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts: 3,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      true,
	}
}

// Retry ejecuta task hasta MaxAttempts veces. Antes del reintento k
// (1-indexado) espera min(BaseDelay·2^(k−1), MaxDelay), con jitter opcional.
// retryable decide por intento si el error merece reintento; nil reintenta
// todo. Errores no retryables y el agotamiento de intentos propagan el último
// error. No hay espera después del intento final.
func Retry(ctx context.Context, opts RetryOptions, retryable func(error) bool, task func(ctx context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = task(ctx)
		if lastErr == nil {
			return nil
		}

		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt >= opts.MaxAttempts {
			return lastErr
		}

		if err := sleep(ctx, backoffDelay(attempt, opts)); err != nil {
			return err
		}
	}
	return lastErr
}

// backoffDelay calcula el delay tras el intento attempt (1-indexado).
func backoffDelay(attempt int, opts RetryOptions) time.Duration {
	d := time.Duration(float64(opts.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if opts.MaxDelay > 0 && d > opts.MaxDelay {
		d = opts.MaxDelay
	}
	if !opts.Jitter {
		return d
	}

	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	// factor uniforme en [0.8, 1.2]
	factor := 0.8 + 0.4*rnd()
	jittered := time.Duration(float64(d) * factor)
	if jittered < 0 {
		return 0
	}
	return jittered
}

// sleepCtx espera d respetando la cancelación del contexto.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
