package resilience

import (
	"context"
	"math"
	"time"
)

// RetryPolicy bounds how often a call is attempted and how long to wait in
// between. Waits grow geometrically from BaseDelay and are capped at
// MaxDelay. They are never randomized, so a run can be replayed exactly.
type RetryPolicy struct {
	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// Retryable reports whether err deserves another attempt. Nil means
	// IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep replaces the real wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultAttempts   = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 2 * time.Minute
	defaultMultiplier = 2.0
)

// DefaultRetryPolicy is three attempts with waits of 1s and 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{}.normalized()
}

// PolicyFromConfig builds a policy from the integer settings in the config
// file. Zero values fall back to the defaults.
func PolicyFromConfig(maxAttempts, baseDelayMs, maxDelayMs int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Duration(baseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(maxDelayMs) * time.Millisecond,
	}.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// Delay is the wait that follows failed attempt n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	return time.Duration(math.Min(d, float64(p.MaxDelay)))
}

// Retry calls fn until it succeeds, returns an error the policy does not
// retry, runs out of attempts or ctx ends. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	for n := 1; ; n++ {
		v, err := fn(ctx)
		switch {
		case err == nil:
			return v, nil
		case ctx.Err() != nil, !retryable(err), n >= p.MaxAttempts:
			return zero, err
		}

		d := p.Delay(n)
		if p.OnRetry != nil {
			p.OnRetry(n, d, err)
		}
		if sleep(ctx, d) != nil {
			return zero, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
