package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// Retry controls attempts and backoff. Only transient failures are retried.
	Retry RetryPolicy

	// Timeouts holds the per-attempt timeout for each service. Services
	// without an entry use DefaultTimeout.
	Timeouts map[string]time.Duration

	// DefaultTimeout applies when a service has no entry in Timeouts. Zero
	// means no per-attempt timeout.
	DefaultTimeout time.Duration
}

// Gateway sends outbound calls through the rate limiter with a per-attempt
// timeout, classifies failures and retries transient ones with exponential
// backoff.
type Gateway struct {
	limiter *RateLimiter
	cfg     GatewayConfig
}

// NewGateway creates a Gateway. A nil limiter disables rate limiting.
func NewGateway(limiter *RateLimiter, cfg GatewayConfig) *Gateway {
	if limiter == nil {
		limiter = NewRateLimiter(nil)
	}
	return &Gateway{limiter: limiter, cfg: cfg}
}

// Limiter returns the gateway's rate limiter.
func (g *Gateway) Limiter() *RateLimiter {
	return g.limiter
}

func (g *Gateway) timeout(service string) time.Duration {
	if d, ok := g.cfg.Timeouts[service]; ok {
		return d
	}
	return g.cfg.DefaultTimeout
}

// Send runs fn for service with rate limiting, timeout and retry. Any failure
// is returned as a *RequestError, except cancellation of ctx which is
// returned unchanged.
func Send[T any](ctx context.Context, g *Gateway, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	log := zap.L().With(zap.String("service", service))

	var (
		attempts  int
		lastClass ErrorClass
	)

	retry := g.cfg.Retry
	userOnRetry := retry.OnRetry
	retry.Retryable = func(err error) bool {
		return Classify(err) == ClassTransient
	}
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("gateway: retrying after transient failure",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if userOnRetry != nil {
			userOnRetry(attempt, delay, err)
		}
	}

	val, err := Retry(ctx, retry, func(ctx context.Context) (T, error) {
		var zero T
		if err := g.limiter.Acquire(ctx, service); err != nil {
			lastClass = ClassUnexpected
			return zero, err
		}

		attempts++
		attemptCtx := ctx
		if d := g.timeout(service); d > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		start := time.Now()
		v, err := fn(attemptCtx)
		lastClass = Classify(err)
		log.Debug("gateway: attempt finished",
			zap.Int("attempt", attempts),
			zap.String("class", lastClass.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return v, err
	})
	if err == nil {
		return val, nil
	}

	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}

	reqErr := &RequestError{
		Service:  service,
		Class:    lastClass,
		Attempts: attempts,
		Err:      err,
	}
	if lastClass == ClassTransient {
		reqErr.Exhausted = true
	}
	log.Error("gateway: request failed",
		zap.String("class", reqErr.Class.String()),
		zap.Int("attempts", attempts),
		zap.Bool("exhausted", reqErr.Exhausted),
		zap.Error(err),
	)
	return zero, reqErr
}
