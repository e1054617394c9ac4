package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter gates outbound calls per service name so that consecutive
// acquisitions for one service are spaced at least 60/rpm seconds apart.
// Services without a configured rate are not limited.
type RateLimiter struct {
	mu       sync.Mutex
	rpm      map[string]float64
	limiters map[string]*rate.Limiter
	warned   map[string]bool
}

// NewRateLimiter builds a limiter from a requests-per-minute table.
// Non-positive entries are treated as unconfigured.
func NewRateLimiter(requestsPerMinute map[string]float64) *RateLimiter {
	rpm := make(map[string]float64, len(requestsPerMinute))
	for svc, r := range requestsPerMinute {
		if r > 0 {
			rpm[svc] = r
		}
	}
	return &RateLimiter{
		rpm:      rpm,
		limiters: make(map[string]*rate.Limiter),
		warned:   make(map[string]bool),
	}
}

// Interval returns the minimum spacing for service, or zero when unconfigured.
func (l *RateLimiter) Interval(service string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rpm[service]
	if !ok {
		return 0
	}
	return time.Duration(float64(time.Minute) / r)
}

// Acquire blocks until the service's minimum interval has elapsed since the
// previous Acquire for the same service, or ctx is done.
func (l *RateLimiter) Acquire(ctx context.Context, service string) error {
	lim := l.limiter(service)
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: wait for %s", service)
	}
	return nil
}

func (l *RateLimiter) limiter(service string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.limiters[service]; ok {
		return lim
	}

	r, ok := l.rpm[service]
	if !ok {
		if !l.warned[service] {
			l.warned[service] = true
			zap.L().Warn("ratelimit: no rate configured, not limiting",
				zap.String("service", service),
			)
		}
		return nil
	}

	// Burst of one: the first call passes, every later call waits a full interval.
	lim := rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/r)), 1)
	l.limiters[service] = lim
	return lim
}
