// Package locate resolves cafe names to coordinates and place ids.
package locate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/model"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
	"github.com/sells-group/cafe-review-cli/pkg/google"
)

// Resolver looks up places through the gateway and a circuit breaker. It
// never returns an error: every failure is reported as an absent location.
type Resolver struct {
	client  google.Client
	gateway *resilience.Gateway
	breaker *resilience.CircuitBreaker
	cache   *cache.Store
	ttl     time.Duration

	warnOnce sync.Once
}

// New creates a Resolver. A nil client disables lookups; a nil store
// disables caching.
func New(client google.Client, gateway *resilience.Gateway, breaker *resilience.CircuitBreaker, store *cache.Store, ttl time.Duration) *Resolver {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(config.ServiceGooglePlaces, resilience.DefaultCircuitBreakerConfig())
	}
	return &Resolver{
		client:  client,
		gateway: gateway,
		breaker: breaker,
		cache:   store,
		ttl:     ttl,
	}
}

// NewFromConfig wires a Resolver from application config. Without an API key
// the resolver is disabled.
func NewFromConfig(cfg *config.Config, gateway *resilience.Gateway, store *cache.Store) *Resolver {
	var client google.Client
	if cfg.Google.Key != "" {
		var opts []google.Option
		if cfg.Google.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(cfg.Google.BaseURL))
		}
		if cfg.Google.TimeoutSecs > 0 {
			opts = append(opts, google.WithTimeout(time.Duration(cfg.Google.TimeoutSecs)*time.Second))
		}
		client = google.NewClient(cfg.Google.Key, opts...)
	}
	breaker := resilience.NewCircuitBreaker(config.ServiceGooglePlaces,
		resilience.CircuitFromConfig(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs))
	ttl := time.Duration(cfg.Cache.LocationTTLHours) * time.Hour
	return New(client, gateway, breaker, store, ttl)
}

// Breaker exposes the resolver's circuit breaker for status reporting.
func (r *Resolver) Breaker() *resilience.CircuitBreaker {
	return r.breaker
}

// Query joins the non-empty parts of a lookup with ", ".
func Query(name, address, unit string) string {
	var parts []string
	for _, p := range []string{name, address, unit} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Resolve returns the first place matching name, address and unit.
func (r *Resolver) Resolve(ctx context.Context, name, address, unit string) (model.Location, bool) {
	log := zap.L().With(
		zap.String("unit", unit),
		zap.String("candidate", name),
		zap.String("stage", string(model.StageResolving)),
	)

	if r.client == nil {
		r.warnOnce.Do(func() {
			zap.L().Warn("locate: no places API key configured, locations will be absent")
		})
		return model.Location{}, false
	}

	q := Query(name, address, unit)
	if q == "" {
		return model.Location{}, false
	}

	key := "places:" + strings.ToLower(q)
	var loc model.Location
	if r.cache != nil && r.cache.Load(cache.NamespaceAPIResponses, key, &loc) {
		log.Debug("locate: cache hit")
		return loc, true
	}

	search := google.SearchRequest{Query: q, PageSize: 1}
	resp, err := resilience.Call(ctx, r.breaker, func(ctx context.Context) (*google.SearchResponse, error) {
		return resilience.Send(ctx, r.gateway, config.ServiceGooglePlaces, func(ctx context.Context) (*google.SearchResponse, error) {
			return r.client.TextSearch(ctx, search)
		})
	})
	if err != nil {
		log.Warn("locate: lookup failed", zap.String("query", q), zap.Error(err))
		return model.Location{}, false
	}
	p, ok := resp.First()
	if !ok {
		log.Info("locate: no results", zap.String("query", q))
		return model.Location{}, false
	}
	if !p.Located() {
		log.Info("locate: first result has no location", zap.String("query", q))
		return model.Location{}, false
	}
	loc = model.Location{
		Lat:              p.Location.Latitude,
		Lon:              p.Location.Longitude,
		PlaceID:          p.ID,
		DisplayName:      p.DisplayName.Text,
		FormattedAddress: p.FormattedAddress,
	}

	if r.cache != nil {
		if err := r.cache.Save(cache.NamespaceAPIResponses, key, loc, r.ttl); err != nil {
			log.Warn("locate: cache save failed", zap.Error(err))
		}
	}
	return loc, true
}
