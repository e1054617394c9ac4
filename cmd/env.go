package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cafe-review-cli/internal/article"
	"github.com/sells-group/cafe-review-cli/internal/cache"
	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/cost"
	"github.com/sells-group/cafe-review-cli/internal/generate"
	"github.com/sells-group/cafe-review-cli/internal/locate"
	"github.com/sells-group/cafe-review-cli/internal/pipeline"
	"github.com/sells-group/cafe-review-cli/internal/progress"
	"github.com/sells-group/cafe-review-cli/internal/resilience"
	"github.com/sells-group/cafe-review-cli/internal/store"
)

// pipelineEnv holds everything a pipeline run needs.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store
	Cost     *cost.Tally
}

// Close releases the ledger.
func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the run ledger.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open run ledger")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate run ledger")
	}
	return st, nil
}

// newGateway builds the shared outbound gateway from config.
func newGateway(c *config.Config) *resilience.Gateway {
	timeouts := map[string]time.Duration{}
	if c.LLM.TimeoutSecs > 0 {
		d := time.Duration(c.LLM.TimeoutSecs) * time.Second
		timeouts[config.ServiceOpenAI] = d
		timeouts[config.ServiceAnthropic] = d
	}
	if c.Google.TimeoutSecs > 0 {
		timeouts[config.ServiceGooglePlaces] = time.Duration(c.Google.TimeoutSecs) * time.Second
	}

	retry := resilience.PolicyFromConfig(c.Retry.MaxAttempts, c.Retry.BaseDelayMs, c.Retry.MaxDelayMs)
	return resilience.NewGateway(resilience.NewRateLimiter(c.RateLimits), resilience.GatewayConfig{
		Retry:    retry,
		Timeouts: timeouts,
	})
}

func hours(h int) time.Duration {
	return time.Duration(h) * time.Hour
}

// initPipeline wires the generation client, location resolver, cache,
// progress tracker and ledger into a Pipeline. Credentials are checked
// before anything is opened.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}

	tally := cost.NewTally(cost.NewCalculator(cfg.Pricing))
	gw := newGateway(cfg)
	gen := generate.New(generate.NewProvider(cfg, tally), gw, c, generate.Config{
		Author:      cfg.Pipeline.Author,
		ResponseTTL: hours(cfg.Cache.GenerationTTLHours),
	})
	loc := locate.NewFromConfig(cfg, gw, c)
	tracker := progress.NewTracker(cfg.Pipeline.ProgressFile)

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	return &pipelineEnv{
		Pipeline: pipeline.New(cfg, gen, loc, c, tracker, st),
		Store:    st,
		Cost:     tally,
	}, nil
}

// initArticleWriter wires the generation provider, gateway and response
// cache into an article writer. Credentials are checked first.
func initArticleWriter() (*article.Writer, *cost.Tally, error) {
	if err := cfg.Validate("articles"); err != nil {
		return nil, nil, err
	}

	c, err := cache.Open(cfg.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}

	tally := cost.NewTally(cost.NewCalculator(cfg.Pricing))
	w := article.New(generate.NewProvider(cfg, tally), newGateway(cfg), c, article.Config{
		Author:      cfg.Pipeline.Author,
		Locale:      cfg.Contentful.Locale,
		ResponseTTL: hours(cfg.Cache.GenerationTTLHours),
	})
	return w, tally, nil
}
