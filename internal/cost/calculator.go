// Package cost prices generation calls and keeps a per-run tally.
package cost

import (
	"github.com/sells-group/cafe-review-cli/internal/config"
)

// Anthropic prompt caching multipliers on the input rate.
const (
	cacheWriteMul = 1.25
	cacheReadMul  = 0.1
)

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64
	Output        float64
	CacheWriteMul float64
	CacheReadMul  float64
}

// Usage counts the tokens of one call.
type Usage struct {
	Input      int64 `json:"input_tokens"`
	Output     int64 `json:"output_tokens"`
	CacheWrite int64 `json:"cache_write_tokens,omitempty"`
	CacheRead  int64 `json:"cache_read_tokens,omitempty"`
}

func (u Usage) add(o Usage) Usage {
	return Usage{
		Input:      u.Input + o.Input,
		Output:     u.Output + o.Output,
		CacheWrite: u.CacheWrite + o.CacheWrite,
		CacheRead:  u.CacheRead + o.CacheRead,
	}
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates map[string]map[string]ModelRate
}

// NewCalculator builds rates from the configured pricing tables, keyed by
// provider service name.
func NewCalculator(p config.PricingConfig) *Calculator {
	rates := map[string]map[string]ModelRate{
		config.ServiceAnthropic: {},
		config.ServiceOpenAI:    {},
	}
	for model, mp := range p.Anthropic {
		rates[config.ServiceAnthropic][model] = ModelRate{
			Input: mp.Input, Output: mp.Output,
			CacheWriteMul: cacheWriteMul, CacheReadMul: cacheReadMul,
		}
	}
	for model, mp := range p.OpenAI {
		rates[config.ServiceOpenAI][model] = ModelRate{Input: mp.Input, Output: mp.Output}
	}
	return &Calculator{rates: rates}
}

// Rate returns the pricing for a provider's model.
func (c *Calculator) Rate(provider, model string) (ModelRate, bool) {
	r, ok := c.rates[provider][model]
	return r, ok
}

// Cost returns the USD cost of one call. Unknown models cost 0.
func (c *Calculator) Cost(provider, model string, u Usage) float64 {
	rate, ok := c.Rate(provider, model)
	if !ok {
		return 0
	}

	inCost := (float64(u.Input) / 1e6) * rate.Input
	outCost := (float64(u.Output) / 1e6) * rate.Output
	cwCost := (float64(u.CacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}
