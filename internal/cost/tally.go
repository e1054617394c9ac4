package cost

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Line is the accumulated usage of one provider model.
type Line struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Calls    int     `json:"calls"`
	Usage    Usage   `json:"usage"`
	CostUSD  float64 `json:"estimated_cost_usd"`
}

type lineKey struct{ provider, model string }

// Tally accumulates usage across calls. It is safe for concurrent use.
type Tally struct {
	calc *Calculator

	mu    sync.Mutex
	lines map[lineKey]*Line
}

// NewTally creates an empty tally priced by calc.
func NewTally(calc *Calculator) *Tally {
	return &Tally{calc: calc, lines: make(map[lineKey]*Line)}
}

// Record adds one call, logs its cost attribution and returns the call's cost.
func (t *Tally) Record(provider, model, phase string, u Usage) float64 {
	cost := t.calc.Cost(provider, model, u)

	t.mu.Lock()
	k := lineKey{provider, model}
	l, ok := t.lines[k]
	if !ok {
		l = &Line{Provider: provider, Model: model}
		t.lines[k] = l
	}
	l.Calls++
	l.Usage = l.Usage.add(u)
	l.CostUSD += cost
	t.mu.Unlock()

	zap.L().Info("cost attribution",
		zap.String("service", provider),
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.Input),
		zap.Int64("output_tokens", u.Output),
		zap.Int64("cache_write_tokens", u.CacheWrite),
		zap.Int64("cache_read_tokens", u.CacheRead),
		zap.Float64("estimated_cost_usd", cost),
	)
	return cost
}

// Lines returns a snapshot ordered by provider then model.
func (t *Tally) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Line, 0, len(t.lines))
	for _, l := range t.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Total returns the accumulated cost in USD.
func (t *Tally) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum float64
	for _, l := range t.lines {
		sum += l.CostUSD
	}
	return sum
}
