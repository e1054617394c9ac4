package generate

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/cafe-review-cli/internal/config"
	"github.com/sells-group/cafe-review-cli/internal/cost"
	"github.com/sells-group/cafe-review-cli/pkg/anthropic"
	"github.com/sells-group/cafe-review-cli/pkg/openai"
)

// Prompt phases, used for cost attribution.
const (
	PhaseList   = "list"
	PhaseEnrich = "enrich"
)

// Prompt is a single system + user exchange.
type Prompt struct {
	Phase  string
	System string
	User   string
}

// Provider sends one prompt to a text generation service and returns the
// response text. Name doubles as the rate limiter service key.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Sampling holds the request parameters shared by every provider.
type Sampling struct {
	Temperature float64
	MaxTokens   int
}

// OpenAIProvider generates text through an OpenAI-compatible chat API.
type OpenAIProvider struct {
	client   openai.Client
	model    string
	sampling Sampling
	tally    *cost.Tally
}

// NewOpenAIProvider wraps client. A nil tally disables cost accounting.
func NewOpenAIProvider(client openai.Client, model string, s Sampling, tally *cost.Tally) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: model, sampling: s, tally: tally}
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return config.ServiceOpenAI }

// Model implements Provider.
func (p *OpenAIProvider) Model() string { return p.model }

// Complete implements Provider. A response without choices yields "".
func (p *OpenAIProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	temp := p.sampling.Temperature
	maxTokens := p.sampling.MaxTokens
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.Message{
			{Role: "system", Content: pr.System},
			{Role: "user", Content: pr.User},
		},
		Temperature: &temp,
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	resp, err := p.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if p.tally != nil {
		p.tally.Record(p.Name(), p.model, pr.Phase, cost.Usage{
			Input:  int64(resp.Usage.PromptTokens),
			Output: int64(resp.Usage.CompletionTokens),
		})
	}
	if len(resp.Choices) == 0 {
		zap.L().Warn("generate: response has no choices", zap.String("model", p.model))
	}
	return resp.Content(), nil
}

// AnthropicProvider generates text through the Anthropic Messages API.
type AnthropicProvider struct {
	client   anthropic.Client
	model    string
	sampling Sampling
	tally    *cost.Tally
}

// NewAnthropicProvider wraps client. A nil tally disables cost accounting.
func NewAnthropicProvider(client anthropic.Client, model string, s Sampling, tally *cost.Tally) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: model, sampling: s, tally: tally}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return config.ServiceAnthropic }

// Model implements Provider.
func (p *AnthropicProvider) Model() string { return p.model }

// Complete implements Provider. The system prompt carries a cache breakpoint
// since it repeats across every candidate of a run.
func (p *AnthropicProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	temp := p.sampling.Temperature
	maxTokens := int64(p.sampling.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	resp, err := p.client.Complete(ctx, anthropic.Request{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      pr.System,
		Prompt:      pr.User,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	if p.tally != nil {
		p.tally.Record(p.Name(), p.model, pr.Phase, cost.Usage(resp.Usage))
	}
	if resp.Truncated() {
		zap.L().Warn("generate: response hit the token limit",
			zap.String("model", p.model),
			zap.String("phase", pr.Phase),
			zap.Int64("max_tokens", maxTokens),
		)
	}
	return resp.Text, nil
}

// NewProvider builds the provider selected by cfg.LLM.Provider. Usage is
// recorded into tally when it is non-nil.
func NewProvider(cfg *config.Config, tally *cost.Tally) Provider {
	s := Sampling{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}
	switch cfg.LLM.Provider {
	case config.ServiceAnthropic:
		return NewAnthropicProvider(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model, s, tally,
		)
	default:
		var opts []openai.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		return NewOpenAIProvider(
			openai.NewClient(cfg.OpenAI.Key, opts...),
			cfg.OpenAI.Model, s, tally,
		)
	}
}
