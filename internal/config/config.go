package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service names shared by the rate limiter, gateway and circuit breakers.
const (
	ServiceOpenAI       = "openai"
	ServiceAnthropic    = "anthropic"
	ServiceGooglePlaces = "google_places"
)

// Config holds the full application configuration.
type Config struct {
	LLM        LLMConfig          `yaml:"llm" mapstructure:"llm"`
	OpenAI     OpenAIConfig       `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Google     GoogleConfig       `yaml:"google" mapstructure:"google"`
	Contentful ContentfulConfig   `yaml:"contentful" mapstructure:"contentful"`
	RateLimits map[string]float64 `yaml:"rate_limits" mapstructure:"rate_limits"`
	Retry      RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig      `yaml:"circuit" mapstructure:"circuit"`
	Cache      CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Pipeline   PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Articles   ArticlesConfig     `yaml:"articles" mapstructure:"articles"`
	Store      StoreConfig        `yaml:"store" mapstructure:"store"`
	Pricing    PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Server     ServerConfig       `yaml:"server" mapstructure:"server"`
	Log        LogConfig          `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects the generation provider and its sampling parameters.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenAIConfig holds OpenAI-compatible chat completion settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GoogleConfig holds Places API settings.
type GoogleConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ContentfulConfig holds the CMS export envelope settings.
type ContentfulConfig struct {
	SpaceID     string `yaml:"space_id" mapstructure:"space_id"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	ContentType string `yaml:"content_type" mapstructure:"content_type"`
	Locale      string `yaml:"locale" mapstructure:"locale"`
}

// RetryConfig configures backoff for outbound calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// CircuitConfig configures the places circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CacheConfig configures the file cache.
type CacheConfig struct {
	Dir                string `yaml:"dir" mapstructure:"dir"`
	GenerationTTLHours int    `yaml:"generation_ttl_hours" mapstructure:"generation_ttl_hours"`
	LocationTTLHours   int    `yaml:"location_ttl_hours" mapstructure:"location_ttl_hours"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	OutputDir    string `yaml:"output_dir" mapstructure:"output_dir"`
	ProgressFile string `yaml:"progress_file" mapstructure:"progress_file"`
	Author       string `yaml:"author" mapstructure:"author"`
}

// ArticlesConfig configures standalone article generation.
type ArticlesConfig struct {
	Input     string `yaml:"input" mapstructure:"input"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PricingConfig holds per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Error reports configuration that prevents a command from starting.
type Error struct {
	Mode     string
	Problems []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: invalid for %s: %s", e.Mode, strings.Join(e.Problems, "; "))
}

// Model returns the model name for the configured provider.
func (c *Config) Model() string {
	if c.LLM.Provider == ServiceAnthropic {
		return c.Anthropic.Model
	}
	return c.OpenAI.Model
}

// Validate checks the settings a command needs. Modes: "run" and
// "articles" need the generation credential for the selected provider,
// "export" needs the Contentful space, "serve" needs a port. The places key
// is never required: without it candidates simply go unresolved.
func (c *Config) Validate(mode string) error {
	var problems []string
	switch mode {
	case "run", "articles":
		switch c.LLM.Provider {
		case ServiceOpenAI:
			if c.OpenAI.Key == "" {
				problems = append(problems, "openai.key is required (OPENAI_API_KEY)")
			}
		case ServiceAnthropic:
			if c.Anthropic.Key == "" {
				problems = append(problems, "anthropic.key is required (ANTHROPIC_API_KEY)")
			}
		default:
			problems = append(problems, fmt.Sprintf("llm.provider %q is not one of openai, anthropic", c.LLM.Provider))
		}
		if c.Retry.MaxAttempts < 1 {
			problems = append(problems, "retry.max_attempts must be >= 1")
		}
	case "export":
		if c.Contentful.SpaceID == "" {
			problems = append(problems, "contentful.space_id is required (CONTENTFUL_SPACE_ID)")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(problems) > 0 {
		return &Error{Mode: mode, Problems: problems}
	}
	return nil
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CAFE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known provider variables.
	for key, envs := range map[string][]string{
		"openai.key":          {"CAFE_OPENAI_KEY", "OPENAI_API_KEY"},
		"openai.model":        {"CAFE_OPENAI_MODEL", "OPENAI_MODEL"},
		"anthropic.key":       {"CAFE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
		"google.key":          {"CAFE_GOOGLE_KEY", "GOOGLE_MAPS_API_KEY"},
		"contentful.space_id": {"CAFE_CONTENTFUL_SPACE_ID", "CONTENTFUL_SPACE_ID"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("llm.provider", ServiceOpenAI)
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-5-mini-2025-08-07")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.timeout_secs", 30)
	v.SetDefault("contentful.environment", "master")
	v.SetDefault("contentful.content_type", "cafeReview")
	v.SetDefault("contentful.locale", "en-US")
	v.SetDefault("rate_limits", map[string]float64{
		ServiceOpenAI:       10,
		ServiceAnthropic:    10,
		ServiceGooglePlaces: 10,
	})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 120000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)
	v.SetDefault("cache.dir", ".cache")
	v.SetDefault("cache.generation_ttl_hours", 24*7)
	v.SetDefault("cache.location_ttl_hours", 24*30)
	v.SetDefault("pipeline.dir", "output/pipeline")
	v.SetDefault("pipeline.output_dir", "output")
	v.SetDefault("pipeline.progress_file", "output/collection_progress.json")
	v.SetDefault("pipeline.author", "Chris Jordan")
	v.SetDefault("articles.input", "articles/input/input.json")
	v.SetDefault("articles.output_dir", "articles/outputs")
	v.SetDefault("store.path", "output/runs.db")
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-sonnet-4-5-20250929": map[string]float64{"input": 3.0, "output": 15.0},
		"claude-haiku-4-5-20251001":  map[string]float64{"input": 1.0, "output": 5.0},
	})
	v.SetDefault("pricing.openai", map[string]any{
		"gpt-5-mini-2025-08-07": map[string]float64{"input": 0.25, "output": 2.0},
	})
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
