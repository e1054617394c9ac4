package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.InDelta(t, 0.4, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 4000, cfg.LLM.MaxTokens)
	assert.Equal(t, 90, cfg.LLM.TimeoutSecs)
	assert.Equal(t, "gpt-5-mini-2025-08-07", cfg.OpenAI.Model)
	assert.Equal(t, "gpt-5-mini-2025-08-07", cfg.Model())
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Google.BaseURL)
	assert.Equal(t, "cafeReview", cfg.Contentful.ContentType)
	assert.Equal(t, "en-US", cfg.Contentful.Locale)
	assert.InDelta(t, 10, cfg.RateLimits["openai"], 0.001)
	assert.InDelta(t, 10, cfg.RateLimits["google_places"], 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Retry.BaseDelayMs)
	assert.Equal(t, ".cache", cfg.Cache.Dir)
	assert.Equal(t, "Chris Jordan", cfg.Pipeline.Author)
	assert.Equal(t, "articles/input/input.json", cfg.Articles.Input)
	assert.Equal(t, "articles/outputs", cfg.Articles.OutputDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 3.0, cfg.Pricing.Anthropic["claude-sonnet-4-5-20250929"].Input, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
llm:
  provider: anthropic
log:
  level: debug
  format: console
rate_limits:
  openai: 30
  google_places: 60
pipeline:
  author: Jane Roe
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Model())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 30, cfg.RateLimits["openai"], 0.001)
	assert.InDelta(t, 60, cfg.RateLimits["google_places"], 0.001)
	assert.Equal(t, "Jane Roe", cfg.Pipeline.Author)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CAFE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadWellKnownEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_MAPS_API_KEY", "g-test")
	t.Setenv("CONTENTFUL_SPACE_ID", "space1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
	assert.Equal(t, "g-test", cfg.Google.Key)
	assert.Equal(t, "space1", cfg.Contentful.SpaceID)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CAFE_SERVER_PORT=3000\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("CAFE_SERVER_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation depends on.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.LLM.Provider = "openai"
	cfg.Retry.MaxAttempts = 3
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.OpenAI.Key = "sk-key"

	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_MissingCredential(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("run")
	require.Error(t, err)

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "run", cfgErr.Mode)
	assert.Contains(t, err.Error(), "openai.key is required")
}

func TestValidateArticles_SharesRunCredentials(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("articles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai.key is required")

	cfg.OpenAI.Key = "sk-key"
	assert.NoError(t, cfg.Validate("articles"))
}

func TestValidateRun_AnthropicProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "anthropic"
	cfg.OpenAI.Key = "sk-key"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant"
	assert.NoError(t, cfg.Validate("run"))
}

func TestValidateRun_UnknownProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.LLM.Provider = "mistral"

	err := cfg.Validate("run")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "llm.provider")
}

func TestValidateExport(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("export")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "contentful.space_id is required")

	cfg.Contentful.SpaceID = "space"
	assert.NoError(t, cfg.Validate("export"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
