//go:build !integration

package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cafe-review-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "articles", "export", "progress", "cache", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "cafe-review-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for flag, def := range map[string]string{
		"input":     "cities.csv",
		"mapping":   "city_mapping.json",
		"city":      "",
		"from-step": "1",
		"no-export": "false",
	} {
		f := runCmd.Flags().Lookup(flag)
		require.NotNil(t, f, "run command should have --%s", flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestExportOptionsForStep(t *testing.T) {
	for step, skip := range map[int]bool{1: false, 4: false, 5: false, 6: true, 7: true} {
		assert.Equal(t, skip, exportOptionsForStep(step).SkipXLSX, "step %d", step)
		assert.Empty(t, exportOptionsForStep(step).ContentfulPath, "step %d", step)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	for _, flag := range []string{"contentful-output", "xlsx-output", "no-xlsx"} {
		assert.NotNil(t, exportCmd.Flags().Lookup(flag), flag)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestInitPipeline_MissingKeyFailsBeforeOpeningAnything(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.LLM.Provider = config.ServiceOpenAI
	cfg.Retry.MaxAttempts = 3
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Store.Path = filepath.Join(dir, "runs.db")

	_, err := initPipeline(t.Context())
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr), "expected *config.Error, got %v", err)
	assert.NoDirExists(t, cfg.Cache.Dir)
	assert.NoFileExists(t, cfg.Store.Path)
}

func TestInitPipeline_Wires(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.LLM.Provider = config.ServiceAnthropic
	cfg.Anthropic.Key = "test"
	cfg.Retry.MaxAttempts = 3
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.Store.Path = filepath.Join(dir, "runs.db")
	cfg.Pipeline.Dir = filepath.Join(dir, "pipeline")
	cfg.Pipeline.ProgressFile = filepath.Join(dir, "progress.json")

	env, err := initPipeline(t.Context())
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Store)
	assert.DirExists(t, cfg.Cache.Dir)
}

func TestArticlesCommand_Flags(t *testing.T) {
	for _, flag := range []string{"input", "output-dir"} {
		f := articlesCmd.Flags().Lookup(flag)
		require.NotNil(t, f, "articles command should have --%s", flag)
		assert.Empty(t, f.DefValue, flag)
	}
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
}

func TestInitArticleWriter_MissingKeyFailsBeforeOpeningAnything(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.LLM.Provider = config.ServiceOpenAI
	cfg.Retry.MaxAttempts = 3
	cfg.Cache.Dir = filepath.Join(dir, "cache")

	_, _, err := initArticleWriter()
	var cfgErr *config.Error
	require.True(t, errors.As(err, &cfgErr), "expected *config.Error, got %v", err)
	assert.Equal(t, "articles", cfgErr.Mode)
	assert.NoDirExists(t, cfg.Cache.Dir)
}

func TestInitArticleWriter_Wires(t *testing.T) {
	dir := t.TempDir()
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.LLM.Provider = config.ServiceOpenAI
	cfg.OpenAI.Key = "test"
	cfg.Retry.MaxAttempts = 3
	cfg.Cache.Dir = filepath.Join(dir, "cache")

	w, tally, err := initArticleWriter()
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.NotNil(t, tally)
	assert.DirExists(t, cfg.Cache.Dir)
}

func TestApplyLogFlags(t *testing.T) {
	t.Cleanup(func() { logLevel, logFormat = "", "" })

	c := &config.Config{Log: config.LogConfig{Level: "info", Format: "json"}}
	applyLogFlags(c)
	assert.Equal(t, config.LogConfig{Level: "info", Format: "json"}, c.Log)

	logLevel, logFormat = "debug", "console"
	applyLogFlags(c)
	assert.Equal(t, config.LogConfig{Level: "debug", Format: "console"}, c.Log)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, flag := range []string{"log-level", "log-format"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, version, rootCmd.Version)
}
