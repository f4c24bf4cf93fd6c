package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testOptions(dir string) ConfigOptions {
	return ConfigOptions{
		BasePath:  dir,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "INSTAFIT",
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":            DevMode,
		"dev":         DevMode,
		"production":  ProMode,
		" PROD ":      ProMode,
		"pro":         ProMode,
		"test":        TestMode,
		"testing":     TestMode,
		"unknown-env": DevMode,
	}

	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), "ParseMode(%q)", in)
	}
}

func TestModeFileNames(t *testing.T) {
	assert.Equal(t,
		[]string{"config", "config.local", "config.test", "config.test.local"},
		TestMode.fileNames("config"))
	assert.Equal(t,
		[]string{"config", "config.local", "config.production", "config.production.local", "config.prod", "config.prod.local"},
		ProMode.fileNames("config"))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, "square", s.Defaults.Format)
	assert.Equal(t, "cover", s.Defaults.FitMode)
	assert.Equal(t, "#ffffff", s.Defaults.Background)
	assert.Equal(t, "lanczos", s.Render.Engine)
	assert.Equal(t, 100000000, s.Render.MaxSourcePixels)
	assert.True(t, s.Render.AutoOrient)
	assert.Equal(t, 2, s.Pipeline.Workers)
	assert.Equal(t, 16, s.Pipeline.QueueSize)
	assert.True(t, s.Pipeline.CacheDecoded)
	assert.Equal(t, "en", s.Locale)
	assert.Equal(t, "downloads", s.Download.Dir)
	assert.True(t, s.Logging.LogInTerminal)
	require.NoError(t, s.Validate())
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"format", func(s *Settings) { s.Defaults.Format = "landscape" }},
		{"fit mode", func(s *Settings) { s.Defaults.FitMode = "fill" }},
		{"background", func(s *Settings) { s.Defaults.Background = "" }},
		{"engine", func(s *Settings) { s.Render.Engine = "bilinear" }},
		{"max pixels", func(s *Settings) { s.Render.MaxSourcePixels = 0 }},
		{"workers", func(s *Settings) { s.Pipeline.Workers = 0 }},
		{"locale", func(s *Settings) { s.Locale = "fr" }},
		{"log level", func(s *Settings) { s.Logging.Level = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestLoadMergesModeFiles(t *testing.T) {
	t.Setenv(ModeEnvKey, "test")
	dir := t.TempDir()

	writeFile(t, dir, "config.yaml", `
defaults:
  format: vertical
  fit-mode: contain
render:
  engine: catmullrom
pipeline:
  cache-decoded: false
`)
	writeFile(t, dir, "config.test.yaml", `
defaults:
  format: story
locale: es
`)

	s, err := Load(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "story", s.Defaults.Format, "mode file overrides base file")
	assert.Equal(t, "contain", s.Defaults.FitMode)
	assert.Equal(t, "#ffffff", s.Defaults.Background, "missing keys keep their defaults")
	assert.Equal(t, "catmullrom", s.Render.Engine)
	assert.False(t, s.Pipeline.CacheDecoded, "explicit false survives defaults")
	assert.True(t, s.Render.AutoOrient)
	assert.Equal(t, "es", s.Locale)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(ModeEnvKey, "development")
	t.Setenv("INSTAFIT_RENDER_ENGINE", "nfnt")
	t.Setenv("INSTAFIT_PIPELINE_WORKERS", "4")
	dir := t.TempDir()

	writeFile(t, dir, "config.yaml", `
render:
  engine: lanczos
pipeline:
  workers: 1
`)

	s, err := Load(testOptions(dir))
	require.NoError(t, err)
	assert.Equal(t, "nfnt", s.Render.Engine)
	assert.Equal(t, 4, s.Pipeline.Workers)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(ModeEnvKey, "development")
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "defaults:\n  fit-mode: stretch\n")

	_, err := Load(testOptions(dir))
	assert.ErrorContains(t, err, "config validation failed")
}

func TestLoadWithoutFiles(t *testing.T) {
	_, err := Load(testOptions(t.TempDir()))
	assert.ErrorContains(t, err, "no valid configuration files")
}

func TestConfigGetSet(t *testing.T) {
	t.Setenv(ModeEnvKey, "development")
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "locale: en\n")

	cfg, err := NewConfig(testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Get("locale"))
	cfg.Set("locale", "es")
	assert.Equal(t, "es", cfg.Get("locale"))
}

func TestWatchDeliversReloadedSettings(t *testing.T) {
	t.Setenv(ModeEnvKey, "development")
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
defaults:
  format: vertical
`)

	reloaded := make(chan Settings, 8)
	s, err := Watch(testOptions(dir), func(s Settings, err error) {
		if err == nil {
			reloaded <- s
		}
	})
	require.NoError(t, err)
	assert.Equal(t, "vertical", s.Defaults.Format)

	writeFile(t, dir, "config.yaml", `
defaults:
  format: story
locale: es
`)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-reloaded:
			if got.Defaults.Format != "story" {
				continue
			}
			assert.Equal(t, "es", got.Locale)
			assert.Equal(t, "cover", got.Defaults.FitMode, "missing keys get their defaults")
			assert.True(t, got.Pipeline.CacheDecoded)
			return
		case <-deadline:
			t.Fatal("no reload after the config file changed")
		}
	}
}

func TestWatchReportsInvalidReload(t *testing.T) {
	t.Setenv(ModeEnvKey, "development")
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "locale: en\n")

	failures := make(chan error, 8)
	_, err := Watch(testOptions(dir), func(_ Settings, err error) {
		if err != nil {
			failures <- err
		}
	})
	require.NoError(t, err)

	writeFile(t, dir, "config.yaml", "locale: fr\n")

	select {
	case err := <-failures:
		assert.Contains(t, err.Error(), "validation")
	case <-time.After(5 * time.Second):
		t.Fatal("invalid reload was not reported")
	}
}
