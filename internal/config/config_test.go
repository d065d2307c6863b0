package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bengal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndFileValues(t *testing.T) {
	path := writeTempConfig(t, `
site:
  title: My Site
  baseurl: /bengal
build:
  parallel: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "My Site", cfg.Site.Title)
	assert.Equal(t, "/bengal", cfg.Site.BaseURL)
	assert.False(t, cfg.Build.Parallel)
	// Untouched defaults survive.
	assert.Equal(t, "en", cfg.Site.Language)
	assert.Equal(t, 1313, cfg.Server.Port)
}

func TestValidateRejectsMissingTitle(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsTrailingSlashBaseURL(t *testing.T) {
	cfg := Default()
	cfg.Site.Title = "ok"
	cfg.Site.BaseURL = "/bengal/"
	assert.Error(t, cfg.Validate())
}

func TestUnknownKeysPreserved(t *testing.T) {
	path := writeTempConfig(t, `
site:
  title: My Site
unexpected_section:
  foo: bar
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	_, ok := cfg.Unknown["unexpected_section"]
	assert.True(t, ok)
}

func TestWithOverridesAppliesCLIPrecedence(t *testing.T) {
	cfg := Default()
	cfg.Site.Title = "ok"
	baseURL := "/override"
	cfg.WithOverrides(Overrides{BaseURL: &baseURL})
	assert.Equal(t, "/override", cfg.Site.BaseURL)
}
