package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
)

const dataAwareSingleLayout = `<!DOCTYPE html><html><body>{{.Content}} team={{.Site.Data.team.lead}}</body></html>`

func newDataAndXRefFixture(t *testing.T) (contentDir, dataDir, themeDir, outputDir, cachePath string) {
	t.Helper()
	root := t.TempDir()

	contentDir = filepath.Join(root, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "first-post.md"), []byte(
		"---\ntitle: First Post\n---\nSee [[blog/second-post]] for more.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "second-post.md"), []byte(
		"---\ntitle: Second Post\n---\nBody.\n"), 0o644))

	dataDir = filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "team.yaml"), []byte("lead: Ada\n"), 0o644))

	themeDir = filepath.Join(root, "theme")
	layoutDir := filepath.Join(themeDir, "layouts")
	require.NoError(t, os.MkdirAll(filepath.Join(layoutDir, "_default"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "_default", "single.html"), []byte(dataAwareSingleLayout), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "_default", "list.html"), []byte(listLayout), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "index.html"), []byte(homeLayout), 0o644))

	outputDir = filepath.Join(root, "public")
	cachePath = filepath.Join(root, "cache.json")
	return
}

func TestRenderingExposesDataFilesToTemplates(t *testing.T) {
	contentDir, dataDir, themeDir, outputDir, cachePath := newDataAndXRefFixture(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	cfg.Site.BaseURL = "https://example.com"

	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		DataDir:    dataDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	result, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, result.Session.HasErrors())

	html, err := os.ReadFile(filepath.Join(outputDir, "blog", "first-post", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "team=Ada")
}

func TestRenderingInvalidatesPageWhenDataFileChanges(t *testing.T) {
	contentDir, dataDir, themeDir, outputDir, cachePath := newDataAndXRefFixture(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	cfg.Site.BaseURL = "https://example.com"
	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		DataDir:    dataDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	_, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "team.yaml"), []byte("lead: Grace\n"), 0o644))

	result, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Greater(t, result.Stats.CacheMisses, 0, "a changed data file must force a re-render of pages that depend on it")

	html, err := os.ReadFile(filepath.Join(outputDir, "blog", "first-post", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "team=Grace")
}

func TestRenderingInvalidatesPageWhenXRefTargetChanges(t *testing.T) {
	contentDir, dataDir, themeDir, outputDir, cachePath := newDataAndXRefFixture(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	cfg.Site.BaseURL = "https://example.com"
	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		DataDir:    dataDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	_, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	// An unchanged rebuild gives the baseline: pages that re-render on
	// every build, with both content pages hitting the cache.
	baseline, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	// Editing the cross-referenced target page (not the referencing page
	// itself) must still invalidate the referencing page's cache entry.
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "second-post.md"), []byte(
		"---\ntitle: Second Post Renamed\n---\nUpdated body.\n"), 0o644))

	result, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	// Both the edited target and the page referencing it must miss.
	assert.Greater(t, result.Stats.CacheMisses, baseline.Stats.CacheMisses+1, "a changed xref target must force a re-render of the referencing page")
}
