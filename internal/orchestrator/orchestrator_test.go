package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengal-ssg/bengal/internal/bengallog"
	"github.com/bengal-ssg/bengal/internal/cacheregistry"
	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/markdown"
	"github.com/bengal-ssg/bengal/internal/nav"
	"github.com/bengal-ssg/bengal/internal/tmplengine"
)

const singleLayout = `<!DOCTYPE html><html><head><title>{{.Title}}</title></head><body>{{.Content}}</body></html>`
const listLayout = `<!DOCTYPE html><html><body><h1>{{.Title}}</h1></body></html>`
const homeLayout = `<!DOCTYPE html><html><body>home: {{.Site.Title}}</body></html>`

func newFixtureSite(t *testing.T) (contentDir, themeDir, outputDir, cachePath string) {
	t.Helper()
	root := t.TempDir()

	contentDir = filepath.Join(root, "content")
	require.NoError(t, os.MkdirAll(filepath.Join(contentDir, "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "first-post.md"), []byte(
		"---\ntitle: First Post\ndate: 2026-01-01\ntags: [\"go\"]\n---\nHello **world**.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "blog", "_index.md"), []byte(
		"---\ntitle: Blog\n---\n"), 0o644))

	themeDir = filepath.Join(root, "theme")
	layoutDir := filepath.Join(themeDir, "layouts")
	require.NoError(t, os.MkdirAll(filepath.Join(layoutDir, "_default"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "_default", "single.html"), []byte(singleLayout), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "_default", "list.html"), []byte(listLayout), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(layoutDir, "index.html"), []byte(homeLayout), 0o644))

	outputDir = filepath.Join(root, "public")
	cachePath = filepath.Join(root, "cache.json")
	return
}

func newTestOrchestrator(t *testing.T, themeDir string) *Orchestrator {
	t.Helper()
	engine, err := tmplengine.New(themeDir, "", "https://example.com")
	require.NoError(t, err)

	mdPipeline := markdown.New(markdown.Config{})
	registry := cacheregistry.New(bengallog.ForTest())
	navCache := nav.NewCache()

	return New(engine, mdPipeline, registry, navCache)
}

func TestOrchestratorRunRendersPagesAndArtifacts(t *testing.T) {
	contentDir, themeDir, outputDir, cachePath := newFixtureSite(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	cfg.Site.Title = "Example"
	cfg.Site.BaseURL = "https://example.com"

	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	result, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StateClosed, result.State)
	assert.False(t, result.Session.HasErrors())

	postHTML, err := os.ReadFile(filepath.Join(outputDir, "blog", "first-post", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(postHTML), "First Post")
	assert.Contains(t, string(postHTML), "<strong>world</strong>")

	_, err = os.Stat(filepath.Join(outputDir, "sitemap.xml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "robots.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "index.xml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(outputDir, "search-index.json"))
	assert.NoError(t, err)

	assert.GreaterOrEqual(t, result.Stats.CacheMisses+result.Stats.CacheHits, 1)
}

func TestOrchestratorSecondRunHitsCache(t *testing.T) {
	contentDir, themeDir, outputDir, cachePath := newFixtureSite(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	cfg.Site.Title = "Example"
	cfg.Site.BaseURL = "https://example.com"

	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	_, err := o.Run(context.Background(), opts)
	require.NoError(t, err)

	result, err := o.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Greater(t, result.Stats.CacheHits, 0, "unchanged content should hit the build cache on the second run")
}

func TestOrchestratorRunFailsFastOnCancelledContext(t *testing.T) {
	contentDir, themeDir, outputDir, cachePath := newFixtureSite(t)
	o := newTestOrchestrator(t, themeDir)

	cfg := config.Default()
	opts := Options{
		Config:     cfg,
		ContentDir: contentDir,
		OutputDir:  outputDir,
		CachePath:  cachePath,
		Mode:       content.ModeDefault,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Run(ctx, opts)
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
}
