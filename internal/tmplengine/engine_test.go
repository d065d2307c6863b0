package tmplengine

import (
	"html/template"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemplate(t *testing.T, dir, rel, contents string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
}

func newTestEngine(t *testing.T, layouts map[string]string, opts ...Option) *Engine {
	t.Helper()
	themeDir := t.TempDir()
	for rel, contents := range layouts {
		writeTemplate(t, themeDir, filepath.Join("layouts", rel), contents)
	}
	eng, err := New(themeDir, "", "", opts...)
	require.NoError(t, err)
	return eng
}

func TestNewLoadsThemeLayouts(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"_default/single.html":  `{{ .Title }}`,
		"index.html":            `home`,
		"partials/header.html":  `<header>{{ .Site.Title }}</header>`,
	})
	assert.True(t, eng.HasTemplate("_default/single.html"))
	assert.True(t, eng.HasTemplate("index.html"))
	assert.True(t, eng.HasTemplate("partials/header.html"))
	assert.False(t, eng.HasTemplate("does/not/exist.html"))
}

func TestUserLayoutsOverrideTheme(t *testing.T) {
	themeDir := t.TempDir()
	writeTemplate(t, themeDir, "layouts/index.html", "theme version")
	userDir := t.TempDir()
	writeTemplate(t, userDir, "index.html", "user version")

	eng, err := New(themeDir, userDir, "")
	require.NoError(t, err)

	out, err := eng.Execute("index.html", nil)
	require.NoError(t, err)
	assert.Equal(t, "user version", string(out))
}

func TestResolveLayoutOrder(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"_default/single.html": "default single",
		"blog/single.html":     "blog single",
		"index.html":           "home",
	})

	tests := []struct {
		name     string
		pageType string
		section  string
		layout   string
		want     string
	}{
		{"single falls back to default", "single", "docs", "", "_default/single.html"},
		{"single prefers section override", "single", "blog", "", "blog/single.html"},
		{"home resolves to index", "home", "", "", "index.html"},
		{"unmatched taxonomy resolves empty", "taxonomy", "docs", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eng.Resolve(tt.pageType, tt.section, tt.layout))
		})
	}
}

func TestExecuteRendersPageContext(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"_default/baseof.html": `<!DOCTYPE html><body>{{ block "main" . }}{{ end }}</body>`,
		"_default/single.html": `{{ define "main" }}<h1>{{ .Title }}</h1>{{ .Content }}{{ end }}`,
	})

	ctx := &PageContext{
		Title:   "Test Post",
		Content: template.HTML("<p>hello</p>"),
		Site:    &SiteContext{Title: "My Site"},
	}
	out, err := eng.Execute("_default/baseof.html", ctx)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>Test Post</h1>")
	assert.Contains(t, string(out), "<p>hello</p>")
}

func TestExecuteMissingTemplateReturnsNotFoundCode(t *testing.T) {
	eng := newTestEngine(t, map[string]string{"index.html": "home"})
	_, err := eng.Execute("nope.html", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template/not_found")
}

func TestExecuteAttachesTemplateAndLineOnRuntimeError(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"broken.html": "line one\n{{ .Missing.Deep }}",
	})
	_, err := eng.Execute("broken.html", struct{ Other string }{Other: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.html")
}

func TestExecutePartialResolvesUnderPartialsPrefix(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"partials/header.html": `<header>{{ .Site.Title }}</header>`,
	})
	out, err := eng.ExecutePartial("header.html", &PageContext{Site: &SiteContext{Title: "My Site"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "My Site")
}

func TestPartialFuncMapGlobalInvokesNestedTemplate(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"partials/header.html": `<header>{{ .Site.Title }}</header>`,
		"index.html":           `{{ partial "header.html" . }}`,
	})
	out, err := eng.Execute("index.html", &PageContext{Site: &SiteContext{Title: "Bengal"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<header>Bengal</header>")
}

func TestCacheSizeTracksLoadedTemplates(t *testing.T) {
	eng := newTestEngine(t, map[string]string{
		"a.html": "a",
		"b.html": "b",
	})
	assert.Equal(t, 2, eng.CacheSize())
}

func TestTemplateHashChangesWhenCalledPartialChanges(t *testing.T) {
	themeDir := t.TempDir()
	writeTemplate(t, themeDir, "layouts/partials/header.html", `<header>v1</header>`)
	writeTemplate(t, themeDir, "layouts/index.html", `{{ partial "header.html" . }}`)

	eng1, err := New(themeDir, "", "")
	require.NoError(t, err)
	hash1 := eng1.TemplateHash("index.html")
	require.NotEmpty(t, hash1)

	writeTemplate(t, themeDir, "layouts/partials/header.html", `<header>v2</header>`)

	eng2, err := New(themeDir, "", "")
	require.NoError(t, err)
	hash2 := eng2.TemplateHash("index.html")

	assert.NotEqual(t, hash1, hash2, "editing a called partial must change the caller's TemplateHash")
}

func TestTemplateHashStableWhenUnrelatedTemplateChanges(t *testing.T) {
	themeDir := t.TempDir()
	writeTemplate(t, themeDir, "layouts/index.html", `home`)
	writeTemplate(t, themeDir, "layouts/about.html", `v1`)

	eng1, err := New(themeDir, "", "")
	require.NoError(t, err)
	hash1 := eng1.TemplateHash("index.html")

	writeTemplate(t, themeDir, "layouts/about.html", `v2`)

	eng2, err := New(themeDir, "", "")
	require.NoError(t, err)
	hash2 := eng2.TemplateHash("index.html")

	assert.Equal(t, hash1, hash2, "an unrelated template's change must not affect index.html's hash")
}
