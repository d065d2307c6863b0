package buildcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bengal-ssg/bengal/internal/content"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestHasChangedDetectsNewAndUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.md")
	writeFile(t, src, "hello")

	c := New(filepath.Join(dir, "cache.json"))

	changed, err := c.HasChanged(src)
	require.NoError(t, err)
	assert.True(t, changed, "file with no prior fingerprint must be reported changed")

	require.NoError(t, c.RecordFingerprint(src))

	changed, err = c.HasChanged(src)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHasChangedDetectsContentChangeEvenWithoutMtimeHint(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "page.md")
	writeFile(t, src, "v1")

	c := New(filepath.Join(dir, "cache.json"))
	require.NoError(t, c.RecordFingerprint(src))

	// Force an identical mtime/size but different content, simulating a
	// same-second edit where mtime granularity can't distinguish versions.
	prior := c.Fingerprints[src]
	writeFile(t, src, "v2")
	current, err := FingerprintFile(src)
	require.NoError(t, err)
	c.Fingerprints[src] = Fingerprint{MtimeNS: current.MtimeNS, Size: current.Size, SHA256: prior.SHA256}

	changed, err := c.HasChanged(src)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPageNeedsRenderOnMissingRecord(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"))

	needs := c.PageNeedsRender(PageInputs{Identity: "content/index.md", InputHash: "abc", OutputPath: filepath.Join(dir, "index.html")})
	assert.True(t, needs)
}

func TestPageNeedsRenderDetectsHashAndTemplateChanges(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "index.html")
	writeFile(t, out, "<html></html>")

	c := New(filepath.Join(dir, "cache.json"))
	in := PageInputs{Identity: "content/index.md", InputHash: "h1", TemplateHash: "t1", OutputPath: out}
	c.RecordPage(in)

	assert.False(t, c.PageNeedsRender(in), "unchanged inputs with output present must not need render")

	changedHash := in
	changedHash.InputHash = "h2"
	assert.True(t, c.PageNeedsRender(changedHash))

	changedTemplate := in
	changedTemplate.TemplateHash = "t2"
	assert.True(t, c.PageNeedsRender(changedTemplate))
}

func TestPageNeedsRenderWhenOutputMissing(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"))
	in := PageInputs{Identity: "content/index.md", InputHash: "h1", OutputPath: filepath.Join(dir, "never-written.html")}
	c.RecordPage(in)

	assert.True(t, c.PageNeedsRender(in))
}

func TestPageNeedsRenderFollowsDependencies(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "index.html")
	writeFile(t, out, "<html></html>")
	partial := filepath.Join(dir, "header.html")
	writeFile(t, partial, "v1")

	c := New(filepath.Join(dir, "cache.json"))
	require.NoError(t, c.RecordFingerprint(partial))

	in := PageInputs{Identity: "content/index.md", InputHash: "h1", OutputPath: out, Dependencies: []string{partial}}
	c.RecordPage(in)
	assert.False(t, c.PageNeedsRender(in))

	writeFile(t, partial, "v2")
	assert.True(t, c.PageNeedsRender(in))
}

func TestRecordPageUpdatesDependentsReverseIndex(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"))

	c.RecordPage(PageInputs{Identity: "a.md", Dependencies: []string{"layout.html"}})
	c.RecordPage(PageInputs{Identity: "b.md", Dependencies: []string{"layout.html"}})

	deps := c.PagesDependentOn("layout.html")
	assert.True(t, deps["a.md"])
	assert.True(t, deps["b.md"])

	// Re-recording a.md without the dependency must drop it from the
	// reverse index, not leave a stale entry.
	c.RecordPage(PageInputs{Identity: "a.md"})
	deps = c.PagesDependentOn("layout.html")
	assert.False(t, deps["a.md"])
	assert.True(t, deps["b.md"])
}

func TestAddDependencyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := New(filepath.Join(dir, "cache.json"))

	c.AddDependency("a.md", "data/authors.yaml")
	c.AddDependency("a.md", "data/authors.yaml")

	assert.Len(t, c.Pages["a.md"].Dependencies, 1)
	assert.True(t, c.PagesDependentOn("data/authors.yaml")["a.md"])
}

func TestSaveOnlyWritesWhenDirty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	c := New(path)

	require.NoError(t, c.Save())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Save on a clean cache must not touch disk")

	c.AddDependency("a.md", "b.md")
	require.NoError(t, c.Save())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadRoundTripsAndRebuildsDependents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")

	c := New(path)
	c.RecordPage(PageInputs{Identity: "a.md", InputHash: "h1", Dependencies: []string{"layout.html"}})
	require.NoError(t, c.Save())

	reloaded := Load(path)
	assert.Equal(t, "h1", reloaded.Pages["a.md"].InputHash)
	assert.True(t, reloaded.PagesDependentOn("layout.html")["a.md"])
}

func TestLoadDiscardsOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeFile(t, path, `{"version": 999, "fingerprints": {}, "pages": {}}`)

	c := Load(path)
	assert.Equal(t, FormatVersion, c.Version)
	assert.Empty(t, c.Pages)
}

func TestLoadDiscardsOnCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	writeFile(t, path, `{not valid json`)

	c := Load(path)
	assert.Equal(t, FormatVersion, c.Version)
}

func TestLoadDiscardsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	c := Load(filepath.Join(dir, "does-not-exist.json"))
	assert.Equal(t, FormatVersion, c.Version)
	assert.NotNil(t, c.Fingerprints)
}

func TestTaxonomyIndexRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.idx")

	pages := []*content.Page{
		{SourcePath: "posts/a.md", Tags: []string{"go", "testing"}},
		{SourcePath: "posts/b.md", Tags: []string{"go"}},
	}
	ts := content.BuildTaxonomies(pages, []string{"tags"})
	require.NoError(t, ts.VerifySync())
	require.NoError(t, SaveTaxonomyIndex(path, ts))

	loaded, ok := LoadTaxonomyIndex(path)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Forward["tags"]["go"].PageCount)
}

func TestLoadTaxonomyIndexDiscardsOnSyncViolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.idx")
	// Forward references a page the reverse index doesn't know about.
	writeFile(t, path, `{
		"Forward": {"tags": {"go": {"Term": "go", "Slug": "go", "PagePaths": {"posts/a.md": true}, "PageCount": 1}}},
		"Reverse": {}
	}`)

	_, ok := LoadTaxonomyIndex(path)
	assert.False(t, ok)
}

func TestLoadTaxonomyIndexDiscardsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, ok := LoadTaxonomyIndex(filepath.Join(dir, "missing.idx"))
	assert.False(t, ok)
}
