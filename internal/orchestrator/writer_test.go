package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPathForPage(t *testing.T) {
	cases := map[string]string{
		"/":              filepath.Join("out", "index.html"),
		"/blog/":         filepath.Join("out", "blog", "index.html"),
		"/blog/post":     filepath.Join("out", "blog", "post", "index.html"),
		"/robots.txt":    filepath.Join("out", "robots.txt"),
		"/feed/atom.xml": filepath.Join("out", "feed", "atom.xml"),
	}
	for path, want := range cases {
		assert.Equal(t, want, OutputPathForPage("out", path), "path %q", path)
	}
}

func TestOutputPathForAsset(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "css", "site.css"), OutputPathForAsset("out", "/css/site.css"))
}

func TestWriteFileAtomicCreatesFileAndParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "page", "index.html")

	require.NoError(t, WriteFileAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteFileAtomicLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, WriteFileAtomic(path, []byte("v1")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "index.html", entries[0].Name())
}

func TestWriteFileAtomicOverwritesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, WriteFileAtomic(path, []byte("v1")))
	require.NoError(t, WriteFileAtomic(path, []byte("v2")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.css")
	dst := filepath.Join(dir, "out", "dst.css")
	require.NoError(t, os.WriteFile(src, []byte("body{}"), 0o644))

	n, err := CopyFileAtomic(src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, len("body{}"), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}

func TestCleanDirRecreatesEmpty(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "stale.html"), []byte("x"), 0o644))

	require.NoError(t, CleanDir(target))

	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDirSizeSumsRegularFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.html"), []byte("12345"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.html"), []byte("12"), 0o644))

	size, err := DirSize(dir)
	require.NoError(t, err)
	assert.EqualValues(t, 7, size)
}

func TestDirSizeMissingDirIsZero(t *testing.T) {
	size, err := DirSize(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Zero(t, size)
}
