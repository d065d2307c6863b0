package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscoverMissingContentDirIsFatal(t *testing.T) {
	session := bengalerr.NewSession(100)
	_, err := Discover(filepath.Join(t.TempDir(), "missing"), true, ModeDefault, session)
	if err == nil {
		t.Fatal("Discover with missing content dir: want error, got nil")
	}
	berr, ok := err.(*bengalerr.Error)
	if !ok {
		t.Fatalf("Discover error type = %T, want *bengalerr.Error", err)
	}
	if berr.Code != "D001" {
		t.Errorf("Discover error code = %q, want D001", berr.Code)
	}
}

func TestDiscoverDuplicateURLIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A\npermalink: /dup/\n---\nbody")
	writeFile(t, filepath.Join(dir, "b.md"), "---\ntitle: B\npermalink: /dup/\n---\nbody")

	session := bengalerr.NewSession(100)
	_, err := Discover(dir, true, ModeDefault, session)
	if err == nil {
		t.Fatal("Discover with colliding permalinks: want fatal error, got nil")
	}
	berr, ok := err.(*bengalerr.Error)
	if !ok {
		t.Fatalf("Discover error type = %T, want *bengalerr.Error", err)
	}
	if berr.Code != "discovery/duplicate_url" {
		t.Errorf("Discover error code = %q, want discovery/duplicate_url", berr.Code)
	}
}

func TestDiscoverDistinctPathsSucceed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "---\ntitle: A\n---\nbody")
	writeFile(t, filepath.Join(dir, "b.md"), "---\ntitle: B\n---\nbody")

	session := bengalerr.NewSession(100)
	site, err := Discover(dir, true, ModeDefault, session)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(site.AllPages()) != 2 {
		t.Errorf("Discover() returned %d pages, want 2", len(site.AllPages()))
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"My_Post_Title", "my-post-title"},
		{"UPPERCASE", "uppercase"},
		{"  spaces  ", "spaces"},
		{"special!@#$%chars", "specialchars"},
		{"multiple---hyphens", "multiple-hyphens"},
		{"file.name.ext", "file.name.ext"},
		{"---leading-trailing---", "leading-trailing"},
	}

	for _, tt := range tests {
		got := slugify(tt.input)
		if got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
