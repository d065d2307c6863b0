// Package bpath resolves the Bengal project root and its canonical
// subpaths, including the .bengal/ state directory (spec C1).
package bpath

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilenames are the recognised config file names, searched in order.
var configFilenames = []string{
	"bengal.toml",
	"bengal.yaml",
	"bengal.yml",
	"bengal.json",
}

// Paths holds every canonical path derived from a project root.
type Paths struct {
	Root       string
	ConfigFile string // empty if none found
	Content    string
	Assets     string
	Themes     string
	Data       string
	Output     string // default; overridden by config build.output_dir
	BengalDir  string
	CacheDir   string
	LogsDir    string
	ProfilesDir string
}

// Resolve walks upward from start looking for a recognised config file.
// If none is found, start itself is treated as the project root. outputDir,
// when non-empty, overrides the default "public" output directory.
func Resolve(start, outputDir string) (*Paths, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("bpath: resolving absolute path for %q: %w", start, err)
	}

	root, configFile := findRoot(abs)

	if outputDir == "" {
		outputDir = "public"
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(root, outputDir)
	}

	bengalDir := os.Getenv("BENGAL_CACHE_DIR")
	if bengalDir == "" {
		bengalDir = filepath.Join(root, ".bengal")
	} else if !filepath.IsAbs(bengalDir) {
		bengalDir = filepath.Join(root, bengalDir)
	}

	return &Paths{
		Root:        root,
		ConfigFile:  configFile,
		Content:     filepath.Join(root, "content"),
		Assets:      filepath.Join(root, "assets"),
		Themes:      filepath.Join(root, "themes"),
		Data:        filepath.Join(root, "data"),
		Output:      outputDir,
		BengalDir:   bengalDir,
		CacheDir:    filepath.Join(bengalDir, "cache"),
		LogsDir:     filepath.Join(bengalDir, "logs"),
		ProfilesDir: filepath.Join(bengalDir, "profiles"),
	}, nil
}

// findRoot walks upward from dir looking for a config file. It returns the
// directory containing the config file and the config file's absolute
// path, or (dir, "") if none is found anywhere up to the filesystem root.
func findRoot(dir string) (root, configFile string) {
	cur := dir
	for {
		for _, name := range configFilenames {
			candidate := filepath.Join(cur, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return cur, candidate
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir, ""
		}
		cur = parent
	}
}

// EnsureDirs creates the .bengal/{cache,logs,profiles} directories.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.CacheDir, p.LogsDir, p.ProfilesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("bpath: creating %s: %w", d, err)
		}
	}
	return nil
}
