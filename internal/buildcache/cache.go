// Package buildcache implements the C4 durable build cache: content-hash
// fingerprints, page staleness decisions, and a dependency graph used to
// propagate invalidation to pages that reference a changed file (spec
// §4.4).
package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FormatVersion is bumped whenever the on-disk cache shape changes. Reading
// a cache written with a different version discards it (spec §4.4
// "Version/format").
const FormatVersion = 1

// Fingerprint is the recorded freshness state for one source file.
type Fingerprint struct {
	MtimeNS  int64  `json:"mtime_ns"` // cheap hint only; never trusted alone
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// PageRecord is the recorded staleness state for one page's last
// successful render.
type PageRecord struct {
	InputHash    string   `json:"input_hash"`
	TemplateHash string   `json:"template_hash"`
	OutputPath   string   `json:"output_path"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Cache is the durable, on-disk build cache. All mutating methods are
// concurrency-safe; Save is idempotent and only touches disk when dirty.
type Cache struct {
	mu sync.Mutex

	Version int `json:"version"`

	Fingerprints map[string]Fingerprint `json:"fingerprints"`
	Pages        map[string]PageRecord  `json:"pages"`

	// dependents[dep] = set of page identities depending on dep, the
	// reverse of PageRecord.Dependencies, rebuilt from it on Load.
	dependents map[string]map[string]bool

	path  string
	dirty bool
}

// New returns an empty Cache backed by path (not yet written to disk).
func New(path string) *Cache {
	return &Cache{
		Version:      FormatVersion,
		Fingerprints: make(map[string]Fingerprint),
		Pages:        make(map[string]PageRecord),
		dependents:   make(map[string]map[string]bool),
		path:         path,
	}
}

// Load reads the cache at path. A missing file, a corrupt file, or a
// version mismatch all yield a fresh empty Cache rather than an error,
// since a build cache is always safe to discard (spec §4.4).
func Load(path string) *Cache {
	c := New(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var onDisk Cache
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return c
	}
	if onDisk.Version != FormatVersion {
		return c
	}
	if onDisk.Fingerprints == nil {
		onDisk.Fingerprints = make(map[string]Fingerprint)
	}
	if onDisk.Pages == nil {
		onDisk.Pages = make(map[string]PageRecord)
	}
	onDisk.path = path
	onDisk.dependents = make(map[string]map[string]bool)
	onDisk.rebuildDependents()
	return &onDisk
}

func (c *Cache) rebuildDependents() {
	for page, rec := range c.Pages {
		for _, dep := range rec.Dependencies {
			if c.dependents[dep] == nil {
				c.dependents[dep] = make(map[string]bool)
			}
			c.dependents[dep][page] = true
		}
	}
}

// Save writes the cache to disk if it has unsaved changes.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("buildcache: creating cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("buildcache: marshaling: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("buildcache: writing %s: %w", c.path, err)
	}
	c.dirty = false
	return nil
}

// FingerprintFile computes the current Fingerprint of a file on disk.
func FingerprintFile(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{
		MtimeNS: info.ModTime().UnixNano(),
		Size:    info.Size(),
		SHA256:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// HasChanged reports whether sourcePath's current on-disk content differs
// from its last recorded Fingerprint. The SHA-256 content hash decides;
// the recorded mtime and size are hints only and never decide on their own.
func (c *Cache) HasChanged(sourcePath string) (bool, error) {
	current, err := FingerprintFile(sourcePath)
	if err != nil {
		return true, err
	}

	c.mu.Lock()
	prior, ok := c.Fingerprints[sourcePath]
	c.mu.Unlock()

	if !ok {
		return true, nil
	}
	return prior.SHA256 != current.SHA256, nil
}

// RecordFingerprint stores sourcePath's current Fingerprint.
func (c *Cache) RecordFingerprint(sourcePath string) error {
	fp, err := FingerprintFile(sourcePath)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Fingerprints[sourcePath] = fp
	c.dirty = true
	return nil
}

// PageInputs describes the inputs that determine a page's staleness,
// independent of the content package's Page type so this package has no
// import-cycle dependency on it.
type PageInputs struct {
	Identity     string // Page.SourcePath
	InputHash    string // hash of source content + frontmatter
	TemplateHash string
	OutputPath   string
	Dependencies []string // other source paths this page's render depends on
}

// PageNeedsRender reports whether a page must be re-rendered: its own
// input hash differs from the last recorded one, the template hash
// changed, any dependency changed, or the output file is missing.
func (c *Cache) PageNeedsRender(in PageInputs) bool {
	c.mu.Lock()
	rec, ok := c.Pages[in.Identity]
	c.mu.Unlock()

	if !ok {
		return true
	}
	if rec.InputHash != in.InputHash || rec.TemplateHash != in.TemplateHash {
		return true
	}
	if _, err := os.Stat(rec.OutputPath); err != nil {
		return true
	}
	for _, dep := range in.Dependencies {
		if changed, _ := c.HasChanged(dep); changed {
			return true
		}
	}
	return false
}

// RecordPage stores a page's fingerprint state. Per spec §4.4 "Writeback
// timing", callers must only call this AFTER a page's render has
// succeeded and been written to disk, so a crash mid-build never marks a
// stale page as up to date.
func (c *Cache) RecordPage(in PageInputs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Remove this page from the old dependents sets before replacing.
	if old, ok := c.Pages[in.Identity]; ok {
		for _, dep := range old.Dependencies {
			delete(c.dependents[dep], in.Identity)
		}
	}

	deps := append([]string(nil), in.Dependencies...)
	sort.Strings(deps)
	c.Pages[in.Identity] = PageRecord{
		InputHash:    in.InputHash,
		TemplateHash: in.TemplateHash,
		OutputPath:   in.OutputPath,
		Dependencies: deps,
	}
	for _, dep := range deps {
		if c.dependents[dep] == nil {
			c.dependents[dep] = make(map[string]bool)
		}
		c.dependents[dep][in.Identity] = true
	}
	c.dirty = true
}

// AddDependency records that page depends on dep (a template, partial,
// data file, or cross-reference target), without altering page's recorded
// staleness fingerprint.
func (c *Cache) AddDependency(page, dep string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.Pages[page]
	if !ok {
		rec = PageRecord{}
	}
	for _, existing := range rec.Dependencies {
		if existing == dep {
			return
		}
	}
	rec.Dependencies = append(rec.Dependencies, dep)
	sort.Strings(rec.Dependencies)
	c.Pages[page] = rec

	if c.dependents[dep] == nil {
		c.dependents[dep] = make(map[string]bool)
	}
	c.dependents[dep][page] = true
	c.dirty = true
}

// PagesDependentOn returns the set of page identities that depend on dep.
func (c *Cache) PagesDependentOn(dep string) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]bool, len(c.dependents[dep]))
	for p := range c.dependents[dep] {
		out[p] = true
	}
	return out
}
