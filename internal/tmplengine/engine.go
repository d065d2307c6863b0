// Package tmplengine implements the C6 template engine: resilient nil-safe
// attribute access, line-aware runtime errors, an LRU of compiled templates
// keyed by source path and content hash, and the site's URL/menu/filter
// contract (spec §4.6).
package tmplengine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
	"github.com/bengal-ssg/bengal/internal/markdown"
)

// compiledTemplate is one entry in the Engine's LRU: the parsed template set
// plus the content hash it was built from, so a stale cache hit can be
// detected even if two different sources happen to share a path.
type compiledTemplate struct {
	contentHash string
	tmpl        *template.Template
}

// Engine wraps html/template with Bengal's layout resolution, sandboxed
// filters, and compiled-template LRU.
type Engine struct {
	templates *template.Template
	cache     *compiledCache
	baseURL   string
	pageIndex map[string]string // page identity -> href, for url_for
	logger    *zap.Logger
	md        *markdown.Pipeline

	// rawSource holds each template's unparsed file content, keyed by
	// name, retained only to compute depHash's transitive closure.
	rawSource map[string]string
	// depHash is the aggregate hash of a template plus every partial it
	// reaches via {{template "..."}} actions or partial "..." calls, so
	// editing a partial invalidates every page whose layout calls it
	// (spec §4.4 "Dependency sources").
	depHash map[string]string
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger attaches a zap logger used for legacy-alias deprecation
// warnings and compile diagnostics.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithPageIndex supplies the identity->href map backing the url_for global.
func WithPageIndex(idx map[string]string) Option {
	return func(e *Engine) { e.pageIndex = idx }
}

// WithMarkdownPipeline wires the `markdown` filter to a shared C7 pipeline
// rather than a plain-text fallback.
func WithMarkdownPipeline(p *markdown.Pipeline) Option {
	return func(e *Engine) { e.md = p }
}

// New creates a template Engine by loading .html files from the theme
// layouts directory and optionally overlaying user layout files on top.
// User layouts with the same relative path override theme layouts,
// mirroring the teacher's theme/user overlay order.
func New(themePath, userLayoutPath, baseURL string, opts ...Option) (*Engine, error) {
	e := &Engine{
		cache:   newCompiledCache(256),
		baseURL: baseURL,
	}
	for _, o := range opts {
		o(e)
	}

	themeLayoutDir := filepath.Join(themePath, "layouts")
	files, err := collectTemplateFiles(themeLayoutDir)
	if err != nil {
		return nil, fmt.Errorf("tmplengine: loading theme templates from %s: %w", themeLayoutDir, err)
	}
	if userLayoutPath != "" {
		userFiles, err := collectTemplateFiles(userLayoutPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("tmplengine: loading user templates from %s: %w", userLayoutPath, err)
		}
		maps.Copy(files, userFiles)
	}

	root := template.New("")
	e.rawSource = make(map[string]string, len(files))
	for name, filePath := range files {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("tmplengine: reading template %s: %w", filePath, err)
		}
		t := root.New(name).Funcs(e.FuncMap(name, e.md))
		if _, err := t.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("tmplengine: parsing template %s: %w", name, err)
		}
		hash := contentHash(content)
		e.cache.put(name+"\x00"+hash, &compiledTemplate{contentHash: hash, tmpl: root})
		e.rawSource[name] = string(content)
	}
	e.templates = root
	e.depHash = make(map[string]string, len(e.rawSource))
	for name := range e.rawSource {
		e.depHash[name] = e.computeDepHash(name, make(map[string]bool))
	}

	return e, nil
}

// templateRefPattern matches {{template "name" ...}} actions.
var templateRefPattern = regexp.MustCompile(`\{\{-?\s*template\s+"([^"]+)"`)

// partialRefPattern matches partial "name" ... calls, the Go-func route
// templates use to include a named partial (spec §4.6 "partial" global).
var partialRefPattern = regexp.MustCompile(`partial(?:Cached)?\s+"([^"]+)"`)

// resolvePartialName mirrors ExecutePartial's lookup order: try the name
// under partials/ first, then the bare name.
func (e *Engine) resolvePartialName(name string) (string, bool) {
	candidate := name
	if !strings.HasPrefix(name, "partials/") {
		candidate = "partials/" + name
	}
	if _, ok := e.rawSource[candidate]; ok {
		return candidate, true
	}
	if _, ok := e.rawSource[name]; ok {
		return name, true
	}
	return "", false
}

// computeDepHash returns the aggregate content hash of name and every
// template or partial it transitively references, so a change to a called
// partial is visible in the hash of every template that calls it even
// though the caller's own bytes never changed.
func (e *Engine) computeDepHash(name string, visiting map[string]bool) string {
	content, ok := e.rawSource[name]
	if !ok {
		return ""
	}
	if visiting[name] {
		// Dependency cycle: stop recursing, contribute this template's own
		// content only.
		return contentHash([]byte(content))
	}
	visiting[name] = true
	defer delete(visiting, name)

	hashes := map[string]string{name: contentHash([]byte(content))}

	for _, m := range templateRefPattern.FindAllStringSubmatch(content, -1) {
		dep := m[1]
		if _, ok := e.rawSource[dep]; !ok {
			continue
		}
		if _, seen := hashes[dep]; seen {
			continue
		}
		hashes[dep] = e.computeDepHash(dep, visiting)
	}
	for _, m := range partialRefPattern.FindAllStringSubmatch(content, -1) {
		dep, ok := e.resolvePartialName(m[1])
		if !ok {
			continue
		}
		if _, seen := hashes[dep]; seen {
			continue
		}
		hashes[dep] = e.computeDepHash(dep, visiting)
	}

	names := make([]string, 0, len(hashes))
	for n := range hashes {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		fmt.Fprintf(h, "%s=%s\n", n, hashes[n])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// collectTemplateFiles walks a directory and returns a map of template name
// (relative path, forward-slashed) to absolute file path for all .html
// files.
func collectTemplateFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)

	info, err := os.Stat(dir)
	if err != nil {
		return files, err
	}
	if !info.IsDir() {
		return files, fmt.Errorf("%s is not a directory", dir)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = path
		return nil
	})

	return files, err
}

// Resolve returns the name of the first matching template for the given
// page type, section, and explicit layout override, following spec §4.6's
// layout resolution order. Returns "" if nothing matches.
func (e *Engine) Resolve(pageType, section, layout string) string {
	var candidates []string

	switch pageType {
	case "single":
		if layout != "" {
			candidates = append(candidates, section+"/"+layout+".html")
		}
		candidates = append(candidates, section+"/single.html")
		if layout != "" {
			candidates = append(candidates, "_default/"+layout+".html")
		}
		candidates = append(candidates, "_default/single.html")
	case "list":
		candidates = append(candidates, section+"/list.html", "_default/list.html")
	case "home":
		candidates = append(candidates, "index.html", "_default/list.html")
	case "taxonomy":
		candidates = append(candidates, section+"/taxonomy.html", "_default/taxonomy.html", "_default/list.html")
	case "taxonomylist":
		candidates = append(candidates, section+"/terms.html", "_default/terms.html", "_default/list.html")
	}

	for _, name := range candidates {
		if e.templates.Lookup(name) != nil {
			return name
		}
	}
	return ""
}

// HasTemplate reports whether a template with the given name exists.
func (e *Engine) HasTemplate(name string) bool {
	return e.templates.Lookup(name) != nil
}

// Execute renders the named template with ctx (normally a *PageContext) and
// returns the output bytes. Execution errors are wrapped into a coded,
// line-aware *bengalerr.Error (spec §4.6 "Line-aware errors").
func (e *Engine) Execute(templateName string, ctx any) ([]byte, error) {
	t := e.templates.Lookup(templateName)
	if t == nil {
		return nil, bengalerr.New(bengalerr.KindTemplate, "template/not_found",
			fmt.Sprintf("template %q not found", templateName),
			bengalerr.InPhase("rendering"),
		)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return nil, wrapExecError(templateName, err)
	}
	return buf.Bytes(), nil
}

// ExecutePartial renders a named partial template (looked up with and
// without the "partials/" prefix) and returns safe HTML, for use by the
// `partial` global.
func (e *Engine) ExecutePartial(name string, ctx any) (template.HTML, error) {
	tmplName := name
	if !strings.HasPrefix(name, "partials/") {
		tmplName = "partials/" + name
	}
	t := e.templates.Lookup(tmplName)
	if t == nil {
		t = e.templates.Lookup(name)
	}
	if t == nil {
		return "", fmt.Errorf("tmplengine: partial %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", wrapExecError(tmplName, err)
	}
	return template.HTML(buf.String()), nil
}

// CacheSize returns the number of compiled templates currently retained in
// the LRU, exposed for diagnostics and tests.
func (e *Engine) CacheSize() int { return e.cache.len() }

// ClearCache empties the compiled-template LRU, for registration as a
// cacheregistry.Entry ClearFn (spec §4.4 "Cache registry").
func (e *Engine) ClearCache() { e.cache.clear() }

// TemplateHash returns the aggregate content hash of a resolved template
// name and every partial it transitively calls, for the build cache's
// per-page TemplateHash field (C4). Editing a partial changes this hash
// for every template that calls it, even if the calling template's own
// bytes are untouched. Returns "" if name was never compiled.
func (e *Engine) TemplateHash(name string) string {
	return e.depHash[name]
}
