package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
	"github.com/bengal-ssg/bengal/internal/buildcache"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/markdown"
	"github.com/bengal-ssg/bengal/internal/nav"
	"github.com/bengal-ssg/bengal/internal/tmplengine"
)

// fallbackErrorHTML replaces a page's output when both its markdown and its
// resolved template fail to produce anything usable, so a build with
// recorded errors still leaves every page's output path populated.
const fallbackErrorHTML = `<!DOCTYPE html><html><body><h1>Render error</h1><p>This page failed to render. See the build log for details.</p></body></html>`

// runRendering renders every page in site through the markdown pipeline and
// the template engine, writing each output atomically, across a worker pool
// of size min(max_workers, CPU_count), or a single worker when
// Build.Parallel is off (spec §4.8 "phase: rendering"). A per-page markdown
// or template error is recorded in session and the page falls back to
// fallbackErrorHTML; an output write failure is fatal: no further pages are
// started and the error is returned.
func (o *Orchestrator) runRendering(ctx context.Context, site *content.Site, menus map[string]*nav.Tree, opts Options, cache *buildcache.Cache, session *bengalerr.Session, stats *BuildStats) error {
	pages := site.AllPages()

	// Cancelled on the first write failure so no further pages start.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	xrefs := buildXRefIndex(pages)
	data, err := content.LoadDataFiles(opts.DataDir)
	if err != nil {
		session.RecordError(bengalerr.New(bengalerr.KindIO, "data/load_failed", err.Error(),
			bengalerr.InPhase("rendering")))
		stats.RecordWarning("data")
		data = map[string]any{}
	}
	dataFiles := content.DataFilePaths(opts.DataDir)
	siteCtx := tmplengine.NewSiteContext(opts.Config, site, menus, data)

	workers := 1
	if opts.Config.Build.Parallel {
		workers = maxWorkers(opts.Config.Build.MaxWorkers)
	}

	var parserPool sync.Pool
	var ioErrOnce sync.Once
	var ioErr error

	var depMu sync.Mutex
	touchedDeps := make(map[string]bool, len(dataFiles))
	for _, dp := range dataFiles {
		touchedDeps[dp] = true
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, page := range pages {
		page := page
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}

			wp, _ := parserPool.Get().(*markdown.WorkerParser)
			if wp == nil || wp.Stale() {
				wp = o.mdPipeline.AcquireParser()
			}
			defer parserPool.Put(wp)

			xrefDeps := xrefDependencyPaths(page, opts.ContentDir)
			if len(xrefDeps) > 0 {
				depMu.Lock()
				for _, dep := range xrefDeps {
					touchedDeps[dep] = true
				}
				depMu.Unlock()
			}

			if err := o.renderOne(site, page, wp, siteCtx, xrefs, opts, cache, session, stats, append(append([]string(nil), dataFiles...), xrefDeps...)); err != nil {
				ioErrOnce.Do(func() {
					ioErr = err
					cancel()
				})
				return
			}
			if opts.Callbacks.OnPageRendered != nil {
				opts.Callbacks.OnPageRendered(page)
			}
		})
	}
	p.Wait()

	// Record the current state of every dependency touched this build, so
	// the next build's HasChanged comparison has a baseline (spec §4.4
	// "Dependency sources": data files and cross-reference targets).
	for dep := range touchedDeps {
		_ = cache.RecordFingerprint(dep)
	}

	return ioErr
}

// xrefDependencyPaths returns the absolute source paths of every page that
// page's raw content cross-references via [[target]] syntax, so an edit to
// the referenced page invalidates this one too (spec §4.4 "Dependency
// sources": "all pages whose cross-reference target they resolve").
func xrefDependencyPaths(page *content.Page, contentDir string) []string {
	targets := markdown.ExtractXRefTargets(page.RawContent)
	if len(targets) == 0 {
		return nil
	}
	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		paths = append(paths, filepath.Join(contentDir, filepath.FromSlash(t)+".md"))
	}
	return paths
}

// buildXRefIndex maps every page's source identity (its SourcePath with the
// extension stripped) to its resolved Href, for the markdown pipeline's
// [[page/path]] cross-reference substitution (spec §4.7 step 4).
func buildXRefIndex(pages []*content.Page) markdown.XRefIndex {
	idx := make(markdown.XRefIndex, len(pages))
	for _, p := range pages {
		if p.SourcePath == "" {
			continue
		}
		key := strings.TrimSuffix(p.SourcePath, ".md")
		idx[key] = p.Href
	}
	return idx
}

// renderOne renders and writes a single page. It is called concurrently by
// runRendering's worker pool; the Page it touches is owned exclusively by
// the calling worker for the duration of the call (spec §5 ownership model).
func (o *Orchestrator) renderOne(
	site *content.Site,
	page *content.Page,
	wp *markdown.WorkerParser,
	siteCtx *tmplengine.SiteContext,
	xrefs markdown.XRefIndex,
	opts Options,
	cache *buildcache.Cache,
	session *bengalerr.Session,
	stats *BuildStats,
	dependencies []string,
) error {
	outputPath := OutputPathForPage(opts.OutputDir, page.Path)

	sectionName := ""
	if sec := site.Section(page.SectionID); sec != nil {
		sectionName = strings.TrimPrefix(sec.Path, "/")
	}
	templateName := o.engine.Resolve(page.Type.String(), sectionName, page.Layout)

	in := buildcache.PageInputs{
		Identity:     page.SourcePath,
		InputHash:    pageInputHash(page),
		TemplateHash: o.engine.TemplateHash(templateName),
		OutputPath:   outputPath,
		Dependencies: dependencies,
	}

	if !page.Virtual && page.SourcePath != "" && !cache.PageNeedsRender(in) {
		stats.RecordCacheHit(0)
		page.OutputPath = outputPath
		return nil
	}
	stats.RecordCacheMiss()

	if page.RawContent != "" {
		result, directiveErrs := wp.Render([]byte(page.RawContent), markdown.PostprocessOptions{
			BaseURL:      opts.Config.Site.BaseURL,
			XRefs:        xrefs,
			InjectBadges: page.Type == content.PageTypeSingle,
		})
		for _, derr := range directiveErrs {
			session.RecordError(bengalerr.New(bengalerr.KindContent, "content/directive_error", derr.Error(),
				bengalerr.At(page.SourcePath, 0), bengalerr.InPhase("rendering")))
			stats.RecordWarning("directive")
		}
		page.ParsedAST = result.HTML
		page.TOC = result.TOC
		stats.RecordDirectives(strings.Count(page.RawContent, ":::") / 2)
	}

	pageCtx := tmplengine.NewPageContext(site, page, siteCtx)

	var output []byte
	switch {
	case templateName == "":
		session.RecordError(bengalerr.New(bengalerr.KindTemplate, "template/not_found",
			fmt.Sprintf("no template resolved for page %q (type=%s, section=%q)", page.SourcePath, page.Type, sectionName),
			bengalerr.InPhase("rendering")))
		stats.RecordError("template")
		output = []byte(fallbackErrorHTML)
	default:
		rendered, err := o.engine.Execute(templateName, pageCtx)
		if err != nil {
			session.RecordError(bengalerr.New(bengalerr.KindTemplate, "template/execution_failed", err.Error(),
				bengalerr.At(page.SourcePath, 0), bengalerr.InPhase("rendering"), bengalerr.Because(err)))
			stats.RecordError("template")
			output = []byte(fallbackErrorHTML)
		} else {
			output = rendered
		}
	}
	page.RenderedHTML = string(output)
	page.OutputPath = outputPath

	if err := WriteFileAtomic(outputPath, output); err != nil {
		return fmt.Errorf("orchestrator: rendering %s: %w", page.SourcePath, err)
	}
	stats.RecordWrite(int64(len(output)))

	cache.RecordPage(in)
	return nil
}

// pageInputHash hashes a page's raw content and sorted, stringified
// metadata, so a front-matter-only edit also invalidates the cache entry
// (spec §4.4 "input_hash covers source content and frontmatter").
func pageInputHash(page *content.Page) string {
	h := sha256.New()
	h.Write([]byte(page.RawContent))

	keys := make([]string, 0, len(page.Metadata))
	for k := range page.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\n", k, page.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
