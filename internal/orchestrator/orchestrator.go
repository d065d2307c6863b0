package orchestrator

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
	"github.com/bengal-ssg/bengal/internal/bengallog"
	"github.com/bengal-ssg/bengal/internal/buildcache"
	"github.com/bengal-ssg/bengal/internal/cacheregistry"
	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/markdown"
	"github.com/bengal-ssg/bengal/internal/nav"
	"github.com/bengal-ssg/bengal/internal/tmplengine"
)

// PhaseCallbacks lets a CLI or dev-server dashboard observe phase progress
// synchronously as a build runs (spec §4.8 "Phase streaming").
type PhaseCallbacks struct {
	OnPhaseStart    func(name string)
	OnPhaseComplete func(name string, d time.Duration, detail string)
	OnPageRendered  func(p *content.Page)
}

func (cb PhaseCallbacks) start(name string) {
	if cb.OnPhaseStart != nil {
		cb.OnPhaseStart(name)
	}
}

func (cb PhaseCallbacks) complete(name string, d time.Duration, detail string) {
	if cb.OnPhaseComplete != nil {
		cb.OnPhaseComplete(name, d, detail)
	}
}

// Options configures a single build run.
type Options struct {
	Config     *config.Config
	ContentDir string
	AssetsDir  string
	DataDir    string
	OutputDir  string
	CachePath  string

	Mode content.BuildMode

	Callbacks PhaseCallbacks
}

// Orchestrator drives builds against shared, long-lived components: the
// template engine, markdown pipeline, cache registry, and NavTree cache
// persist across builds (e.g. across dev-server rebuilds), while the build
// cache, error session, and BuildContext/BuildStats are constructed fresh
// per build.
type Orchestrator struct {
	engine     *tmplengine.Engine
	mdPipeline *markdown.Pipeline
	registry   *cacheregistry.Registry
	navCache   *nav.Cache
	logger     *zap.Logger
}

// New returns an Orchestrator wired to the given long-lived components.
func New(engine *tmplengine.Engine, mdPipeline *markdown.Pipeline, registry *cacheregistry.Registry, navCache *nav.Cache) *Orchestrator {
	return &Orchestrator{
		engine:     engine,
		mdPipeline: mdPipeline,
		registry:   registry,
		navCache:   navCache,
		logger:     bengallog.L(),
	}
}

// Result is returned by Run: the finished Site graph (useful for dev-server
// incremental diffing), the error session, accumulated stats, and the
// final BuildContext state.
type Result struct {
	Site    *content.Site
	Session *bengalerr.Session
	Stats   *BuildStats
	State   State
}

// Run executes one full build: discovery, taxonomy, rendering, assets,
// postprocess, in that order (spec §4.8). ctx cancellation is checked
// between pages in the rendering phase; an already-cancelled ctx aborts
// before any phase starts. A per-page render error is recorded in the
// session and does not stop the build; an output I/O error is fatal and
// returned directly.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	bc := newBuildContext()
	stats := NewBuildStats()
	session := bengalerr.NewSession(bengalerr.DefaultMaxEntries)
	cache := buildcache.Load(opts.CachePath)

	o.registry.BuildStart()
	if err := bc.advance(); err != nil { // -> Started
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		bc.fail()
		return &Result{Session: session, Stats: stats, State: bc.State()}, err
	}

	// Phase: discovery.
	opts.Callbacks.start("discovery")
	discStart := time.Now()
	site, err := content.Discover(opts.ContentDir, opts.Config.Build.PrettyURLs, opts.Mode, session)
	if err != nil {
		bc.fail()
		return &Result{Session: session, Stats: stats, State: bc.State()}, err
	}
	content.FinalizeURLs(site, opts.Config.Site.BaseURL)
	site.BuildDate = time.Now()
	stats.Counts.Total = len(site.AllPages())
	stats.RecordPhase("discovery", time.Since(discStart))
	opts.Callbacks.complete("discovery", time.Since(discStart), "")
	if err := bc.advance(); err != nil { // -> DiscoveryDone
		return nil, err
	}

	// Phase: taxonomy.
	opts.Callbacks.start("taxonomy")
	taxStart := time.Now()
	menus := o.runTaxonomy(site, opts, stats)
	stats.RecordPhase("taxonomy", time.Since(taxStart))
	opts.Callbacks.complete("taxonomy", time.Since(taxStart), "")
	if err := bc.advance(); err != nil { // -> TaxonomyDone
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		bc.fail()
		return &Result{Site: site, Session: session, Stats: stats, State: bc.State()}, err
	}

	// Phase: rendering.
	opts.Callbacks.start("rendering")
	renderStart := time.Now()
	if ioErr := o.runRendering(ctx, site, menus, opts, cache, session, stats); ioErr != nil {
		bc.fail()
		return &Result{Site: site, Session: session, Stats: stats, State: bc.State()}, ioErr
	}
	stats.RecordPhase("rendering", time.Since(renderStart))
	opts.Callbacks.complete("rendering", time.Since(renderStart), "")
	if err := bc.advance(); err != nil { // -> RenderingDone
		return nil, err
	}

	// Phase: assets.
	opts.Callbacks.start("assets")
	assetStart := time.Now()
	o.runAssets(site, opts, cache, session, stats)
	stats.RecordPhase("assets", time.Since(assetStart))
	opts.Callbacks.complete("assets", time.Since(assetStart), "")
	if err := bc.advance(); err != nil { // -> AssetsDone
		return nil, err
	}

	// Phase: postprocess.
	opts.Callbacks.start("postprocess")
	postStart := time.Now()
	o.runPostprocess(site, opts, session, stats)
	stats.RecordPhase("postprocess", time.Since(postStart))
	opts.Callbacks.complete("postprocess", time.Since(postStart), "")
	if err := bc.advance(); err != nil { // -> PostprocessDone
		return nil, err
	}

	if err := cache.Save(); err != nil {
		session.RecordError(bengalerr.New(bengalerr.KindCache, "cache/write_failed", err.Error(),
			bengalerr.InPhase("postprocess")))
		stats.RecordError("cache")
	}
	o.registry.BuildEnd()

	if err := bc.advance(); err != nil { // -> Closed
		return nil, err
	}
	stats.SampleMemory()
	stats.Finish()

	result := &Result{Site: site, Session: session, Stats: stats, State: bc.State()}
	if session.HasErrors() {
		return result, bengalerr.New(bengalerr.KindRendering, "build/errors_recorded",
			"build completed with recorded errors", bengalerr.InPhase("postprocess"))
	}
	return result, nil
}

// maxWorkers caps configured at the host CPU count (spec §4.8 "worker pool
// of size min(max_workers, CPU_count)"), defaulting to CPU count when
// unconfigured.
func maxWorkers(configured int) int {
	n := configured
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > runtime.NumCPU() {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}
