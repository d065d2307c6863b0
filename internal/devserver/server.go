// Package devserver implements the C9 dev server: a static HTTP handler
// over the build output, a debounced filesystem watcher, a mutex-guarded
// incremental rebuild trigger, and a live-reload broadcaster, grounded on
// the teacher's internal/server package and generalised to the spec's
// JSON event wire format and coded error taxonomy.
package devserver

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bengal-ssg/bengal/internal/bengalerr"
	"github.com/bengal-ssg/bengal/internal/bengallog"
	"github.com/bengal-ssg/bengal/internal/cacheregistry"
	"github.com/bengal-ssg/bengal/internal/config"
	"github.com/bengal-ssg/bengal/internal/content"
	"github.com/bengal-ssg/bengal/internal/metrics"
	"github.com/bengal-ssg/bengal/internal/orchestrator"
	"github.com/bengal-ssg/bengal/internal/security"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a dev server run.
type Options struct {
	Config      *config.Config
	ContentDir  string
	AssetsDir   string
	DataDir     string
	ThemeDir    string
	OutputDir   string
	CachePath   string
	ProjectRoot string // for locating bengal.toml in the watch set

	Host string
	Port int

	NoLiveReload bool
	RequestLog   int // ring buffer size, default 100
}

// RequestRecord is one entry in the bounded request ring (spec §4.9
// "pushed to a bounded ring (default 100) for the dashboard").
type RequestRecord struct {
	Timestamp  time.Time
	Method     string
	Path       string
	Status     int
	DurationMs int64
}

const defaultRequestLog = 100

// Server composes the static HTTP handler, filesystem watcher, rebuild
// trigger, and live-reload hub into the dev loop (spec §4.9).
type Server struct {
	opts    Options
	orch    *orchestrator.Orchestrator
	registry *cacheregistry.Registry

	hub     *Hub
	watcher *Watcher
	logger  *zap.Logger
	metrics *metrics.Recorder

	httpServer *http.Server

	buildMu  sync.Mutex // serialises rebuilds; no concurrent builds (spec §4.9)
	siteMu   sync.RWMutex
	site     *content.Site

	reqMu  sync.Mutex
	reqLog []RequestRecord
}

// New constructs a Server. orch and registry are long-lived components
// shared with the CLI's one-shot build path.
func New(orch *orchestrator.Orchestrator, registry *cacheregistry.Registry, opts Options) *Server {
	if opts.RequestLog <= 0 {
		opts.RequestLog = defaultRequestLog
	}
	logger := bengallog.L()
	return &Server{
		opts:     opts,
		orch:     orch,
		registry: registry,
		hub:      NewHub(logger),
		logger:   logger,
		metrics:  metrics.NewRecorder(nil),
	}
}

// Start runs an initial build, starts the filesystem watcher, and serves
// HTTP until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.rebuild(ctx, nil); err != nil {
		return fmt.Errorf("devserver: initial build: %w", err)
	}

	roots := map[string]ChangeKind{}
	if s.opts.ContentDir != "" {
		roots[s.opts.ContentDir] = ChangeContent
	}
	if s.opts.AssetsDir != "" {
		roots[s.opts.AssetsDir] = ChangeAsset
	}
	if s.opts.ThemeDir != "" {
		roots[s.opts.ThemeDir] = ChangeTemplate
	}
	if s.opts.DataDir != "" {
		roots[s.opts.DataDir] = ChangeData
	}

	s.watcher = NewWatcher(roots, s.debounceDuration(), func(cs *ChangeSet) {
		s.onFilesystemChange(ctx, cs)
	}, s.logger)

	watchErrCh := make(chan error, 1)
	go func() {
		watchErrCh <- s.watcher.Start()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/__bengal/ws", s.hub.HandleWS)
	mux.Handle("/__bengal/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handleRequest)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- s.httpServer.ListenAndServe()
	}()

	s.logger.Info("devserver: listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	case err := <-serveErrCh:
		if err != nil && err != http.ErrServerClosed {
			s.Stop()
			return err
		}
		return nil
	case err := <-watchErrCh:
		s.Stop()
		return err
	}
}

// Stop shuts down the HTTP server, watcher, and live-reload hub.
func (s *Server) Stop() {
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.hub.Stop()
}

func (s *Server) debounceDuration() time.Duration {
	ms := 250
	if s.opts.Config != nil && s.opts.Config.Server.WatchDebounceMs > 0 {
		ms = s.opts.Config.Server.WatchDebounceMs
	}
	return time.Duration(ms) * time.Millisecond
}

// onFilesystemChange is the rebuild trigger: it maps the changeset to
// cacheregistry invalidation reasons, runs one incremental build under
// buildMu, and broadcasts reload/build_error to connected clients.
func (s *Server) onFilesystemChange(ctx context.Context, cs *ChangeSet) {
	for reason := range s.reasonsFor(cs) {
		s.registry.InvalidateForReason(reason)
	}

	if err := s.rebuild(ctx, cs); err != nil {
		s.logger.Warn("devserver: rebuild failed", zap.Error(err))
		return
	}
}

func (s *Server) reasonsFor(cs *ChangeSet) map[cacheregistry.Reason]bool {
	reasons := map[cacheregistry.Reason]bool{}
	if cs.HasKind(ChangeConfig) {
		reasons[cacheregistry.ReasonConfigChanged] = true
	}
	if cs.HasKind(ChangeTemplate) {
		reasons[cacheregistry.ReasonTemplateChange] = true
	}
	if cs.HasKind(ChangeContent) {
		reasons[cacheregistry.ReasonStructuralChange] = true
	}
	return reasons
}

// rebuild runs one build under buildMu, serialising against concurrent
// filesystem events and the initial Start call. cs is nil for the initial
// build. On success it swaps in the new Site and broadcasts a reload
// event; on failure it broadcasts build_error with the recorded errors.
func (s *Server) rebuild(ctx context.Context, cs *ChangeSet) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	started := time.Now()
	result, err := s.orch.Run(ctx, orchestrator.Options{
		Config:     s.opts.Config,
		ContentDir: s.opts.ContentDir,
		AssetsDir:  s.opts.AssetsDir,
		DataDir:    s.opts.DataDir,
		OutputDir:  s.opts.OutputDir,
		CachePath:  s.opts.CachePath,
		Mode:       content.ModeDefault,
	})
	if err != nil {
		s.metrics.ObserveBuild("fatal", time.Since(started), 0)
		views := []bengalerrView{{
			Kind:    "io",
			Code:    "E000",
			Message: err.Error(),
		}}
		if result != nil && result.Session != nil && result.Session.HasErrors() {
			views = errorViews(result.Session)
		}
		s.hub.Broadcast(buildErrorMessage(views))
		return err
	}

	s.siteMu.Lock()
	s.site = result.Site
	s.siteMu.Unlock()

	s.logger.Debug("build finished", zap.String("build_id", result.Stats.BuildID), zap.Duration("duration", time.Since(started)))

	if result.Session.HasErrors() {
		s.metrics.ObserveBuild("errors", time.Since(started), result.Stats.Counts.Total)
		s.hub.Broadcast(buildErrorMessage(errorViews(result.Session)))
		return nil
	}

	s.metrics.ObserveBuild("success", time.Since(started), result.Stats.Counts.Total)

	if cs != nil && !s.opts.NoLiveReload {
		s.hub.Broadcast(reloadMessage(s.changedPaths(cs, result.Site)))
	}
	s.metrics.SetClients(s.hub.ClientCount())
	return nil
}

func errorViews(session *bengalerr.Session) []bengalerrView {
	entries := session.Entries()
	views := make([]bengalerrView, 0, len(entries))
	for _, e := range entries {
		views = append(views, bengalerrView{
			Kind:    string(e.Kind),
			Code:    e.Code,
			File:    e.Location.File,
			Line:    e.Location.Line,
			Message: e.Message,
		})
	}
	return views
}

// changedPaths maps the raw filesystem change set to output hrefs: pages
// whose source file changed, plus any directly-edited CSS assets (so the
// browser can hot-swap stylesheets instead of reloading the whole page).
// A template or config change has a site-wide blast radius, so it returns
// nil, which the browser overlay treats as "reload everything".
func (s *Server) changedPaths(cs *ChangeSet, site *content.Site) []string {
	if cs.HasKind(ChangeTemplate) || cs.HasKind(ChangeConfig) {
		return nil
	}

	var paths []string
	for _, p := range site.AllPages() {
		if s.opts.ContentDir == "" {
			continue
		}
		abs := filepath.Join(s.opts.ContentDir, filepath.FromSlash(p.SourcePath))
		if _, ok := cs.Paths[abs]; ok {
			paths = append(paths, p.Href)
		}
	}
	for rawPath := range cs.Paths {
		if strings.HasSuffix(rawPath, ".css") {
			if rel, err := filepath.Rel(s.opts.AssetsDir, rawPath); err == nil && !strings.HasPrefix(rel, "..") {
				paths = append(paths, "/"+filepath.ToSlash(rel))
			}
		}
	}
	return paths
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.serveFile(rec, r)

	s.recordRequest(RequestRecord{
		Timestamp:  start,
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     rec.status,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	s.siteMu.RLock()
	outputDir := s.opts.OutputDir
	s.siteMu.RUnlock()

	path, ok := resolveFilePath(outputDir, r.URL.Path)
	if !ok {
		s.handle404(w, outputDir)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.handle404(w, outputDir)
		return
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)

	if isHTML(path) && !s.opts.NoLiveReload {
		nonce, err := security.GenerateNonce()
		if err == nil {
			data = InjectScriptNonces(data, nonce)
			data = InjectLiveReload(data, s.opts.Port, nonce)
			w.Header().Set("Content-Security-Policy", security.DevPolicy(nonce, s.opts.Port).String())
		}
	}

	w.Write(data)
}

func (s *Server) handle404(w http.ResponseWriter, outputDir string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)

	custom := filepath.Join(outputDir, "404.html")
	if data, err := os.ReadFile(custom); err == nil {
		w.Write(data)
		return
	}
	fmt.Fprint(w, "<h1>404 Not Found</h1>")
}

// resolveFilePath maps a request path to an output file: direct file,
// directory index, or extensionless-plus-.html (spec §4.9 path resolution).
func resolveFilePath(outputDir, reqPath string) (string, bool) {
	clean := filepath.Clean("/" + reqPath)
	direct := filepath.Join(outputDir, clean)

	if info, err := os.Stat(direct); err == nil && !info.IsDir() {
		return direct, true
	}
	if info, err := os.Stat(direct); err == nil && info.IsDir() {
		idx := filepath.Join(direct, "index.html")
		if _, err := os.Stat(idx); err == nil {
			return idx, true
		}
	}
	withHTML := direct + ".html"
	if _, err := os.Stat(withHTML); err == nil {
		return withHTML, true
	}
	return "", false
}

func isHTML(path string) bool {
	return strings.HasSuffix(path, ".html") || strings.HasSuffix(path, ".htm")
}

func (s *Server) recordRequest(rec RequestRecord) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	s.reqLog = append(s.reqLog, rec)
	if len(s.reqLog) > s.opts.RequestLog {
		s.reqLog = s.reqLog[len(s.reqLog)-s.opts.RequestLog:]
	}
}

// RequestLog returns a snapshot of the bounded request ring.
func (s *Server) RequestLog() []RequestRecord {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	out := make([]RequestRecord, len(s.reqLog))
	copy(out, s.reqLog)
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
