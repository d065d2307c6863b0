package devserver

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ChangeKind classifies one filesystem change, feeding the rebuild
// trigger's cacheregistry reason selection (spec §4.9 "Rebuild trigger").
type ChangeKind int

const (
	ChangeContent ChangeKind = iota
	ChangeTemplate
	ChangeConfig
	ChangeAsset
	ChangeData
)

// ChangeSet is the accumulated, deduplicated set of paths that changed
// within one debounce window.
type ChangeSet struct {
	Paths map[string]ChangeKind
}

func newChangeSet() *ChangeSet {
	return &ChangeSet{Paths: make(map[string]ChangeKind)}
}

func (c *ChangeSet) add(path string, kind ChangeKind) {
	c.Paths[path] = kind
}

// HasKind reports whether any path in the set was classified as kind.
func (c *ChangeSet) HasKind(kind ChangeKind) bool {
	for _, k := range c.Paths {
		if k == kind {
			return true
		}
	}
	return false
}

const ignoreCacheSize = 2048

// ignoreFilter decides whether a path should be skipped by the watcher,
// caching its verdict in an LRU (spec §4.9: "the ignore filter is cached,
// LRU, thread-safe"). The cache is safe for concurrent use: golang-lru/v2
// guards every operation with its own internal mutex.
type ignoreFilter struct {
	cache *lru.Cache[string, bool]
}

func newIgnoreFilter() *ignoreFilter {
	c, _ := lru.New[string, bool](ignoreCacheSize)
	return &ignoreFilter{cache: c}
}

var ignoredDirNames = map[string]bool{
	".bengal": true, "output": true, "public": true,
	".git": true, ".hg": true, ".svn": true,
	".DS_Store": true, "Thumbs.db": true,
}

func (f *ignoreFilter) ignored(path string) bool {
	if v, ok := f.cache.Get(path); ok {
		return v
	}
	ignore := false
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if ignoredDirNames[part] {
			ignore = true
			break
		}
	}
	f.cache.Add(path, ignore)
	return ignore
}

// Watcher watches a set of root directories and delivers debounced,
// classified change batches to onChange. Grounded on the teacher's
// internal/server/watcher.go (fsnotify + recursive add + debounce timer),
// generalised to classify changes by root directory and to run the ignore
// filter before a path is ever added to the batch.
type Watcher struct {
	roots    map[string]ChangeKind
	debounce time.Duration
	onChange func(*ChangeSet)
	ignore   *ignoreFilter
	logger   *zap.Logger

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending *ChangeSet
	timer   *time.Timer

	done chan struct{}
	once sync.Once
}

// NewWatcher creates a Watcher. roots maps a directory path to the
// ChangeKind reported for files beneath it (e.g. content dir ->
// ChangeContent, theme dir -> ChangeTemplate).
func NewWatcher(roots map[string]ChangeKind, debounce time.Duration, onChange func(*ChangeSet), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &Watcher{
		roots:    roots,
		debounce: debounce,
		onChange: onChange,
		ignore:   newIgnoreFilter(),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching and blocks processing events until Stop is called.
// Call it in its own goroutine.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	for root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			w.logger.Warn("devserver: watch root unavailable", zap.String("root", root), zap.Error(err))
		}
	}

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("devserver: watcher error", zap.Error(err))
		case <-w.done:
			return fsw.Close()
		}
	}
}

// Stop terminates the watch loop.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() != filepath.Base(root) && ignoredDirNames[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	if w.ignore.ignored(ev.Name) {
		return
	}

	kind := w.classify(ev.Name)

	w.mu.Lock()
	if w.pending == nil {
		w.pending = newChangeSet()
	}
	w.pending.add(ev.Name, kind)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()

	if ev.Op.Has(fsnotify.Create) {
		if info, statErr := statIsDir(ev.Name); statErr == nil && info {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.logger.Debug("devserver: watch new dir failed", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) classify(path string) ChangeKind {
	if filepath.Base(path) == "bengal.toml" || filepath.Base(path) == "bengal.yaml" || filepath.Base(path) == "bengal.yml" {
		return ChangeConfig
	}
	best := ChangeContent
	bestLen := -1
	for root, kind := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if len(root) > bestLen {
			bestLen = len(root)
			best = kind
		}
	}
	return best
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()

	if batch == nil || len(batch.Paths) == 0 {
		return
	}
	w.onChange(batch)
}
