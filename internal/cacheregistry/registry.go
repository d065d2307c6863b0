// Package cacheregistry implements the C3 Cache Registry: a central
// registry of in-memory caches with declarative invalidation reasons and
// dependency cascades, grounded on the corpus's multi-hash cache
// invalidation idiom (WaylonWalker-markata-go's buildcache ConfigHash/
// TemplatesHash/AssetsHash), generalized into a named, declarative registry.
package cacheregistry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reason is a declarative invalidation trigger.
type Reason string

// Recognised invalidation reasons.
const (
	ReasonConfigChanged    Reason = "config_changed"
	ReasonStructuralChange Reason = "structural_change"
	ReasonNavChange        Reason = "nav_change"
	ReasonTemplateChange   Reason = "template_change"
	ReasonFullRebuild      Reason = "full_rebuild"
	ReasonBuildStart       Reason = "build_start"
	ReasonBuildEnd         Reason = "build_end"
)

// Entry describes one registered in-memory cache.
type Entry struct {
	Name        string
	ClearFn     func()
	InvalidateOn map[Reason]bool
	DependsOn   map[string]bool
	BuildScoped bool // cleared again on BUILD_END
}

// Event is one record in the bounded invalidation log.
type Event struct {
	Name      string
	Reason    Reason
	Timestamp time.Time
}

const maxLogEvents = 100

// Registry is the process-wide, lock-serialised cache registry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string // registration order, for deterministic iteration
	log     []Event
	logger  *zap.Logger
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Register adds a cache entry. It panics if a cycle would result from the
// declared dependencies — per spec this is a fatal programming error caught
// at registration time via DFS.
func (r *Registry) Register(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.InvalidateOn == nil {
		e.InvalidateOn = map[Reason]bool{}
	}
	if e.DependsOn == nil {
		e.DependsOn = map[string]bool{}
	}
	r.entries[e.Name] = e
	r.order = append(r.order, e.Name)

	if cyclePath, ok := r.findCycle(); ok {
		panic(fmt.Sprintf("cacheregistry: dependency cycle detected: %v", cyclePath))
	}
}

// findCycle runs a DFS cycle check over the DependsOn graph.
func (r *Registry) findCycle() ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.entries))
	var path []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)
		entry := r.entries[name]
		if entry != nil {
			deps := make([]string, 0, len(entry.DependsOn))
			for d := range entry.DependsOn {
				deps = append(deps, d)
			}
			sort.Strings(deps)
			for _, d := range deps {
				switch color[d] {
				case white:
					if visit(d) {
						return true
					}
				case gray:
					path = append(path, d)
					return true
				}
			}
		}
		color[name] = black
		path = path[:len(path)-1]
		return false
	}

	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if color[n] == white {
			if visit(n) {
				return path, true
			}
		}
	}
	return nil, false
}

// InvalidateForReason clears every cache whose InvalidateOn set contains
// reason. Individual ClearFn panics/failures are logged but never prevent
// other caches from being cleared.
func (r *Registry) InvalidateForReason(reason Reason) {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for _, n := range r.order {
		e := r.entries[n]
		if e != nil && e.InvalidateOn[reason] {
			names = append(names, n)
		}
	}
	r.mu.Unlock()

	for _, n := range names {
		r.clearOne(n, reason)
	}
}

// InvalidateWithDependents invalidates name and the transitive set of
// entries that depend on it, in topological order (dependencies first):
// name itself is cleared first.
func (r *Registry) InvalidateWithDependents(name string, reason Reason) {
	r.mu.Lock()
	order := r.topoDependents(name)
	r.mu.Unlock()

	for _, n := range order {
		r.clearOne(n, reason)
	}
}

// topoDependents returns name plus every entry that transitively depends on
// it, ordered so dependencies (closer to name) clear before their
// dependents. Must be called with r.mu held.
func (r *Registry) topoDependents(name string) []string {
	// Build reverse edges: who depends on whom.
	dependents := make(map[string][]string)
	for n, e := range r.entries {
		for dep := range e.DependsOn {
			dependents[dep] = append(dependents[dep], n)
		}
	}

	visited := map[string]bool{}
	var post []string
	var visit func(string)
	visit = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		deps := append([]string(nil), dependents[n]...)
		sort.Strings(deps)
		for _, d := range deps {
			visit(d)
		}
		post = append(post, n)
	}
	visit(name)
	// Reverse post-order of the dependents graph is a topological order.
	order := make([]string, len(post))
	for i, n := range post {
		order[len(post)-1-i] = n
	}
	return order
}

func (r *Registry) clearOne(name string, reason Reason) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok || e.ClearFn == nil {
		return
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Warn("cacheregistry: clear_fn panicked",
					zap.String("name", name), zap.Any("recover", rec))
			}
		}()
		e.ClearFn()
	}()

	r.mu.Lock()
	r.log = append(r.log, Event{Name: name, Reason: reason, Timestamp: time.Now()})
	if len(r.log) > maxLogEvents {
		r.log = r.log[len(r.log)-maxLogEvents:]
	}
	r.mu.Unlock()
}

// BuildStart clears every cache whose InvalidateOn includes
// ReasonBuildStart (global contexts, per-build memoisations).
func (r *Registry) BuildStart() {
	r.InvalidateForReason(ReasonBuildStart)
}

// BuildEnd clears ReasonBuildEnd-tagged caches, plus every cache marked
// BuildScoped regardless of its declared reasons.
func (r *Registry) BuildEnd() {
	r.InvalidateForReason(ReasonBuildEnd)

	r.mu.Lock()
	var scoped []string
	for _, n := range r.order {
		if e := r.entries[n]; e != nil && e.BuildScoped {
			scoped = append(scoped, n)
		}
	}
	r.mu.Unlock()

	for _, n := range scoped {
		r.clearOne(n, ReasonBuildEnd)
	}
}

// Log returns a snapshot of the bounded invalidation event log.
func (r *Registry) Log() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.log))
	copy(out, r.log)
	return out
}

// ClassifyWeightEdit returns the invalidation reason for a page edit that
// only changes its `weight` front-matter field: nav_change, unless the page
// also adds or removes itself from a declared menu, in which case callers
// should use ReasonStructuralChange instead (spec Open Question 3).
func ClassifyWeightEdit(menuMembershipChanged bool) Reason {
	if menuMembershipChanged {
		return ReasonStructuralChange
	}
	return ReasonNavChange
}
