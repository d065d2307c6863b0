package orchestrator

import (
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PageCounts breaks down the pages produced by a build (spec §4.8
// "counts (pages total/regular/generated/tag/archive/pagination)").
type PageCounts struct {
	Total      int
	Regular    int
	Generated  int
	Tag        int
	Archive    int
	Pagination int
}

// PhaseTiming records how long one named phase took.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// MemoryStats is a point-in-time snapshot of Go runtime memory counters,
// the closest idiomatic analogue to the spec's "memory RSS/heap/peak"
// (Go does not expose RSS without a platform-specific syscall; HeapAlloc
// and HeapSys are the portable substitutes the corpus has no library for).
type MemoryStats struct {
	HeapAllocBytes uint64
	HeapSysBytes   uint64
	PeakHeapBytes  uint64
}

// BuildStats accumulates every statistic the spec attaches to a build
// (spec §4.8): counts, phase timings, cache hits/misses/time-saved,
// memory, directive counts, and warning/error tallies by category. All
// mutating methods are concurrency-safe since the rendering phase updates
// it from multiple workers.
type BuildStats struct {
	mu sync.Mutex

	// BuildID uniquely identifies this build run, for correlating CLI
	// output, dev-server dashboard entries, and log lines across a build.
	BuildID string

	Counts PageCounts

	Phases []PhaseTiming

	CacheHits       int
	CacheMisses     int
	CacheTimeSaved  time.Duration

	Memory MemoryStats

	DirectiveCount int

	WarningsByCategory map[string]int
	ErrorsByCategory   map[string]int

	FilesWritten int
	FilesCopied  int
	OutputBytes  int64

	StartedAt time.Time
	Duration  time.Duration
}

// NewBuildStats returns an empty BuildStats ready for accumulation.
func NewBuildStats() *BuildStats {
	return &BuildStats{
		BuildID:            uuid.NewString(),
		WarningsByCategory: make(map[string]int),
		ErrorsByCategory:   make(map[string]int),
		StartedAt:          time.Now(),
	}
}

// RecordPhase appends a completed phase's timing.
func (s *BuildStats) RecordPhase(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Phases = append(s.Phases, PhaseTiming{Name: name, Duration: d})
}

// RecordCacheHit records a rendering-phase cache hit and the render time it
// saved (the page's previous render duration, if known).
func (s *BuildStats) RecordCacheHit(saved time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheHits++
	s.CacheTimeSaved += saved
}

// RecordCacheMiss records a rendering-phase cache miss.
func (s *BuildStats) RecordCacheMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CacheMisses++
}

// RecordDirectives adds n to the running fenced-directive count.
func (s *BuildStats) RecordDirectives(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DirectiveCount += n
}

// RecordWarning increments the named warning category.
func (s *BuildStats) RecordWarning(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WarningsByCategory[category]++
}

// RecordError increments the named error category.
func (s *BuildStats) RecordError(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorsByCategory[category]++
}

// RecordWrite records one file written to the output directory.
func (s *BuildStats) RecordWrite(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesWritten++
	s.OutputBytes += n
}

// RecordCopy records one file copied. The assets phase calls it for every
// asset it processes, including unchanged assets whose copy was skipped.
func (s *BuildStats) RecordCopy(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesCopied++
	s.OutputBytes += n
}

// SampleMemory snapshots the current Go runtime memory counters, keeping
// the running peak heap size.
func (s *BuildStats) SampleMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memory.HeapAllocBytes = m.HeapAlloc
	s.Memory.HeapSysBytes = m.HeapSys
	if m.HeapAlloc > s.Memory.PeakHeapBytes {
		s.Memory.PeakHeapBytes = m.HeapAlloc
	}
}

// Finish stamps the total build duration from StartedAt.
func (s *BuildStats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Duration = time.Since(s.StartedAt)
}
