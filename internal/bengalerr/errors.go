// Package bengalerr implements Bengal's unified error taxonomy: coded error
// kinds, session-scoped recording, and build-phase attribution (spec C2).
package bengalerr

import (
	"fmt"
	"sync"
)

// Kind is one of the coded error taxonomy buckets.
type Kind string

// Recognised error kinds.
const (
	KindConfig     Kind = "config"
	KindDiscovery  Kind = "discovery"
	KindContent    Kind = "content"
	KindTemplate   Kind = "template"
	KindRendering  Kind = "rendering"
	KindCache      Kind = "cache"
	KindIO         Kind = "io"
)

// Location identifies a source position for an error, when known.
type Location struct {
	File string
	Line int
}

func (l Location) String() string {
	if l.File == "" {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// Error is a single coded, attributed Bengal error or warning.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Location   Location
	Phase      string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	loc := e.Location.String()
	if loc != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Code, e.Kind, e.Message, loc)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Kind, e.Message)
}

// Unwrap exposes the original cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error. Optional functional setters adjust fields.
func New(kind Kind, code, message string, opts ...Option) *Error {
	e := &Error{Kind: kind, Code: code, Message: message}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Option configures an *Error when built with New.
type Option func(*Error)

// At attaches a source location.
func At(file string, line int) Option {
	return func(e *Error) { e.Location = Location{File: file, Line: line} }
}

// InPhase attaches a build-phase tag.
func InPhase(phase string) Option {
	return func(e *Error) { e.Phase = phase }
}

// Suggest attaches a remediation suggestion.
func Suggest(s string) Option {
	return func(e *Error) { e.Suggestion = s }
}

// Because attaches the underlying cause.
func Because(cause error) Option {
	return func(e *Error) { e.Cause = cause }
}

// DefaultMaxEntries bounds an ErrorSession's retained entries before it
// starts dropping the oldest and keeping only a summary counter.
const DefaultMaxEntries = 10000

// Session is a per-build, concurrency-safe record of all errors and
// warnings recorded during a build. RecordError is idempotent-safe to call
// from concurrent workers: it never panics and never blocks callers beyond
// a short mutex hold.
type Session struct {
	mu         sync.Mutex
	max        int
	entries    []*Error
	dropped    int
	byKind     map[Kind]int
	byCode     map[string]int
}

// NewSession creates an ErrorSession bounded to maxEntries (DefaultMaxEntries
// when maxEntries <= 0).
func NewSession(maxEntries int) *Session {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Session{
		max:    maxEntries,
		byKind: make(map[Kind]int),
		byCode: make(map[string]int),
	}
}

// RecordError adds err to the session. Safe for concurrent use.
func (s *Session) RecordError(err *Error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKind[err.Kind]++
	s.byCode[err.Code]++

	if len(s.entries) >= s.max {
		// Full: drop the oldest retained entry to make room for this one.
		copy(s.entries, s.entries[1:])
		s.entries[len(s.entries)-1] = err
		s.dropped++
		return
	}
	s.entries = append(s.entries, err)
}

// Count returns the total number of errors recorded (including dropped ones
// counted only in the summary).
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.byKind {
		total += n
	}
	return total
}

// HasErrors reports whether any error was recorded this session.
func (s *Session) HasErrors() bool {
	return s.Count() > 0
}

// Entries returns a snapshot copy of the retained (non-dropped) entries.
func (s *Session) Entries() []*Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Error, len(s.entries))
	copy(out, s.entries)
	return out
}

// Summary describes the session totals grouped by kind and code, plus how
// many entries were dropped because the session was full.
type Summary struct {
	Total   int
	Dropped int
	ByKind  map[Kind]int
	ByCode  map[string]int
}

// Summarize returns a Summary snapshot of the session.
func (s *Session) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		Dropped: s.dropped,
		ByKind:  make(map[Kind]int, len(s.byKind)),
		ByCode:  make(map[string]int, len(s.byCode)),
	}
	for k, v := range s.byKind {
		sum.ByKind[k] = v
		sum.Total += v
	}
	for k, v := range s.byCode {
		sum.ByCode[k] = v
	}
	return sum
}
