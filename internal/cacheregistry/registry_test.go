package cacheregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidateForReasonClearsMatching(t *testing.T) {
	r := New(nil)
	var navCleared, tmplCleared bool

	r.Register(&Entry{
		Name:         "nav",
		ClearFn:      func() { navCleared = true },
		InvalidateOn: map[Reason]bool{ReasonNavChange: true, ReasonStructuralChange: true},
	})
	r.Register(&Entry{
		Name:         "templates",
		ClearFn:      func() { tmplCleared = true },
		InvalidateOn: map[Reason]bool{ReasonTemplateChange: true},
	})

	r.InvalidateForReason(ReasonNavChange)
	assert.True(t, navCleared)
	assert.False(t, tmplCleared)
}

func TestInvalidateWithDependentsTopologicalOrder(t *testing.T) {
	r := New(nil)
	var order []string

	r.Register(&Entry{Name: "base", ClearFn: func() { order = append(order, "base") }})
	r.Register(&Entry{
		Name:      "mid",
		ClearFn:   func() { order = append(order, "mid") },
		DependsOn: map[string]bool{"base": true},
	})
	r.Register(&Entry{
		Name:      "top",
		ClearFn:   func() { order = append(order, "top") },
		DependsOn: map[string]bool{"mid": true},
	})

	r.InvalidateWithDependents("base", ReasonFullRebuild)
	require.Equal(t, []string{"base", "mid", "top"}, order)
}

func TestRegisterCycleDetectionPanics(t *testing.T) {
	r := New(nil)
	r.Register(&Entry{Name: "a", DependsOn: map[string]bool{"b": true}})

	assert.Panics(t, func() {
		r.Register(&Entry{Name: "b", DependsOn: map[string]bool{"a": true}})
	})
}

func TestClearFnPanicDoesNotBlockOthers(t *testing.T) {
	r := New(nil)
	var cleared bool
	r.Register(&Entry{
		Name:         "bad",
		ClearFn:      func() { panic("boom") },
		InvalidateOn: map[Reason]bool{ReasonFullRebuild: true},
	})
	r.Register(&Entry{
		Name:         "good",
		ClearFn:      func() { cleared = true },
		InvalidateOn: map[Reason]bool{ReasonFullRebuild: true},
	})

	r.InvalidateForReason(ReasonFullRebuild)
	assert.True(t, cleared)
}

func TestBuildEndClearsBuildScoped(t *testing.T) {
	r := New(nil)
	var cleared bool
	r.Register(&Entry{
		Name:        "scoped",
		ClearFn:     func() { cleared = true },
		BuildScoped: true,
	})
	r.BuildEnd()
	assert.True(t, cleared)
}

func TestClassifyWeightEdit(t *testing.T) {
	assert.Equal(t, ReasonNavChange, ClassifyWeightEdit(false))
	assert.Equal(t, ReasonStructuralChange, ClassifyWeightEdit(true))
}

func TestInvalidationLogBounded(t *testing.T) {
	r := New(nil)
	r.Register(&Entry{
		Name:         "c",
		ClearFn:      func() {},
		InvalidateOn: map[Reason]bool{ReasonFullRebuild: true},
	})
	for i := 0; i < maxLogEvents+10; i++ {
		r.InvalidateForReason(ReasonFullRebuild)
	}
	assert.Len(t, r.Log(), maxLogEvents)
}
