package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextAdvancesLinearly(t *testing.T) {
	bc := newBuildContext()
	assert.Equal(t, StateCreated, bc.State())

	want := []State{
		StateStarted,
		StateDiscoveryDone,
		StateTaxonomyDone,
		StateRenderingDone,
		StateAssetsDone,
		StatePostprocessDone,
		StateClosed,
	}
	for _, w := range want {
		require.NoError(t, bc.advance())
		assert.Equal(t, w, bc.State())
	}
}

func TestBuildContextAdvanceFromTerminalStateErrors(t *testing.T) {
	bc := newBuildContext()
	for range 7 {
		require.NoError(t, bc.advance())
	}
	assert.Equal(t, StateClosed, bc.State())
	assert.Error(t, bc.advance())
}

func TestBuildContextFailIsReachableFromAnyNonTerminalState(t *testing.T) {
	bc := newBuildContext()
	require.NoError(t, bc.advance()) // -> Started
	require.NoError(t, bc.advance()) // -> DiscoveryDone

	bc.fail()
	assert.Equal(t, StateFailed, bc.State())
}

func TestBuildContextFailIsNoOpOnceClosed(t *testing.T) {
	bc := newBuildContext()
	for range 7 {
		require.NoError(t, bc.advance())
	}
	bc.fail()
	assert.Equal(t, StateClosed, bc.State(), "fail must not override a successfully closed build")
}

func TestStateStringCoversEveryRecognisedState(t *testing.T) {
	for _, s := range []State{
		StateCreated, StateStarted, StateDiscoveryDone, StateTaxonomyDone,
		StateRenderingDone, StateAssetsDone, StatePostprocessDone, StateClosed, StateFailed,
	} {
		assert.NotEqual(t, "unknown", s.String())
	}
}
