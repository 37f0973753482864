package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Transitions(t *testing.T) {
	legal := [][2]State{
		{StateFetching, StateGating},
		{StateFetching, StateComplete},
		{StateGating, StateWriting},
		{StateWriting, StateRecording},
		{StateRecording, StateComplete},
		{StateGating, StateFailed},
		{StateRecording, StateFailed},
	}
	for _, tr := range legal {
		assert.True(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]State{
		{StateGating, StateRecording},
		{StateWriting, StateComplete},
		{StateComplete, StateFailed},
		{StateFailed, StateGating},
		{StateRecording, StateGating},
	}
	for _, tr := range illegal {
		assert.False(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, StateComplete.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRecording.Terminal())
}

func TestRun_TransitionSetsCompletedAt(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &Run{RunID: "r", State: StateRecording}

	require.NoError(t, run.transition(StateComplete, now))
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, now, *run.CompletedAt)

	err := run.transition(StateGating, now)
	assert.Error(t, err)
	assert.Equal(t, StateComplete, run.State)
}

func TestNewRunID(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)

	t.Run("formats UTC with microseconds", func(t *testing.T) {
		assert.Equal(t, "20250301T100000.123456Z", NewRunID(now, ""))
		assert.Equal(t, "20250301T100000.123456Z", NewRunID(now.In(time.FixedZone("x", 3600)), ""))
	})

	t.Run("strictly greater than latest", func(t *testing.T) {
		assert.Equal(t, "20250301T100000.123457Z", NewRunID(now, "20250301T100000.123456Z"))
		// clock went backwards
		assert.Equal(t, "20250301T110000.000001Z", NewRunID(now, "20250301T110000.000000Z"))
	})

	t.Run("later clock wins", func(t *testing.T) {
		assert.Equal(t, "20250301T100000.123456Z", NewRunID(now, "20250228T000000.000000Z"))
	})

	t.Run("lexical order is chronological", func(t *testing.T) {
		a := NewRunID(now, "")
		b := NewRunID(now.Add(time.Hour), a)
		assert.Less(t, a, b)
	})
}
