package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_VoiceHappyPath(t *testing.T) {
	m := newMachine()
	for _, next := range []State{
		StateTranscribing,
		StateExtractingEntities,
		StateMappingVisual,
		StatePersisting,
		StateComplete,
	} {
		require.NoError(t, m.to(next))
	}
	assert.Equal(t, StateComplete, m.State())
	assert.True(t, m.State().Terminal())
}

func TestMachine_TextInputEntersAtExtraction(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.to(StateExtractingEntities))
	assert.Equal(t, StateExtractingEntities, m.State())
}

func TestMachine_FallbackSkipsMapping(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.to(StateExtractingEntities))
	require.NoError(t, m.to(StatePersisting))
}

func TestMachine_FailedReachableFromEveryActiveState(t *testing.T) {
	paths := [][]State{
		{},
		{StateTranscribing},
		{StateTranscribing, StateExtractingEntities},
		{StateTranscribing, StateExtractingEntities, StateMappingVisual},
		{StateTranscribing, StateExtractingEntities, StateMappingVisual, StatePersisting},
	}
	for _, path := range paths {
		m := newMachine()
		for _, next := range path {
			require.NoError(t, m.to(next))
		}
		require.NoError(t, m.to(StateFailed))
		assert.True(t, m.State().Terminal())
	}
}

func TestMachine_RejectsOutOfOrderTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		next State
	}{
		{"idle cannot map", nil, StateMappingVisual},
		{"idle cannot persist", nil, StatePersisting},
		{"idle cannot complete", nil, StateComplete},
		{"no skipping extraction", []State{StateTranscribing}, StateMappingVisual},
		{"no going backwards", []State{StateTranscribing, StateExtractingEntities}, StateTranscribing},
		{"complete is terminal", []State{StateExtractingEntities, StatePersisting, StateComplete}, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine()
			for _, next := range tt.path {
				require.NoError(t, m.to(next))
			}
			before := m.State()
			assert.Error(t, m.to(tt.next))
			assert.Equal(t, before, m.State(), "a rejected transition must not move the machine")
		})
	}
}

func TestFailedHasNoExits(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.to(StateFailed))
	for _, next := range []State{StateTranscribing, StateExtractingEntities, StateMappingVisual, StatePersisting, StateComplete, StateIdle} {
		assert.Error(t, m.to(next))
	}
}
