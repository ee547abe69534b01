package chain

import (
	"testing"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateAt(slot uint64, phase Phase) *State {
	st := NewState()
	st.Phase = phase
	st.RecordedAt = head.ChainPoint{Slot: slot}
	return st
}

func TestLocalChainStateRollback(t *testing.T) {
	local := NewLocalChainState(stateAt(0, PhaseIdle), 10)
	local.Advance(stateAt(1, PhaseInitial))
	local.Advance(stateAt(2, PhaseInitial))
	local.Advance(stateAt(3, PhaseOpen))

	require.Equal(t, uint64(3), local.Current().RecordedAt.Slot)

	restored, err := local.Rollback(head.ChainPoint{Slot: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), restored.RecordedAt.Slot)
	assert.Equal(t, PhaseInitial, restored.Phase)

	// the discarded states are gone; current follows the restored one
	assert.Equal(t, uint64(1), local.Current().RecordedAt.Slot)

	// rolling back between two recorded slots restores the older one
	local.Advance(stateAt(5, PhaseOpen))
	restored, err = local.Rollback(head.ChainPoint{Slot: 4})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), restored.RecordedAt.Slot)
}

func TestLocalChainStateUnrecoverableRollback(t *testing.T) {
	local := NewLocalChainState(stateAt(100, PhaseOpen), 3)
	local.Advance(stateAt(101, PhaseOpen))
	local.Advance(stateAt(102, PhaseOpen))
	local.Advance(stateAt(103, PhaseOpen))

	// slot 100 was evicted by the window of 3
	_, err := local.Rollback(head.ChainPoint{Slot: 99})
	require.Error(t, err)
	assert.IsType(t, &UnrecoverableRollbackError{}, err)
}
