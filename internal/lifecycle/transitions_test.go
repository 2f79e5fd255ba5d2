package lifecycle

import (
	"testing"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/model"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from model.VMState
		evt  model.Event
		want model.VMState
	}{
		{model.VMStateOff, model.EventFirstBoot, model.VMStateRunning},
		{model.VMStateRunning, model.EventCheckpoint, model.VMStateRunning},
		{model.VMStateRunning, model.EventSave, model.VMStateSaved},
		{model.VMStateSaved, model.EventResume, model.VMStateRunning},
		{model.VMStateRunning, model.EventResume, model.VMStateRunning},
		{model.VMStateRunning, model.EventStop, model.VMStateOff},
		{model.VMStateRunning, model.EventRestore, model.VMStateRunning},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.evt)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestTransitionDestroyFromAnyState(t *testing.T) {
	for _, s := range []model.VMState{model.VMStateOff, model.VMStateRunning, model.VMStateSaved, model.VMStatePaused, model.VMStateError} {
		got, err := Transition(s, model.EventDestroy)
		require.NoError(t, err)
		require.Equal(t, model.VMState(""), got)
	}
}

func TestTransitionFailFromAnyState(t *testing.T) {
	for _, s := range []model.VMState{model.VMStateOff, model.VMStateRunning, model.VMStateSaved} {
		got, err := Transition(s, model.EventFail)
		require.NoError(t, err)
		require.Equal(t, model.VMStateError, got)
	}
}

func TestTransitionIllegalPairIsConflict(t *testing.T) {
	_, err := Transition(model.VMStateOff, model.EventResume)
	require.Error(t, err)
	require.ErrorIs(t, err, apierror.ErrConflict)
}
