// Package lifecycle implements the per-VM state machine: the
// authoritative transition table (spec.md §4.1), the wait-for-ready
// contract, and the resume fast path with its cold-boot fallback.
package lifecycle

import (
	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/model"
)

// transitionKey is a (from-state, event) pair, the domain of the
// transition table.
type transitionKey struct {
	From  model.VMState
	Event model.Event
}

// transitions is spec.md §4.1's authoritative table, minus the "any"
// rows (destroy and driver failure apply from every state and are
// checked separately in Transition).
var transitions = map[transitionKey]model.VMState{
	{From: model.VMStateOff, Event: model.EventFirstBoot}:  model.VMStateRunning,
	{From: model.VMStateRunning, Event: model.EventCheckpoint}: model.VMStateRunning,
	{From: model.VMStateRunning, Event: model.EventSave}:       model.VMStateSaved,
	{From: model.VMStateSaved, Event: model.EventResume}:        model.VMStateRunning,
	// resume on an already-Running VM is a no-op success (spec.md §8).
	{From: model.VMStateRunning, Event: model.EventResume}:     model.VMStateRunning,
	{From: model.VMStateRunning, Event: model.EventStop}:       model.VMStateOff,
	{From: model.VMStateRunning, Event: model.EventRestore}:    model.VMStateRunning,
}

// Transition is the total function transition(state, event) ->
// (state, error) spec.md §9 calls for: every (state, event) pair not
// present in the table is an illegal transition, reported as
// apierror.ErrConflict without any side effect having been attempted.
// destroy and driver-failure apply from any state and are handled here
// rather than in the table, since they have no "from" restriction.
func Transition(from model.VMState, event model.Event) (model.VMState, error) {
	if event == model.EventDestroy {
		return "", nil
	}
	if event == model.EventFail {
		return model.VMStateError, nil
	}
	to, ok := transitions[transitionKey{From: from, Event: event}]
	if !ok {
		return from, apierror.WrapError(apierror.ErrConflict,
			"illegal transition "+string(event)+" from "+string(from), nil)
	}
	return to, nil
}
