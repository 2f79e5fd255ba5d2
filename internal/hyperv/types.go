package hyperv

import "time"

// State mirrors the subset of Hyper-V's VM state enum the orchestrator
// cares about (the rest collapse to StateUnknown).
type State int

const (
	StateUnknown State = iota
	StateOff
	StateRunning
	StateSaved
	StatePaused
)

// fromHyperVState maps Hyper-V's integer VMState (as returned by
// Get-VM) onto our State enum. 2=Off, 3=Running, 6=Saved, 9=Paused —
// ported from original_source's HyperVInfo::state_str mapping.
func fromHyperVState(raw int) State {
	switch raw {
	case 2:
		return StateOff
	case 3:
		return StateRunning
	case 6:
		return StateSaved
	case 9:
		return StatePaused
	default:
		return StateUnknown
	}
}

func (s State) String() string {
	switch s {
	case StateOff:
		return "Off"
	case StateRunning:
		return "Running"
	case StateSaved:
		return "Saved"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// VMSummary is the structured result of a query_state / list_vms call.
type VMSummary struct {
	Name           string
	State          State
	MemoryAssigned uint64
	Uptime         string
	ID             string
}

// CreateVMConfig describes a new VM definition.
type CreateVMConfig struct {
	Name       string
	VHDXPath   string
	MemoryMB   uint64
	CPUCount   uint32
	SwitchName string
}

// FailureKind classifies a driver failure per spec.md §4.4/§7, so the
// lifecycle controller knows whether to retry, fail fast, or escalate.
type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureTransient
	FailurePermanent
	FailureNotFound
	FailureTimeout
)

// DriverError is returned by every driver method that fails; it carries
// the classification the lifecycle controller dispatches on.
type DriverError struct {
	Kind    FailureKind
	Op      string
	VMName  string
	Message string
	Cause   error
}

func (e *DriverError) Error() string {
	if e.VMName != "" {
		return e.Op + " " + e.VMName + ": " + e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *DriverError) Unwrap() error { return e.Cause }

// HeartbeatResult is the result of a heartbeat_ok query.
type HeartbeatResult struct {
	OK          bool
	Description string
}

// WaitDeadline bundles a polling interval and overall cap, used by both
// the driver's own wait helpers and the lifecycle controller's
// wait-for-ready contract.
type WaitDeadline struct {
	Interval time.Duration
	Cap      time.Duration
}
