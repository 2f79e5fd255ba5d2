// Package model defines the in-memory entity types the lifecycle and pool
// controllers operate on, independent of how they are persisted.
package model

import "time"

// VMState is the authoritative state a managed VM can be in. It is a
// closed set; the lifecycle controller is the only writer.
type VMState string

const (
	VMStateOff     VMState = "Off"
	VMStateRunning VMState = "Running"
	VMStateSaved   VMState = "Saved"
	VMStatePaused  VMState = "Paused"
	VMStateError   VMState = "Error"
)

// Valid reports whether s is one of the declared states.
func (s VMState) Valid() bool {
	switch s {
	case VMStateOff, VMStateRunning, VMStateSaved, VMStatePaused, VMStateError:
		return true
	default:
		return false
	}
}

// Template is a read-only golden disk image and its default resource
// parameters. Immutable once registered.
type Template struct {
	ID          string
	Name        string
	VHDXPath    string
	MemoryMB    uint64
	CPUCount    uint32
	GPUEnabled  bool
	CreatedAt   time.Time
}

// Pool is a named collection of VMs cloned from one Template.
type Pool struct {
	ID                     string
	Name                   string
	TemplateID             string
	DesiredCount           int
	WarmCount              int
	PerHostCap             int
	DefaultResetOnRelease  bool
	CreatedAt              time.Time
}

// VM is the central managed entity: one Hyper-V guest under orchestrator
// control.
type VM struct {
	ID               string
	Name             string // equal to the Hyper-V-visible VM name
	PoolID           string
	TemplateID       string
	State            VMState
	ErrorMessage     string
	DiffDiskPath     string
	VMRSPath         string // saved-state file path; no save path records it, so it stays empty
	CheckpointName   string // name of the "clean" checkpoint, if taken
	IPAddress        string
	CurrentLeaseID   string
	ResumeCount      int // wear metric; acquire's tie-break orders by LastResumedAt, not this
	QuarantineReason string
	LastResumedAt    time.Time
	CreatedAt        time.Time
}

// IsAvailable reports whether v is eligible for acquisition: warm and
// unleased.
func (v *VM) IsAvailable() bool {
	return v.State == VMStateSaved && v.CurrentLeaseID == ""
}

// Quarantined reports whether v has been excluded from selection by a
// driver failure the reconciler has not yet cleared.
func (v *VM) Quarantined() bool {
	return v.State == VMStateError
}

// Lease is a transient, exclusive claim on a VM held between acquire and
// release. It has no existence once released.
type Lease struct {
	ID         string
	VMID       string
	PoolID     string
	AcquiredAt time.Time
	Deadline   *time.Time
}
