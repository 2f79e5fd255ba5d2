// Package hyperv is the hypervisor driver: a thin, stateless adapter
// exposing typed operations over Hyper-V, exactly as spec.md §4.4
// describes. The default implementation shells out to PowerShell
// (Client, in client.go); MockDriver (in mock.go) stands in for tests.
//
// The driver never retains state between calls and is safe for
// concurrent use by independent VM names; callers (the lifecycle
// controller) are responsible for serializing mutating calls that target
// the same VM name.
package hyperv

import "context"

// Driver is the hypervisor driver contract. Every method either returns
// a typed result or a *DriverError classifying the failure.
type Driver interface {
	// CreateVM defines a new VM over an existing VHDX (the differencing
	// disk cloned by CloneDisk) and attaches it to the named switch.
	CreateVM(ctx context.Context, cfg CreateVMConfig) error

	// CloneDisk creates a differencing (copy-on-write) child disk whose
	// parent is parentPath.
	CloneDisk(ctx context.Context, parentPath, childPath string) error

	// Start starts a VM. If the VM is Saved, this resumes it from disk
	// (the fast path); if Off, this is a cold boot.
	Start(ctx context.Context, name string) error

	// Save persists the VM's live memory/device state to disk and
	// stops it, leaving it in the Saved state.
	Save(ctx context.Context, name string) error

	// Stop gracefully shuts the VM down; if force is set, it is
	// equivalent to pulling power.
	Stop(ctx context.Context, name string, force bool) error

	// Checkpoint creates a named, repeatedly-restorable snapshot.
	Checkpoint(ctx context.Context, name, checkpointName string) error

	// RestoreCheckpoint reverts the VM to a named checkpoint.
	RestoreCheckpoint(ctx context.Context, name, checkpointName string) error

	// Remove deletes the VM definition. It does not delete the VHDX.
	Remove(ctx context.Context, name string) error

	// QueryState returns the VM's current summary, or a *DriverError
	// with Kind==FailureNotFound if no such VM exists.
	QueryState(ctx context.Context, name string) (*VMSummary, error)

	// QueryIP returns the VM's first IPv4 address reported by the
	// guest-integration channel, or "" if none is known yet.
	QueryIP(ctx context.Context, name string) (string, error)

	// HeartbeatOK reports the guest integration service heartbeat
	// status.
	HeartbeatOK(ctx context.Context, name string) (*HeartbeatResult, error)

	// ListVMs lists every VM the hypervisor knows about, regardless of
	// whether the orchestrator's store has a row for it. Used by the
	// reconciler.
	ListVMs(ctx context.Context) ([]VMSummary, error)

	// AttachGPUPartition enables GPU-PV partitioning on name. Called by
	// provision when the template requests a GPU.
	AttachGPUPartition(ctx context.Context, name string) error

	// EnableEnhancedSession configures HvSocket-based enhanced session
	// transport on name.
	EnableEnhancedSession(ctx context.Context, name string) error

	// ConnectSwitch attaches the VM's network adapter to switchName.
	ConnectSwitch(ctx context.Context, name, switchName string) error

	// HostAvailableMemoryMB returns the host's free physical memory, in
	// MB, for the host-capacity guard.
	HostAvailableMemoryMB(ctx context.Context) (uint64, error)

	// OpenConsole spawns a console viewer (vmconnect) for name.
	OpenConsole(ctx context.Context, name string) error

	// IsAvailable reports whether the Hyper-V feature is enabled on
	// this host, used by the `doctor` preflight.
	IsAvailable(ctx context.Context) (bool, error)
}
