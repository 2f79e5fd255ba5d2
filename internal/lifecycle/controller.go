package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/model"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/rs/zerolog"
)

// CleanCheckpoint is the name prepare() gives the checkpoint taken
// immediately after first boot, per spec.md's VM.checkpoint_name default.
const CleanCheckpoint = "clean"

// Controller drives a single VM through spec.md §4.1's state machine.
// It validates the transition against the store, performs the driver
// call, and records the result in the same logical operation — never
// guessing at recovery, per spec.md §7.
type Controller struct {
	driver         hyperv.Driver
	vms            *store.VMRepository
	port           int
	guestAgentPort int
}

// New builds a Controller. port is the wait-for-ready guest port
// (spec.md §4.1's "well-known guest port", default 3389).
func New(driver hyperv.Driver, vms *store.VMRepository, port int) *Controller {
	if port == 0 {
		port = GuestPort
	}
	return &Controller{driver: driver, vms: vms, port: port}
}

// SetGuestAgentPort enables the SPEC_FULL.md §9 guest-agent health probe
// as a third wait-for-ready condition. A port of 0 (the default) disables
// it, preserving spec.md §4.1's IP+TCP-only contract.
func (c *Controller) SetGuestAgentPort(port int) { c.guestAgentPort = port }

func (c *Controller) waitForGuestAgentIfEnabled(ctx context.Context, ip string, cap time.Duration) error {
	if c.guestAgentPort == 0 {
		return nil
	}
	return waitForGuestAgent(ctx, ip, c.guestAgentPort, cap)
}

// ResumeResult is returned by Resume on success.
type ResumeResult struct {
	IPAddress    string
	ResumeTime   time.Duration
	UsedFallback bool
}

// FirstBoot performs Off -> Running: start the VM cold and wait for it
// to become reachable, capped at ColdBootReadyCap.
func (c *Controller) FirstBoot(ctx context.Context, v *storemodel.VM) error {
	if _, err := Transition(model.VMState(v.State), model.EventFirstBoot); err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)
	if err := withRetry(ctx, func(ctx context.Context) error { return c.driver.Start(ctx, v.Name) }); err != nil {
		return c.fail(ctx, v, "first_boot", err)
	}
	ip, err := waitForReady(ctx, c.driver, v.Name, c.port, ColdBootReadyCap)
	if err != nil {
		return c.fail(ctx, v, "first_boot", err)
	}
	if err := c.waitForGuestAgentIfEnabled(ctx, ip, ColdBootReadyCap); err != nil {
		return c.fail(ctx, v, "first_boot", err)
	}
	logger.Info().Str("vm", v.Name).Str("ip", ip).Msg("first boot ready")
	v.State = string(model.VMStateRunning)
	v.IPAddress = ip
	return c.vms.Update(ctx, v)
}

// Checkpoint performs the Running -> Running checkpoint(name) transition.
func (c *Controller) Checkpoint(ctx context.Context, v *storemodel.VM, name string) error {
	if _, err := Transition(model.VMState(v.State), model.EventCheckpoint); err != nil {
		return err
	}
	if err := withRetry(ctx, func(ctx context.Context) error {
		return c.driver.Checkpoint(ctx, v.Name, name)
	}); err != nil {
		return c.fail(ctx, v, "checkpoint", err)
	}
	v.CheckpointName = name
	return c.vms.Update(ctx, v)
}

// Save performs Running -> Saved.
func (c *Controller) Save(ctx context.Context, v *storemodel.VM) error {
	if _, err := Transition(model.VMState(v.State), model.EventSave); err != nil {
		return err
	}
	if err := withRetry(ctx, func(ctx context.Context) error { return c.driver.Save(ctx, v.Name) }); err != nil {
		return c.fail(ctx, v, "save", err)
	}
	v.State = string(model.VMStateSaved)
	return c.vms.Update(ctx, v)
}

// Stop performs Running -> Off: graceful shutdown, forced after grace.
func (c *Controller) Stop(ctx context.Context, v *storemodel.VM, grace time.Duration) error {
	if _, err := Transition(model.VMState(v.State), model.EventStop); err != nil {
		return err
	}
	stopCtx, cancel := context.WithTimeout(ctx, grace)
	err := c.driver.Stop(stopCtx, v.Name, false)
	cancel()
	if err != nil {
		if err := c.driver.Stop(ctx, v.Name, true); err != nil {
			return c.fail(ctx, v, "stop", err)
		}
	}
	v.State = string(model.VMStateOff)
	return c.vms.Update(ctx, v)
}

// Restore performs Running -> Running restore(name).
func (c *Controller) Restore(ctx context.Context, v *storemodel.VM, checkpointName string) error {
	if _, err := Transition(model.VMState(v.State), model.EventRestore); err != nil {
		return err
	}
	if err := withRetry(ctx, func(ctx context.Context) error {
		return c.driver.RestoreCheckpoint(ctx, v.Name, checkpointName)
	}); err != nil {
		return c.fail(ctx, v, "restore", err)
	}
	return c.vms.Update(ctx, v)
}

// Destroy removes the VM definition. Valid from any state.
func (c *Controller) Destroy(ctx context.Context, v *storemodel.VM) error {
	if err := c.driver.Remove(ctx, v.Name); err != nil {
		var derr *hyperv.DriverError
		if !errors.As(err, &derr) || derr.Kind != hyperv.FailureNotFound {
			return apierror.WrapError(apierror.ErrPermanentHypervisor, "destroy "+v.Name, err)
		}
	}
	return c.vms.Delete(ctx, v.ID)
}

// Resume implements spec.md §4.1's resume fast path with fallback: a
// Saved VM is started and waited-for-ready; on failure it is force-
// stopped, restored to its clean checkpoint, cold-booted, and re-saved
// so the pool's warm-set accounting still sees a Saved VM afterward.
func (c *Controller) Resume(ctx context.Context, v *storemodel.VM) (*ResumeResult, error) {
	if _, err := Transition(model.VMState(v.State), model.EventResume); err != nil {
		return nil, err
	}
	// resume on an already-Running VM is a no-op returning success
	// (spec.md §8) — there is nothing to start or wait for.
	if model.VMState(v.State) == model.VMStateRunning {
		return &ResumeResult{IPAddress: v.IPAddress, ResumeTime: 0, UsedFallback: false}, nil
	}
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	err := withRetry(ctx, func(ctx context.Context) error { return c.driver.Start(ctx, v.Name) })
	if err == nil {
		if ip, werr := waitForReady(ctx, c.driver, v.Name, c.port, ResumeReadyCap); werr == nil {
			if aerr := c.waitForGuestAgentIfEnabled(ctx, ip, ResumeReadyCap); aerr == nil {
				return c.finishResume(ctx, v, ip, started, false)
			}
		}
	}

	logger.Warn().Str("vm", v.Name).Msg("resume fast path failed, falling back to cold boot")

	if ferr := c.resumeFallback(ctx, v); ferr != nil {
		return nil, c.fail(ctx, v, "resume", ferr)
	}
	ip, werr := waitForReady(ctx, c.driver, v.Name, c.port, ColdBootReadyCap)
	if werr != nil {
		return nil, c.fail(ctx, v, "resume", werr)
	}
	if aerr := c.waitForGuestAgentIfEnabled(ctx, ip, ColdBootReadyCap); aerr != nil {
		return nil, c.fail(ctx, v, "resume", aerr)
	}
	if serr := withRetry(ctx, func(ctx context.Context) error { return c.driver.Save(ctx, v.Name) }); serr != nil {
		return nil, c.fail(ctx, v, "resume", serr)
	}
	return c.finishResume(ctx, v, ip, started, true)
}

func (c *Controller) resumeFallback(ctx context.Context, v *storemodel.VM) error {
	if err := c.driver.Stop(ctx, v.Name, true); err != nil {
		return err
	}
	checkpoint := v.CheckpointName
	if checkpoint == "" {
		checkpoint = CleanCheckpoint
	}
	if err := withRetry(ctx, func(ctx context.Context) error {
		return c.driver.RestoreCheckpoint(ctx, v.Name, checkpoint)
	}); err != nil {
		return err
	}
	return withRetry(ctx, func(ctx context.Context) error { return c.driver.Start(ctx, v.Name) })
}

func (c *Controller) finishResume(ctx context.Context, v *storemodel.VM, ip string, started time.Time, fallback bool) (*ResumeResult, error) {
	now := time.Now()
	v.State = string(model.VMStateRunning)
	v.IPAddress = ip // IP drift, per spec.md §4.1: always re-read and store.
	v.ResumeCount++
	v.LastResumedAt = &now
	if err := c.vms.Update(ctx, v); err != nil {
		return nil, apierror.WrapError(apierror.ErrInternal, "persist resume result", err)
	}
	return &ResumeResult{IPAddress: ip, ResumeTime: time.Since(started), UsedFallback: fallback}, nil
}

// fail transitions v to Error and records the message, per spec.md
// §4.1's "any -> Error on driver failure, halt further transitions" row.
// Every failure routed here quarantines the VM at once by setting
// QuarantineReason; for Resume that happens only after both the fast
// path and the cold-boot fallback have failed. Nothing clears
// QuarantineReason: the reconciler rewrites State when the hypervisor
// reports a different one and leaves this field as it is.
func (c *Controller) fail(ctx context.Context, v *storemodel.VM, op string, cause error) error {
	zerolog.Ctx(ctx).Error().Err(cause).Str("vm", v.Name).Str("op", op).Msg("driver failure, quarantining VM")
	v.State = string(model.VMStateError)
	v.ErrorMessage = cause.Error()
	v.QuarantineReason = op + " failed: " + cause.Error()
	if err := c.vms.Update(ctx, v); err != nil {
		return apierror.WrapError(apierror.ErrInternal, "persist driver failure", err)
	}
	return apierror.WrapError(apierror.ErrPermanentHypervisor, op+" failed for "+v.Name, cause)
}
