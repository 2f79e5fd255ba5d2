package poolctl

import (
	"context"
	"regexp"

	"github.com/hyperwake/hyperwake/internal/model"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/rs/zerolog"
)

// orphanName matches the <pool>-<index> naming convention provision
// uses, so the reconciler can distinguish an orphaned orchestrator VM
// from something unrelated sharing the host.
var orphanName = regexp.MustCompile(`^[A-Za-z0-9_.-]+-\d+$`)

// Reconcile implements spec.md §4.3: read the full hypervisor VM list,
// join with the store by name, and resolve drift. It runs on startup
// and then on a grace-supervised ticker (default 60s).
func (c *Controller) Reconcile(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	live, err := c.driver.ListVMs(ctx)
	if err != nil {
		return err
	}
	liveByName := make(map[string]int, len(live))
	for i, vm := range live {
		liveByName[vm.Name] = i
	}

	stored, err := c.vms.List(ctx)
	if err != nil {
		return err
	}
	storedByName := make(map[string]bool, len(stored))
	for _, v := range stored {
		storedByName[v.Name] = true
		idx, ok := liveByName[v.Name]
		if !ok {
			c.markMissing(ctx, v)
			continue
		}
		c.reconcileOne(ctx, v, live[idx].State.String())
	}

	for _, vm := range live {
		if !storedByName[vm.Name] && orphanName.MatchString(vm.Name) {
			logger.Info().Str("vm", vm.Name).Msg("VM matches pool naming convention but has no store row, ignoring")
		}
	}
	return nil
}

func (c *Controller) reconcileOne(ctx context.Context, v *storemodel.VM, hyperVState string) {
	logger := zerolog.Ctx(ctx)
	if v.State == hyperVState {
		return
	}

	logger.Warn().Str("vm", v.Name).Str("store_state", v.State).Str("hypervisor_state", hyperVState).
		Msg("store/hypervisor state drift, updating store to truth")

	// Any externally observed state change while a lease is held is
	// suspect: the caller's assumed VM state (and thus the lease) can no
	// longer be trusted, regardless of which direction the drift went.
	if v.CurrentLeaseID != "" {
		logger.Warn().Str("vm", v.Name).Str("lease_id", v.CurrentLeaseID).
			Msg("externally observed transition invalidates active lease")
		_ = c.leases.DeleteByVMID(ctx, v.ID)
		v.CurrentLeaseID = ""
	}

	v.State = hyperVState
	if err := c.vms.Update(ctx, v); err != nil {
		logger.Error().Err(err).Str("vm", v.Name).Msg("failed to persist reconciled state")
	}
}

func (c *Controller) markMissing(ctx context.Context, v *storemodel.VM) {
	if v.State == string(model.VMStateError) && v.QuarantineReason == "missing" {
		return
	}
	zerolog.Ctx(ctx).Error().Str("vm", v.Name).Msg("store row has no hypervisor counterpart, marking Error")
	v.State = string(model.VMStateError)
	v.QuarantineReason = "missing"
	v.ErrorMessage = "no hypervisor counterpart found during reconciliation"
	if err := c.vms.Update(ctx, v); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("vm", v.Name).Msg("failed to persist missing-VM state")
	}
}
