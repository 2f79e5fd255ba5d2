// Package poolctl implements the pool controller: provision, prepare,
// acquire, release, and the host-capacity guard (spec.md §4.2), plus the
// reconciler (spec.md §4.3). There is no warm-set maintenance: a pool's
// WarmCount is stored but nothing in this package acts on it.
package poolctl

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/idgen"
	"github.com/hyperwake/hyperwake/internal/lifecycle"
	"github.com/hyperwake/hyperwake/internal/model"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// HeadroomFraction is the default host-capacity guard: refuse a start
// that would push committed memory above 80% of host free memory
// (spec.md §4.2).
const HeadroomFraction = 0.8

// Controller is the pool controller. It owns no state beyond its
// collaborators; every method reads/writes through repo and drives the
// VM lifecycle through lifecycle.Controller.
type Controller struct {
	repo       *store.Repository
	templates  *store.TemplateRepository
	pools      *store.PoolRepository
	vms        *store.VMRepository
	leases     *store.LeaseRepository
	driver     hyperv.Driver
	lifecycle  *lifecycle.Controller
	provision  provisionSemaphore
	vmLock     *keyedMutex
	guestPort  int
}

// Config bundles the pool controller's tunables (spec.md §6's
// environment model: VM root, provisioning concurrency, guest port).
type Config struct {
	ProvisionConcurrency int
	GuestPort            int
	GuestAgentPort       int
}

func New(repo *store.Repository, driver hyperv.Driver, cfg Config) *Controller {
	vms := store.NewVMRepository(repo.DB())
	lc := lifecycle.New(driver, vms, cfg.GuestPort)
	if cfg.GuestAgentPort > 0 {
		lc.SetGuestAgentPort(cfg.GuestAgentPort)
	}
	return &Controller{
		repo:      repo,
		templates: store.NewTemplateRepository(repo.DB()),
		pools:     store.NewPoolRepository(repo.DB()),
		vms:       vms,
		leases:    store.NewLeaseRepository(repo.DB()),
		driver:    driver,
		lifecycle: lc,
		provision: newProvisionSemaphore(cfg.ProvisionConcurrency),
		vmLock:    newKeyedMutex(),
		guestPort: cfg.GuestPort,
	}
}

// AcquireResult is returned by Acquire on success (spec.md §6's
// acquire response shape).
type AcquireResult struct {
	VMName       string
	IPAddress    string
	LeaseID      string
	ResumeTimeMs int64
}

// Provision implements spec.md §4.2's provision(pool, n): clone a
// differencing disk per new slot, define the VM, attach the switch, and
// record it Off. Bounded by the provisioning semaphore.
func (c *Controller) Provision(ctx context.Context, poolName string, n int) error {
	logger := zerolog.Ctx(ctx)
	pool, err := c.pools.GetByName(ctx, poolName)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "pool "+poolName+" not found", err)
	}
	tmpl, err := c.templates.GetByID(ctx, pool.TemplateID)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "template for pool "+poolName+" not found", err)
	}
	existing, err := c.vms.ListByPool(ctx, pool.ID)
	if err != nil {
		return apierror.WrapError(apierror.ErrInternal, "list existing VMs", err)
	}
	start := len(existing)

	for i := start; i < start+n; i++ {
		if err := c.provision.acquire(ctx); err != nil {
			return err
		}
		err := c.provisionOne(ctx, pool, tmpl, i)
		c.provision.release()
		if err != nil {
			logger.Error().Err(err).Str("pool", poolName).Int("index", i).Msg("provision failed")
			return err
		}
	}
	return nil
}

func (c *Controller) provisionOne(ctx context.Context, pool *storemodel.Pool, tmpl *storemodel.Template, index int) error {
	name := fmt.Sprintf("%s-%d", pool.Name, index)
	unlock := c.vmLock.Lock(name)
	defer unlock()

	diffDiskPath := fmt.Sprintf("%s.diff.vhdx", name)
	if err := c.driver.CloneDisk(ctx, tmpl.VHDXPath, diffDiskPath); err != nil {
		return apierror.WrapError(apierror.ErrPermanentHypervisor, "clone disk for "+name, err)
	}
	if err := c.driver.CreateVM(ctx, hyperv.CreateVMConfig{
		Name:       name,
		VHDXPath:   diffDiskPath,
		MemoryMB:   tmpl.MemoryMB,
		CPUCount:   tmpl.CPUCount,
		SwitchName: "Default Switch",
	}); err != nil {
		return apierror.WrapError(apierror.ErrPermanentHypervisor, "create VM "+name, err)
	}
	if tmpl.GPUEnabled {
		if err := c.driver.AttachGPUPartition(ctx, name); err != nil {
			return apierror.WrapError(apierror.ErrPermanentHypervisor, "attach GPU partition to "+name, err)
		}
	}
	if err := c.driver.EnableEnhancedSession(ctx, name); err != nil {
		return apierror.WrapError(apierror.ErrPermanentHypervisor, "enable enhanced session for "+name, err)
	}
	v := &storemodel.VM{
		ID:           uuid.NewString(),
		Name:         name,
		PoolID:       pool.ID,
		TemplateID:   tmpl.ID,
		State:        string(model.VMStateOff),
		DiffDiskPath: diffDiskPath,
	}
	return c.vms.Create(ctx, v)
}

// Prepare implements spec.md §4.2's prepare(pool): first_boot ->
// wait-for-ready -> checkpoint("clean") -> save for each Off VM.
// Per-VM failures mark that VM Error but do not abort the batch.
func (c *Controller) Prepare(ctx context.Context, poolName string) error {
	logger := zerolog.Ctx(ctx)
	pool, err := c.pools.GetByName(ctx, poolName)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "pool "+poolName+" not found", err)
	}
	vms, err := c.vms.ListByPool(ctx, pool.ID)
	if err != nil {
		return apierror.WrapError(apierror.ErrInternal, "list pool VMs", err)
	}
	for _, v := range vms {
		if v.State != string(model.VMStateOff) {
			continue
		}
		if err := c.prepareOne(ctx, v); err != nil {
			logger.Error().Err(err).Str("vm", v.Name).Msg("prepare failed, VM left in Error")
		}
	}
	return nil
}

func (c *Controller) prepareOne(ctx context.Context, v *storemodel.VM) error {
	unlock := c.vmLock.Lock(v.Name)
	defer unlock()

	tmpl, err := c.templates.GetByID(ctx, v.TemplateID)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "template for "+v.Name+" not found", err)
	}
	if err := c.guardHostCapacity(ctx, tmpl.MemoryMB); err != nil {
		return err
	}
	if err := c.lifecycle.FirstBoot(ctx, v); err != nil {
		return err
	}
	checkpoint := v.CheckpointName
	if checkpoint == "" {
		checkpoint = lifecycle.CleanCheckpoint
	}
	if err := c.lifecycle.Checkpoint(ctx, v, checkpoint); err != nil {
		return err
	}
	return c.lifecycle.Save(ctx, v)
}

// Acquire implements spec.md §4.2's acquire(pool): a row-locked select
// of an eligible VM, a lease commit, and a resume outside the
// transaction. If resume fails, the lease is released and the error
// surfaced; quarantine (via lifecycle.Controller.fail) prevents
// immediate re-selection.
func (c *Controller) Acquire(ctx context.Context, poolName string) (*AcquireResult, error) {
	pool, err := c.pools.GetByName(ctx, poolName)
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrNotFound, "pool "+poolName+" not found", err)
	}

	var selected *storemodel.VM
	var lease *storemodel.Lease
	err = c.repo.Transaction(ctx, func(tx *gorm.DB) error {
		v, err := c.vms.SelectForAcquire(ctx, tx, pool.ID)
		if err != nil {
			return apierror.WrapError(apierror.ErrNoCapacity, "no warm VM available in pool "+poolName, err)
		}
		leaseID, err := idgen.LeaseID()
		if err != nil {
			return apierror.WrapError(apierror.ErrInternal, "generate lease id", err)
		}
		l := &storemodel.Lease{ID: leaseID, VMID: v.ID, PoolID: pool.ID}
		if err := tx.Create(l).Error; err != nil {
			return apierror.WrapError(apierror.ErrInternal, "create lease", err)
		}
		v.CurrentLeaseID = leaseID
		if err := tx.Save(v).Error; err != nil {
			return apierror.WrapError(apierror.ErrInternal, "update VM lease", err)
		}
		selected, lease = v, l
		return nil
	})
	if err != nil {
		return nil, err
	}

	unlock := c.vmLock.Lock(selected.Name)
	defer unlock()

	tmpl, terr := c.templates.GetByID(ctx, selected.TemplateID)
	if terr != nil {
		c.releaseFailedLease(ctx, selected)
		return nil, apierror.WrapError(apierror.ErrNotFound, "template for "+selected.Name+" not found", terr)
	}
	if err := c.guardHostCapacity(ctx, tmpl.MemoryMB); err != nil {
		c.releaseFailedLease(ctx, selected)
		return nil, err
	}

	result, rerr := c.lifecycle.Resume(ctx, selected)
	if rerr != nil {
		c.releaseFailedLease(ctx, selected)
		return nil, rerr
	}

	return &AcquireResult{
		VMName:       selected.Name,
		IPAddress:    result.IPAddress,
		LeaseID:      lease.ID,
		ResumeTimeMs: result.ResumeTime.Milliseconds(),
	}, nil
}

// releaseFailedLease undoes a lease Acquire already committed when a
// later step in the same acquire fails. Deleting the lease row alone
// is not enough: v.CurrentLeaseID still points at it, which would
// leave the VM permanently excluded from SelectForAcquire's
// current_lease_id = '' filter (spec.md §8's lease invariant).
func (c *Controller) releaseFailedLease(ctx context.Context, v *storemodel.VM) {
	logger := zerolog.Ctx(ctx)
	if err := c.leases.DeleteByVMID(ctx, v.ID); err != nil {
		logger.Error().Err(err).Str("vm", v.Name).Msg("delete lease after failed acquire")
	}
	v.CurrentLeaseID = ""
	if err := c.vms.Update(ctx, v); err != nil {
		logger.Error().Err(err).Str("vm", v.Name).Msg("clear lease id after failed acquire")
	}
}

// ResumeByName is the admin resume entry point (spec.md §6's POST
// /api/v1/vms/:name/resume): resume a specific VM outside the acquire
// flow, without minting a lease. Used by operators to pre-warm a VM or
// recover one after investigating a quarantine.
func (c *Controller) ResumeByName(ctx context.Context, vmName string) (*lifecycle.ResumeResult, error) {
	v, err := c.vms.GetByName(ctx, vmName)
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrNotFound, "vm "+vmName+" not found", err)
	}

	unlock := c.vmLock.Lock(vmName)
	defer unlock()

	tmpl, err := c.templates.GetByID(ctx, v.TemplateID)
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrNotFound, "template for "+vmName+" not found", err)
	}
	if err := c.guardHostCapacity(ctx, tmpl.MemoryMB); err != nil {
		return nil, err
	}
	return c.lifecycle.Resume(ctx, v)
}

// Release implements spec.md §4.2's release(vm, reset): restore+save
// when reset is requested, save directly otherwise; clears the lease
// unconditionally, idempotently.
func (c *Controller) Release(ctx context.Context, vmName string, reset bool) error {
	v, err := c.vms.GetByName(ctx, vmName)
	if err != nil {
		// Releasing an unknown VM is idempotent per spec.md §4.2.
		return nil
	}

	unlock := c.vmLock.Lock(vmName)
	defer unlock()

	if v.CurrentLeaseID == "" && v.State == string(model.VMStateSaved) {
		return nil
	}

	if !reset {
		if p, perr := c.pools.GetByID(ctx, v.PoolID); perr == nil && p.DefaultResetOnRelease {
			reset = true
		}
	}
	if reset {
		checkpoint := v.CheckpointName
		if checkpoint == "" {
			checkpoint = lifecycle.CleanCheckpoint
		}
		if err := c.lifecycle.Restore(ctx, v, checkpoint); err != nil {
			return err
		}
	}
	if v.State == string(model.VMStateRunning) {
		if err := c.lifecycle.Save(ctx, v); err != nil {
			return err
		}
	}

	v.CurrentLeaseID = ""
	if err := c.vms.Update(ctx, v); err != nil {
		return apierror.WrapError(apierror.ErrInternal, "clear lease", err)
	}
	return c.leases.DeleteByVMID(ctx, v.ID)
}

// SaveByName forces a Running VM straight to Saved (spec.md §6's
// standalone "vm save <name>"), independent of any lease. Unlike
// Release, it is not a no-op for an idle VM — the caller is asking to
// save a VM they believe is Running, not to release a lease on one.
func (c *Controller) SaveByName(ctx context.Context, vmName string) error {
	v, err := c.vms.GetByName(ctx, vmName)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "vm "+vmName+" not found", err)
	}

	unlock := c.vmLock.Lock(vmName)
	defer unlock()

	if v.State == string(model.VMStateSaved) {
		return nil
	}
	return c.lifecycle.Save(ctx, v)
}

// ResetByName runs release(vm, reset=true)'s restore("clean")+save
// composition outside the acquire/release flow (spec.md §6's standalone
// "vm reset <name>"), so an administratively idle Saved VM can be reset
// without first being acquired. A VM that is not already Running is
// resumed first, since restore_checkpoint is only defined from Running
// in the lifecycle table. Any active lease is cleared: the disk/memory
// a lease holder was given no longer match after the restore.
func (c *Controller) ResetByName(ctx context.Context, vmName string) error {
	v, err := c.vms.GetByName(ctx, vmName)
	if err != nil {
		return apierror.WrapError(apierror.ErrNotFound, "vm "+vmName+" not found", err)
	}

	unlock := c.vmLock.Lock(vmName)
	defer unlock()

	if v.State != string(model.VMStateRunning) {
		tmpl, err := c.templates.GetByID(ctx, v.TemplateID)
		if err != nil {
			return apierror.WrapError(apierror.ErrNotFound, "template for "+vmName+" not found", err)
		}
		if err := c.guardHostCapacity(ctx, tmpl.MemoryMB); err != nil {
			return err
		}
		if _, err := c.lifecycle.Resume(ctx, v); err != nil {
			return err
		}
	}

	checkpoint := v.CheckpointName
	if checkpoint == "" {
		checkpoint = lifecycle.CleanCheckpoint
	}
	if err := c.lifecycle.Restore(ctx, v, checkpoint); err != nil {
		return err
	}
	if err := c.lifecycle.Save(ctx, v); err != nil {
		return err
	}

	if v.CurrentLeaseID == "" {
		return nil
	}
	v.CurrentLeaseID = ""
	if err := c.vms.Update(ctx, v); err != nil {
		return apierror.WrapError(apierror.ErrInternal, "clear lease", err)
	}
	return c.leases.DeleteByVMID(ctx, v.ID)
}

// guardHostCapacity implements spec.md §4.2's host-capacity guard: an
// action about to commit neededMB of host memory is refused with
// InsufficientMemory if it would consume more than HeadroomFraction of
// the memory currently reported free.
func (c *Controller) guardHostCapacity(ctx context.Context, neededMB uint64) error {
	free, err := c.driver.HostAvailableMemoryMB(ctx)
	if err != nil {
		return apierror.WrapError(apierror.ErrTransientHypervisor, "query host memory", err)
	}
	budget := uint64(float64(free) * HeadroomFraction)
	if neededMB > budget {
		return apierror.WrapError(apierror.ErrInsufficientMemory,
			fmt.Sprintf("starting would use %d MB against an %d MB headroom budget", neededMB, budget), nil)
	}
	return nil
}
