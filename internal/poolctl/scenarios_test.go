package poolctl

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/model"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// The six scenarios below are spec.md §8's seed end-to-end suite.

func TestScenarioHappyPath(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("CloneDisk", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	drv.On("CreateVM", mock.Anything, mock.Anything).Return(nil)
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("Save", mock.Anything, mock.Anything).Return(nil)
	drv.On("Checkpoint", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	drv.On("EnableEnhancedSession", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	ctx := context.Background()

	templates := store.NewTemplateRepository(repo.DB())
	pools := store.NewPoolRepository(repo.DB())
	tmpl := &storemodel.Template{ID: uuid.NewString(), Name: "win11", VHDXPath: `C:\t\w.vhdx`, MemoryMB: 2048, CPUCount: 2}
	require.NoError(t, templates.Create(ctx, tmpl))
	pool := &storemodel.Pool{ID: uuid.NewString(), Name: "agents", TemplateID: tmpl.ID, DesiredCount: 2}
	require.NoError(t, pools.Create(ctx, pool))

	require.NoError(t, c.Provision(ctx, "agents", 2))
	require.NoError(t, c.Prepare(ctx, "agents"))

	vms := store.NewVMRepository(repo.DB())
	list, err := vms.ListByPool(ctx, pool.ID)
	require.NoError(t, err)
	for _, v := range list {
		require.Equal(t, string(model.VMStateSaved), v.State)
	}

	result, err := c.Acquire(ctx, "agents")
	require.NoError(t, err)
	require.Equal(t, "agents-0", result.VMName)
	require.NotEmpty(t, result.IPAddress)
	require.Less(t, result.ResumeTimeMs, int64(5000))

	require.NoError(t, c.Release(ctx, "agents-0", false))
	got, err := vms.GetByName(ctx, "agents-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateSaved), got.State)
}

func TestScenarioExclusiveAcquisition(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	type outcome struct {
		name string
		err  error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := c.Acquire(context.Background(), "workers")
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{name: res.VMName}
		}()
	}
	first, second := <-results, <-results
	winners, losers := 0, 0
	for _, o := range []outcome{first, second} {
		if o.err != nil {
			losers++
		} else {
			winners++
		}
	}
	require.Equal(t, 1, winners)
	require.Equal(t, 1, losers)

	leases := store.NewLeaseRepository(repo.DB())
	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	lease, err := leases.GetByVMID(context.Background(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, lease)
}

func TestScenarioResumeFallback(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	permanentErr := &hyperv.DriverError{Kind: hyperv.FailurePermanent, Op: "start", Message: "injected failure"}
	drv.On("Start", mock.Anything, mock.Anything).Return(permanentErr).Once()
	drv.On("Stop", mock.Anything, mock.Anything, true).Return(nil)
	drv.On("RestoreCheckpoint", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("Save", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	result, err := c.Acquire(context.Background(), "workers")
	require.NoError(t, err)
	require.Equal(t, "workers-0", result.VMName)

	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateRunning), v.State)
	require.Equal(t, 1, v.ResumeCount)
}

func TestScenarioExternalMutation(t *testing.T) {
	drv := &hyperv.MockDriver{}
	c, repo := newTestController(t, drv, 0)
	pool := seedPoolAndVMs(t, repo, 1, "Running")

	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	v.CurrentLeaseID = "lease-123"
	require.NoError(t, vms.Update(context.Background(), v))

	drv.On("ListVMs", mock.Anything).Return([]hyperv.VMSummary{
		{Name: "workers-0", State: hyperv.StateOff},
	}, nil)

	require.NoError(t, c.Reconcile(context.Background()))

	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, "Off", got.State)
	require.Empty(t, got.CurrentLeaseID)

	leases := store.NewLeaseRepository(repo.DB())
	_, err = leases.GetByVMID(context.Background(), got.ID)
	require.Error(t, err)

	_, err = c.Acquire(context.Background(), pool.Name)
	require.Error(t, err, "an Off VM must not be returned by acquire until re-prepared")
}

func TestScenarioIPDrift(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	v.IPAddress = "10.0.0.99" // stale, from before the save
	require.NoError(t, vms.Update(context.Background(), v))

	result, err := c.ResumeByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, host, result.IPAddress)
	require.NotEqual(t, "10.0.0.99", result.IPAddress)

	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, host, got.IPAddress)
}

func TestScenarioQuarantine(t *testing.T) {
	_, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	permanentErr := &hyperv.DriverError{Kind: hyperv.FailurePermanent, Op: "start", Message: "injected failure"}
	drv.On("Start", mock.Anything, mock.Anything).Return(permanentErr)
	drv.On("Stop", mock.Anything, mock.Anything, true).Return(nil)
	drv.On("RestoreCheckpoint", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	_, err := c.Acquire(context.Background(), "workers")
	require.Error(t, err)

	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateError), v.State)
	require.NotEmpty(t, v.QuarantineReason)

	_, err = c.Acquire(context.Background(), "workers")
	require.Error(t, err, "a quarantined VM must never be returned by acquire")
}
