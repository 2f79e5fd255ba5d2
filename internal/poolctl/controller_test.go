package poolctl

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/model"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, drv hyperv.Driver, guestPort int) (*Controller, *store.Repository) {
	t.Helper()
	repo, err := store.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return New(repo, drv, Config{ProvisionConcurrency: 2, GuestPort: guestPort}), repo
}

func listenLoopback(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

func seedPoolAndVMs(t *testing.T, repo *store.Repository, n int, state string) *storemodel.Pool {
	t.Helper()
	ctx := context.Background()
	templates := store.NewTemplateRepository(repo.DB())
	pools := store.NewPoolRepository(repo.DB())
	vms := store.NewVMRepository(repo.DB())

	tmpl := &storemodel.Template{ID: uuid.NewString(), Name: "golden", VHDXPath: "golden.vhdx", MemoryMB: 2048, CPUCount: 2}
	require.NoError(t, templates.Create(ctx, tmpl))

	pool := &storemodel.Pool{ID: uuid.NewString(), Name: "workers", TemplateID: tmpl.ID, DesiredCount: n, PerHostCap: n}
	require.NoError(t, pools.Create(ctx, pool))

	for i := 0; i < n; i++ {
		v := &storemodel.VM{
			ID:             uuid.NewString(),
			Name:           fmt.Sprintf("workers-%d", i),
			PoolID:         pool.ID,
			TemplateID:     tmpl.ID,
			State:          state,
			CheckpointName: "clean",
		}
		require.NoError(t, vms.Create(ctx, v))
	}
	return pool
}

func TestAcquireReturnsEligibleVM(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	result, err := c.Acquire(context.Background(), "workers")
	require.NoError(t, err)
	require.Equal(t, "workers-0", result.VMName)
	require.Equal(t, host, result.IPAddress)
	require.NotEmpty(t, result.LeaseID)
}

func TestAcquireFailsWithNoCapacityWhenNoneWarm(t *testing.T) {
	drv := &hyperv.MockDriver{}
	c, repo := newTestController(t, drv, 0)
	seedPoolAndVMs(t, repo, 1, "Off")

	_, err := c.Acquire(context.Background(), "workers")
	require.Error(t, err)
}

func TestAcquireIsExclusiveUnderConcurrency(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, mock.Anything).Return(nil)
	drv.On("QueryIP", mock.Anything, mock.Anything).Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 3, "Saved")

	var wg sync.WaitGroup
	results := make(chan string, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Acquire(context.Background(), "workers")
			if err == nil {
				results <- res.VMName
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for name := range results {
		require.False(t, seen[name], "same VM acquired twice: %s", name)
		seen[name] = true
	}
	require.LessOrEqual(t, len(seen), 3)
}

func TestAcquireClearsLeaseWhenCapacityGuardFailsSoVMIsAcquirableAgain(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(1000), nil).Once()
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)
	drv.On("Start", mock.Anything, "workers-0").Return(nil)
	drv.On("QueryIP", mock.Anything, "workers-0").Return(host, nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	_, err := c.Acquire(context.Background(), "workers")
	require.Error(t, err, "a 1000 MB host budget must reject a 2048 MB template")

	vms := store.NewVMRepository(repo.DB())
	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Empty(t, got.CurrentLeaseID, "a failed acquire must not leave a dangling lease id")

	leases := store.NewLeaseRepository(repo.DB())
	_, err = leases.GetByVMID(context.Background(), got.ID)
	require.Error(t, err, "the lease row created during the failed acquire must be deleted")

	result, err := c.Acquire(context.Background(), "workers")
	require.NoError(t, err, "the VM must be acquirable again once host capacity recovers")
	require.Equal(t, "workers-0", result.VMName)
	drv.AssertExpectations(t)
}

func TestReleaseIsIdempotentForUnknownVM(t *testing.T) {
	c, _ := newTestController(t, &hyperv.MockDriver{}, 0)
	require.NoError(t, c.Release(context.Background(), "no-such-vm", false))
}

func TestSaveByNameSavesARunningVM(t *testing.T) {
	drv := &hyperv.MockDriver{}
	drv.On("Save", mock.Anything, "workers-0").Return(nil)

	c, repo := newTestController(t, drv, 0)
	seedPoolAndVMs(t, repo, 1, "Running")

	require.NoError(t, c.SaveByName(context.Background(), "workers-0"))

	vms := store.NewVMRepository(repo.DB())
	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateSaved), got.State)
	drv.AssertExpectations(t)
}

func TestSaveByNameOnAlreadySavedVMIsNoOp(t *testing.T) {
	c, repo := newTestController(t, &hyperv.MockDriver{}, 0)
	seedPoolAndVMs(t, repo, 1, "Saved")
	require.NoError(t, c.SaveByName(context.Background(), "workers-0"))
}

func TestResetByNameRestoresAnIdleSavedVMWithNoActiveLease(t *testing.T) {
	host, port := listenLoopback(t)
	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, "workers-0").Return(nil)
	drv.On("QueryIP", mock.Anything, "workers-0").Return(host, nil)
	drv.On("HostAvailableMemoryMB", mock.Anything).Return(uint64(16384), nil)
	drv.On("RestoreCheckpoint", mock.Anything, "workers-0", "clean").Return(nil)
	drv.On("Save", mock.Anything, "workers-0").Return(nil)

	c, repo := newTestController(t, drv, port)
	seedPoolAndVMs(t, repo, 1, "Saved")

	require.NoError(t, c.ResetByName(context.Background(), "workers-0"),
		"reset must work on an administratively idle Saved VM, not just a leased Running one")

	vms := store.NewVMRepository(repo.DB())
	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateSaved), got.State)
	require.Empty(t, got.CurrentLeaseID)
}

func TestResetByNameClearsAnActiveLease(t *testing.T) {
	drv := &hyperv.MockDriver{}
	drv.On("RestoreCheckpoint", mock.Anything, "workers-0", "clean").Return(nil)
	drv.On("Save", mock.Anything, "workers-0").Return(nil)

	c, repo := newTestController(t, drv, 0)
	seedPoolAndVMs(t, repo, 1, "Running")

	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	v.CurrentLeaseID = "lease-1"
	require.NoError(t, vms.Update(context.Background(), v))
	leases := store.NewLeaseRepository(repo.DB())
	require.NoError(t, leases.Create(context.Background(), &storemodel.Lease{ID: "lease-1", VMID: v.ID, PoolID: v.PoolID}))

	require.NoError(t, c.ResetByName(context.Background(), "workers-0"))

	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Empty(t, got.CurrentLeaseID)
	_, err = leases.GetByVMID(context.Background(), v.ID)
	require.Error(t, err)
}

func TestReleaseSavesAndClearsLease(t *testing.T) {
	drv := &hyperv.MockDriver{}
	drv.On("Save", mock.Anything, mock.Anything).Return(nil)

	c, repo := newTestController(t, drv, 0)
	pool := seedPoolAndVMs(t, repo, 1, "Running")
	vms := store.NewVMRepository(repo.DB())
	v, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	v.CurrentLeaseID = "lease-1"
	require.NoError(t, vms.Update(context.Background(), v))
	_ = pool

	require.NoError(t, c.Release(context.Background(), "workers-0", false))

	got, err := vms.GetByName(context.Background(), "workers-0")
	require.NoError(t, err)
	require.Equal(t, string(model.VMStateSaved), got.State)
	require.Empty(t, got.CurrentLeaseID)
}
