package lifecycle

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *store.VMRepository {
	t.Helper()
	repo, err := store.New(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return store.NewVMRepository(repo.DB())
}

// listenLoopback opens a TCP listener standing in for the guest's RDP
// port, so waitForReady's dial succeeds without a real VM.
func listenLoopback(t *testing.T) (host string, port int) {
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
	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func seedVM(t *testing.T, repo *store.VMRepository, state string) *storemodel.VM {
	t.Helper()
	v := &storemodel.VM{
		ID:             uuid.NewString(),
		Name:           "pool-0",
		PoolID:         uuid.NewString(),
		TemplateID:     uuid.NewString(),
		State:          state,
		CheckpointName: CleanCheckpoint,
	}
	require.NoError(t, repo.Create(context.Background(), v))
	return v
}

func TestControllerResumeFastPath(t *testing.T) {
	repo := newTestRepo(t)
	host, port := listenLoopback(t)
	v := seedVM(t, repo, "Saved")

	drv := &hyperv.MockDriver{}
	drv.On("Start", mock.Anything, "pool-0").Return(nil)
	drv.On("QueryIP", mock.Anything, "pool-0").Return(host, nil)

	c := New(drv, repo, port)
	result, err := c.Resume(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, host, result.IPAddress)
	require.False(t, result.UsedFallback)

	got, err := repo.GetByName(context.Background(), "pool-0")
	require.NoError(t, err)
	require.Equal(t, "Running", got.State)
	require.Equal(t, 1, got.ResumeCount)
	drv.AssertExpectations(t)
}

func TestControllerResumeOnAlreadyRunningVMIsNoOp(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVM(t, repo, "Running")
	v.IPAddress = "10.0.0.5"
	require.NoError(t, repo.Update(context.Background(), v))

	drv := &hyperv.MockDriver{}
	c := New(drv, repo, 3389)

	result, err := c.Resume(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.5", result.IPAddress)
	require.False(t, result.UsedFallback)

	got, err := repo.GetByName(context.Background(), "pool-0")
	require.NoError(t, err)
	require.Equal(t, "Running", got.State)
	require.Equal(t, 0, got.ResumeCount, "a no-op resume must not bump ResumeCount")
	drv.AssertExpectations(t)
}

func TestControllerResumeRejectsWrongState(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVM(t, repo, "Off")
	c := New(&hyperv.MockDriver{}, repo, 3389)
	_, err := c.Resume(context.Background(), v)
	require.Error(t, err)
}

func TestControllerSaveTransitionsToSaved(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVM(t, repo, "Running")
	drv := &hyperv.MockDriver{}
	drv.On("Save", mock.Anything, "pool-0").Return(nil)

	c := New(drv, repo, 3389)
	require.NoError(t, c.Save(context.Background(), v))
	require.Equal(t, "Saved", v.State)
	drv.AssertExpectations(t)
}

func TestControllerDestroyRemovesRow(t *testing.T) {
	repo := newTestRepo(t)
	v := seedVM(t, repo, "Off")
	drv := &hyperv.MockDriver{}
	drv.On("Remove", mock.Anything, "pool-0").Return(nil)

	c := New(drv, repo, 3389)
	require.NoError(t, c.Destroy(context.Background(), v))
	_, err := repo.GetByName(context.Background(), "pool-0")
	require.Error(t, err)
	drv.AssertExpectations(t)
}
