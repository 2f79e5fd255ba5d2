package hyperv

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockDriver is a testify mock implementing Driver, used by lifecycle
// and pool-controller tests so nothing shells out to a real hypervisor.
// Shaped after pkg/libvirt/mock.go's MockClient.
type MockDriver struct {
	mock.Mock
}

var _ Driver = (*MockDriver)(nil)

func (m *MockDriver) CreateVM(ctx context.Context, cfg CreateVMConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

func (m *MockDriver) CloneDisk(ctx context.Context, parentPath, childPath string) error {
	return m.Called(ctx, parentPath, childPath).Error(0)
}

func (m *MockDriver) Start(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) Save(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) Stop(ctx context.Context, name string, force bool) error {
	return m.Called(ctx, name, force).Error(0)
}

func (m *MockDriver) Checkpoint(ctx context.Context, name, checkpointName string) error {
	return m.Called(ctx, name, checkpointName).Error(0)
}

func (m *MockDriver) RestoreCheckpoint(ctx context.Context, name, checkpointName string) error {
	return m.Called(ctx, name, checkpointName).Error(0)
}

func (m *MockDriver) Remove(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) QueryState(ctx context.Context, name string) (*VMSummary, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VMSummary), args.Error(1)
}

func (m *MockDriver) QueryIP(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) HeartbeatOK(ctx context.Context, name string) (*HeartbeatResult, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*HeartbeatResult), args.Error(1)
}

func (m *MockDriver) ListVMs(ctx context.Context) ([]VMSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VMSummary), args.Error(1)
}

func (m *MockDriver) AttachGPUPartition(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) EnableEnhancedSession(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) ConnectSwitch(ctx context.Context, name, switchName string) error {
	return m.Called(ctx, name, switchName).Error(0)
}

func (m *MockDriver) HostAvailableMemoryMB(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockDriver) OpenConsole(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockDriver) IsAvailable(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
