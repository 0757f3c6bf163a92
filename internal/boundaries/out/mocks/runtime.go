package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/dbsnap/internal/domain"
)

// MockContainerRuntime is a mock implementation of out.ContainerRuntime
type MockContainerRuntime struct {
	mock.Mock
}

// Target instance lifecycle
func (m *MockContainerRuntime) InspectContainer(ctx context.Context, nameOrID string) (*domain.Instance, error) {
	args := m.Called(ctx, nameOrID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Instance), args.Error(1)
}

func (m *MockContainerRuntime) StartContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

func (m *MockContainerRuntime) StopContainer(ctx context.Context, containerID string) error {
	args := m.Called(ctx, containerID)
	return args.Error(0)
}

// Helper containers
func (m *MockContainerRuntime) CreateContainer(ctx context.Context, config *domain.ContainerConfig) (string, error) {
	args := m.Called(ctx, config)
	return args.String(0), args.Error(1)
}

func (m *MockContainerRuntime) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	args := m.Called(ctx, containerID, force)
	return args.Error(0)
}

func (m *MockContainerRuntime) ExecInContainer(ctx context.Context, containerID string, cmd domain.ExecCommand) (*domain.ExecResult, error) {
	args := m.Called(ctx, containerID, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExecResult), args.Error(1)
}

func (m *MockContainerRuntime) ListContainers(ctx context.Context, labels map[string]string) ([]*domain.Instance, error) {
	args := m.Called(ctx, labels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Instance), args.Error(1)
}

// Runtime information
func (m *MockContainerRuntime) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockContainerRuntime) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
