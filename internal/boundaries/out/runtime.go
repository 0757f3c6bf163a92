// Package out defines output ports (interfaces) for infrastructure.
// These interfaces define the contract between use cases and driven adapters
// (Docker, filesystem, locks).
package out

import (
	"context"

	"github.com/bnema/dbsnap/internal/domain"
)

// ContainerRuntime defines the contract for container runtime operations.
// This interface abstracts the underlying container runtime (Docker, Podman, etc.).
type ContainerRuntime interface {
	// Target instance lifecycle
	InspectContainer(ctx context.Context, nameOrID string) (*domain.Instance, error)
	StartContainer(ctx context.Context, containerID string) error
	// StopContainer returns once the runtime reports the container stopped.
	StopContainer(ctx context.Context, containerID string) error

	// Helper containers
	CreateContainer(ctx context.Context, config *domain.ContainerConfig) (string, error)
	RemoveContainer(ctx context.Context, containerID string, force bool) error
	// ListContainers returns every container, running or not, carrying all of labels.
	ListContainers(ctx context.Context, labels map[string]string) ([]*domain.Instance, error)

	// In-container operations
	ExecInContainer(ctx context.Context, containerID string, cmd domain.ExecCommand) (*domain.ExecResult, error)

	// Runtime information
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}
