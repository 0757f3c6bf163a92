// Package domain contains pure business types without external dependencies.
// These types are used throughout the application and have no tags or framework dependencies.
package domain

import (
	"path"
	"strings"
)

// Instance is the long-lived container running the database service.
type Instance struct {
	ID      string
	Name    string
	Image   string
	Status  string
	Running bool
	Mounts  []Mount
	Labels  map[string]string
}

// Mount is one entry of an instance's mount table.
type Mount struct {
	Type        string
	Source      string
	Destination string
	RW          bool
}

// DataVolume is the host-side storage backing an instance's data directory.
type DataVolume struct {
	Instance    string
	Source      string
	Destination string
}

// MountsAt returns every mount whose destination equals dest.
// Trailing slashes are ignored on both sides.
func (i *Instance) MountsAt(dest string) []Mount {
	want := cleanMountPath(dest)
	var found []Mount
	for _, m := range i.Mounts {
		if cleanMountPath(m.Destination) == want {
			found = append(found, m)
		}
	}
	return found
}

func cleanMountPath(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimSuffix(path.Clean(p), "/")
}

// ContainerConfig holds configuration for creating a helper container.
type ContainerConfig struct {
	Image      string
	Name       string
	User       string
	Entrypoint []string
	Cmd        []string
	Labels     map[string]string
	Binds      []Bind
	// Init runs an init process as PID 1 so the entrypoint receives SIGTERM.
	Init bool
}

// Bind maps a host path into a container.
type Bind struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerStatus represents the current state of a container.
type ContainerStatus string

const (
	ContainerStatusRunning ContainerStatus = "running"
	ContainerStatusCreated ContainerStatus = "created"
	ContainerStatusExited  ContainerStatus = "exited"
	ContainerStatusPaused  ContainerStatus = "paused"
	ContainerStatusUnknown ContainerStatus = "unknown"
)
