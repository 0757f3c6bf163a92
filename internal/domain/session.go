package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks a helper session through its lifecycle.
type SessionState string

const (
	SessionProvisioning SessionState = "provisioning"
	SessionReady        SessionState = "ready"
	SessionExecuting    SessionState = "executing"
	SessionStopped      SessionState = "stopped"
	SessionRemoved      SessionState = "removed"
)

// Operation is the workflow a helper session serves.
type Operation string

const (
	OperationBackup  Operation = "backup"
	OperationRestore Operation = "restore"
)

// HelperSpec describes the disposable container to provision.
type HelperSpec struct {
	Image      string
	Name       string
	User       string
	Entrypoint []string
	Binds      []Bind
	Labels     map[string]string
	// Keep retains the stopped container instead of removing it.
	Keep bool
}

// ContainerConfig converts s into a runtime create request.
func (s HelperSpec) ContainerConfig() *ContainerConfig {
	var entrypoint, cmd []string
	if len(s.Entrypoint) > 0 {
		entrypoint = s.Entrypoint[:1]
		cmd = s.Entrypoint[1:]
	}
	return &ContainerConfig{
		Image:      s.Image,
		Name:       s.Name,
		User:       s.User,
		Entrypoint: entrypoint,
		Cmd:        cmd,
		Labels:     s.Labels,
		Binds:      s.Binds,
		// sleep as PID 1 ignores SIGTERM and would hold every stop for the full timeout
		Init: true,
	}
}

// SessionName builds {prefix}_{op}_{instance}_{YYYYMMDD-HHMMSS}_{8 hex}.
// The random suffix keeps two sessions started in the same second apart.
func SessionName(prefix string, op Operation, instance string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s_%s_%s", prefix, op, instance, at.Format(TimestampLayout), suffix)
}

// ExecCommand is an argument vector run inside a helper session.
type ExecCommand struct {
	Step string
	Args []string
	User string
}

// ExecResult holds the result of executing a command in a container.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}
