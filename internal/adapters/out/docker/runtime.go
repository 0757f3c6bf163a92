// Package docker implements the container runtime adapter using Docker API.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
	"github.com/bnema/dbsnap/internal/logging"
)

const (
	defaultStopTimeout   = 30 * time.Second
	execInspectInterval  = 50 * time.Millisecond
	execInspectAttempts  = 100
	maxCapturedExecBytes = 1 << 20
)

var _ out.ContainerRuntime = (*Runtime)(nil)

// Runtime implements the ContainerRuntime interface using Docker API.
type Runtime struct {
	client      *client.Client
	stopTimeout time.Duration
}

// Option customizes a Runtime.
type Option func(*Runtime)

// WithStopTimeout sets the grace period given to a container before it is killed.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

// NewRuntime creates a new Docker runtime instance. An empty host uses the
// environment (DOCKER_HOST and friends).
func NewRuntime(host string, opts ...Option) (*Runtime, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return NewRuntimeWithClient(cli, opts...), nil
}

// NewRuntimeWithClient creates a new Docker runtime instance with a custom client (for testing).
func NewRuntimeWithClient(cli *client.Client, opts ...Option) *Runtime {
	r := &Runtime{
		client:      cli,
		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close releases the underlying client.
func (r *Runtime) Close() error {
	return r.client.Close()
}

func (r *Runtime) ctx(ctx context.Context, action, entity string) context.Context {
	fields := map[string]any{
		logging.FieldLayer:   "adapter",
		logging.FieldAdapter: "docker",
		logging.FieldAction:  action,
	}
	if entity != "" {
		fields[logging.FieldEntityID] = entity
	}
	return logging.CtxWithFields(ctx, fields)
}

// notFound maps Docker 404s onto the domain sentinel.
func notFound(err error, nameOrID string) error {
	if cerrdefs.IsNotFound(err) {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, nameOrID)
	}
	return err
}

// InspectContainer returns the state and mounts of a container.
func (r *Runtime) InspectContainer(ctx context.Context, nameOrID string) (*domain.Instance, error) {
	ctx = r.ctx(ctx, "InspectContainer", nameOrID)
	log := logging.FromCtx(ctx)

	resp, err := r.client.ContainerInspect(ctx, nameOrID)
	if err != nil {
		err = notFound(err, nameOrID)
		log.Debug().Err(err).Msg("failed to inspect container")
		return nil, fmt.Errorf("failed to inspect container %s: %w", nameOrID, err)
	}

	inst := &domain.Instance{
		ID:     resp.ID,
		Name:   strings.TrimPrefix(resp.Name, "/"),
		Image:  resp.Image,
		Status: string(domain.ContainerStatusUnknown),
	}
	if resp.Config != nil && resp.Config.Image != "" {
		inst.Image = resp.Config.Image
	}
	if resp.State != nil {
		inst.Status = resp.State.Status
		inst.Running = resp.State.Running
	}
	if resp.Config != nil {
		inst.Labels = resp.Config.Labels
	}
	for _, m := range resp.Mounts {
		inst.Mounts = append(inst.Mounts, domain.Mount{
			Type:        string(m.Type),
			Source:      m.Source,
			Destination: path.Clean(m.Destination),
			RW:          m.RW,
		})
	}
	return inst, nil
}

// StartContainer starts a container.
func (r *Runtime) StartContainer(ctx context.Context, containerID string) error {
	ctx = r.ctx(ctx, "StartContainer", containerID)
	log := logging.FromCtx(ctx)

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerID, notFound(err, containerID))
	}

	log.Info().Msg("container started")
	return nil
}

// StopContainer stops a container and returns once it is no longer running.
// Stopping a stopped container is not an error.
func (r *Runtime) StopContainer(ctx context.Context, containerID string) error {
	ctx = r.ctx(ctx, "StopContainer", containerID)
	log := logging.FromCtx(ctx)

	timeout := int(r.stopTimeout.Seconds())
	if err := r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", containerID, notFound(err, containerID))
	}

	waitCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case <-waitCh:
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed waiting for container %s to stop: %w", containerID, notFound(err, containerID))
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info().Msg("container stopped")
	return nil
}

// CreateContainer creates a container without starting it.
func (r *Runtime) CreateContainer(ctx context.Context, config *domain.ContainerConfig) (string, error) {
	ctx = r.ctx(ctx, "CreateContainer", config.Name)
	log := logging.FromCtx(ctx)

	containerConfig := &container.Config{
		Image:      config.Image,
		User:       config.User,
		Entrypoint: config.Entrypoint,
		Cmd:        config.Cmd,
		Labels:     config.Labels,
	}

	hostConfig := &container.HostConfig{
		Mounts: toMounts(config.Binds),
	}
	if config.Init {
		useInit := true
		hostConfig.Init = &useInit
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, config.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", config.Name, err)
	}
	for _, w := range resp.Warnings {
		log.Warn().Str("warning", w).Msg("docker create warning")
	}

	log.Debug().Str(logging.FieldEntityID, resp.ID).Str("image", config.Image).Msg("container created")
	return resp.ID, nil
}

// toMounts converts binds to API mounts so host paths containing ':' or
// ',' survive intact.
func toMounts(binds []domain.Bind) []mount.Mount {
	mounts := make([]mount.Mount, 0, len(binds))
	for _, b := range binds {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   b.Source,
			Target:   b.Target,
			ReadOnly: b.ReadOnly,
		})
	}
	return mounts
}

// RemoveContainer removes a container.
func (r *Runtime) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	ctx = r.ctx(ctx, "RemoveContainer", containerID)
	log := logging.FromCtx(ctx)

	err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: force})
	if err != nil {
		return fmt.Errorf("failed to remove container %s: %w", containerID, notFound(err, containerID))
	}

	log.Debug().Bool("force", force).Msg("container removed")
	return nil
}

// ListContainers lists containers carrying every label in labels.
func (r *Runtime) ListContainers(ctx context.Context, labels map[string]string) ([]*domain.Instance, error) {
	ctx = r.ctx(ctx, "ListContainers", "")
	log := logging.FromCtx(ctx)

	args := filters.NewArgs()
	for k, v := range labels {
		args.Add("label", k+"="+v)
	}

	containers, err := r.client.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	result := make([]*domain.Instance, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		result = append(result, &domain.Instance{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			Status:  c.State,
			Running: c.State == string(domain.ContainerStatusRunning),
			Labels:  c.Labels,
		})
	}

	log.Debug().Int("count", len(result)).Msg("listed containers")
	return result, nil
}

// ExecInContainer runs a command in a running container and waits for it to
// exit. The command is passed as an argument vector, never through a shell.
func (r *Runtime) ExecInContainer(ctx context.Context, containerID string, cmd domain.ExecCommand) (*domain.ExecResult, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("exec command cannot be empty")
	}

	ctx = r.ctx(ctx, "ExecInContainer", containerID)
	log := logging.FromCtx(ctx)

	created, err := r.client.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd.Args,
		User:         cmd.User,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in %s: %w", containerID, notFound(err, containerID))
	}

	attach, err := r.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec %s: %w", created.ID, err)
	}
	defer attach.Close()

	// Close the hijacked connection when ctx ends so the copy unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			attach.Close()
		case <-done:
		}
	}()

	stdout, stderr, err := parseExecOutput(attach.Reader)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	exitCode, err := r.execExitCode(ctx, created.ID)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("exit_code", exitCode).Strs("args", cmd.Args).Msg("exec finished")
	return &domain.ExecResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

// execExitCode waits for the exec process to be reported as finished.
func (r *Runtime) execExitCode(ctx context.Context, execID string) (int, error) {
	for i := 0; i < execInspectAttempts; i++ {
		inspect, err := r.client.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, fmt.Errorf("failed to inspect exec %s: %w", execID, err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(execInspectInterval):
		}
	}
	return 0, fmt.Errorf("exec %s still running after its output closed", execID)
}

// parseExecOutput demultiplexes a Docker exec stream into stdout and stderr,
// keeping at most maxCapturedExecBytes of each.
func parseExecOutput(reader io.Reader) ([]byte, []byte, error) {
	stdout := &cappedBuffer{limit: maxCapturedExecBytes}
	stderr := &cappedBuffer{limit: maxCapturedExecBytes}
	if _, err := stdcopy.StdCopy(stdout, stderr, reader); err != nil {
		return nil, nil, err
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

type cappedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room > 0 {
		if len(p) > room {
			b.Buffer.Write(p[:room])
		} else {
			b.Buffer.Write(p)
		}
	}
	return len(p), nil
}

// Ping checks that the daemon is reachable.
func (r *Runtime) Ping(ctx context.Context) error {
	ctx = r.ctx(ctx, "Ping", "")

	if _, err := r.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// Version returns the daemon version.
func (r *Runtime) Version(ctx context.Context) (string, error) {
	ctx = r.ctx(ctx, "Version", "")

	version, err := r.client.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get Docker version: %w", err)
	}
	return version.Version, nil
}
