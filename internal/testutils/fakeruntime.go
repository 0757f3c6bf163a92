package testutils

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/dbsnap/internal/domain"
)

// FakeContainer is a container held by FakeRuntime.
type FakeContainer struct {
	ID      string
	Name    string
	Image   string
	Running bool
	Removed bool
	Helper  bool
	Init    bool
	User    string
	Mounts  []domain.Mount
	Binds   []domain.Bind
	Labels  map[string]string
}

// FakeRuntime is an in-memory out.ContainerRuntime that records every call.
type FakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*FakeContainer
	order      []string
	nextID     int
	events     []string
	execs      []domain.ExecCommand

	// ExecFunc decides the outcome of ExecInContainer. Nil means exit 0.
	ExecFunc func(c *FakeContainer, cmd domain.ExecCommand) (*domain.ExecResult, error)
	// BeforeStop runs outside the lock before a container is stopped.
	BeforeStop func(c *FakeContainer)
	// CreateErr, StartHelperErr, StartErr and StopErr inject failures.
	CreateErr      error
	StartHelperErr error
	StartErr       error
	StopErr        error
}

// NewFakeRuntime creates an empty fake runtime.
func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{containers: make(map[string]*FakeContainer)}
}

// AddInstance registers a target instance.
func (f *FakeRuntime) AddInstance(name, image string, running bool, mounts ...domain.Mount) *FakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := &FakeContainer{
		ID:      f.newID(),
		Name:    name,
		Image:   image,
		Running: running,
		Mounts:  mounts,
	}
	f.containers[c.ID] = c
	f.order = append(f.order, c.ID)
	return c
}

// Running reports whether the named container is running.
func (f *FakeRuntime) Running(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.lookup(name)
	return c != nil && c.Running
}

// Helpers returns every helper container ever created, in creation order.
func (f *FakeRuntime) Helpers() []FakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FakeContainer
	for _, id := range f.order {
		if c := f.containers[id]; c.Helper {
			out = append(out, *c)
		}
	}
	return out
}

// Events returns the ordered call log, e.g. "stop db1", "exec rm".
func (f *FakeRuntime) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Execs returns every command executed in a helper.
func (f *FakeRuntime) Execs() []domain.ExecCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ExecCommand(nil), f.execs...)
}

// HasEvent reports whether an event with the given prefix was recorded.
func (f *FakeRuntime) HasEvent(prefix string) bool {
	for _, e := range f.Events() {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func (f *FakeRuntime) InspectContainer(_ context.Context, nameOrID string) (*domain.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, "inspect "+nameOrID)
	c := f.lookup(nameOrID)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, nameOrID)
	}

	status := string(domain.ContainerStatusExited)
	if c.Running {
		status = string(domain.ContainerStatusRunning)
	}
	return &domain.Instance{
		ID:      c.ID,
		Name:    c.Name,
		Image:   c.Image,
		Status:  status,
		Running: c.Running,
		Mounts:  append([]domain.Mount(nil), c.Mounts...),
		Labels:  c.Labels,
	}, nil
}

func (f *FakeRuntime) StartContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.lookup(containerID)
	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, containerID)
	}
	f.events = append(f.events, "start "+c.Name)
	if c.Helper && f.StartHelperErr != nil {
		return f.StartHelperErr
	}
	if !c.Helper && f.StartErr != nil {
		return f.StartErr
	}
	c.Running = true
	return nil
}

func (f *FakeRuntime) StopContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	c := f.lookup(containerID)
	hook := f.BeforeStop
	f.mu.Unlock()

	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, containerID)
	}
	if hook != nil {
		hook(c)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "stop "+c.Name)
	if !c.Helper && f.StopErr != nil {
		return f.StopErr
	}
	c.Running = false
	return nil
}

func (f *FakeRuntime) CreateContainer(_ context.Context, config *domain.ContainerConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, "create "+config.Name)
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	for _, c := range f.containers {
		if c.Name == config.Name && !c.Removed {
			return "", fmt.Errorf("container name %q already in use", config.Name)
		}
	}

	c := &FakeContainer{
		ID:     f.newID(),
		Name:   config.Name,
		Image:  config.Image,
		Helper: true,
		Init:   config.Init,
		User:   config.User,
		Binds:  append([]domain.Bind(nil), config.Binds...),
		Labels: config.Labels,
	}
	f.containers[c.ID] = c
	f.order = append(f.order, c.ID)
	return c.ID, nil
}

func (f *FakeRuntime) RemoveContainer(_ context.Context, containerID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.lookup(containerID)
	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, containerID)
	}
	f.events = append(f.events, "remove "+c.Name)
	if c.Running && !force {
		return fmt.Errorf("container %s is running", c.Name)
	}
	c.Running = false
	c.Removed = true
	return nil
}

func (f *FakeRuntime) ListContainers(_ context.Context, labels map[string]string) ([]*domain.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, "list")
	var found []*domain.Instance
	for _, id := range f.order {
		c := f.containers[id]
		if c.Removed || !hasLabels(c.Labels, labels) {
			continue
		}
		found = append(found, &domain.Instance{
			ID:      c.ID,
			Name:    c.Name,
			Image:   c.Image,
			Running: c.Running,
			Labels:  c.Labels,
		})
	}
	return found, nil
}

func hasLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (f *FakeRuntime) ExecInContainer(_ context.Context, containerID string, cmd domain.ExecCommand) (*domain.ExecResult, error) {
	f.mu.Lock()
	c := f.lookup(containerID)
	if c == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, containerID)
	}
	if !c.Running {
		f.mu.Unlock()
		return nil, fmt.Errorf("container %s is not running", c.Name)
	}
	f.events = append(f.events, "exec "+strings.Join(cmd.Args, " "))
	f.execs = append(f.execs, cmd)
	fn := f.ExecFunc
	snapshot := *c
	f.mu.Unlock()

	if fn == nil {
		return &domain.ExecResult{ExitCode: 0}, nil
	}
	return fn(&snapshot, cmd)
}

func (f *FakeRuntime) Ping(context.Context) error {
	return nil
}

func (f *FakeRuntime) Version(context.Context) (string, error) {
	return "fake", nil
}

func (f *FakeRuntime) lookup(nameOrID string) *FakeContainer {
	if c, ok := f.containers[nameOrID]; ok {
		return c
	}
	name := strings.TrimPrefix(nameOrID, "/")
	for _, id := range f.order {
		if c := f.containers[id]; c.Name == name && !c.Removed {
			return c
		}
	}
	return nil
}

func (f *FakeRuntime) newID() string {
	f.nextID++
	return fmt.Sprintf("c%04d", f.nextID)
}
