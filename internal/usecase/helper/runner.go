// Package helper provisions disposable helper containers that bind a target's
// data volume, runs commands inside them, and always tears them down.
package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
	"github.com/bnema/dbsnap/internal/logging"
)

const (
	defaultReadyTimeout = 30 * time.Second
	defaultPollInterval = 200 * time.Millisecond
)

// Options tunes a Runner. Zero values pick defaults.
type Options struct {
	ExecTimeout    time.Duration
	CleanupTimeout time.Duration
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
}

// Runner provisions helper sessions.
type Runner struct {
	runtime out.ContainerRuntime
	opts    Options
}

// NewRunner creates a helper runner.
func NewRunner(runtime out.ContainerRuntime, opts Options) *Runner {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 2 * time.Minute
	}
	return &Runner{runtime: runtime, opts: opts}
}

// WithSession provisions a helper from spec, runs fn against it, and stops
// and removes the helper before returning. Teardown runs on every path once
// the container exists, including failed starts, fn errors and cancellation
// of ctx. A spec with Keep set is stopped but left in place.
func (r *Runner) WithSession(ctx context.Context, spec domain.HelperSpec, fn func(ctx context.Context, s *Session) error) (err error) {
	ctx = logging.CtxWithFields(ctx, map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "helper",
		logging.FieldSession: spec.Name,
	})
	log := logging.FromCtx(ctx)

	s := &Session{runner: r, name: spec.Name, user: spec.User, state: domain.SessionProvisioning}

	id, err := r.runtime.CreateContainer(ctx, spec.ContainerConfig())
	if err != nil {
		return provisionErr(fmt.Errorf("%w: create %s: %w", domain.ErrSessionProvision, spec.Name, err))
	}
	s.id = id
	log.Debug().Str(logging.FieldEntityID, id).Str("image", spec.Image).Msg("helper created")

	defer func() {
		if tdErr := r.teardown(ctx, s, spec.Keep); tdErr != nil {
			err = errors.Join(err, tdErr)
		}
	}()

	if err := r.runtime.StartContainer(ctx, id); err != nil {
		return provisionErr(fmt.Errorf("%w: start %s: %w", domain.ErrSessionProvision, spec.Name, err))
	}

	if err := r.waitReady(ctx, id); err != nil {
		return provisionErr(fmt.Errorf("%w: %s not ready: %w", domain.ErrSessionProvision, spec.Name, err))
	}
	s.setState(domain.SessionReady)
	log.Debug().Msg("helper ready")

	return fn(ctx, s)
}

func provisionErr(err error) error {
	return &domain.StepError{Step: domain.StepProvision, Err: err}
}

func (r *Runner) waitReady(ctx context.Context, id string) error {
	return waitFor(ctx, r.opts.ReadyTimeout, r.opts.PollInterval, func() (bool, error) {
		inst, err := r.runtime.InspectContainer(ctx, id)
		if err != nil {
			return false, err
		}
		if inst.Running {
			return true, nil
		}
		if inst.Status == string(domain.ContainerStatusExited) {
			return false, fmt.Errorf("helper exited before becoming ready")
		}
		return false, nil
	})
}

// teardown stops and removes the helper on a context detached from the
// caller's cancellation.
func (r *Runner) teardown(ctx context.Context, s *Session, keep bool) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CleanupTimeout)
	defer cancel()
	log := logging.FromCtx(cleanupCtx)

	var errs []error
	if err := r.runtime.StopContainer(cleanupCtx, s.id); err != nil {
		errs = append(errs, fmt.Errorf("stop helper %s: %w", s.name, err))
	} else {
		s.setState(domain.SessionStopped)
	}

	if keep {
		log.Info().Str(logging.FieldEntityID, s.id).Msg("helper retained for inspection")
		return teardownErr(errs)
	}

	// force covers a failed stop
	if err := r.runtime.RemoveContainer(cleanupCtx, s.id, true); err != nil {
		errs = append(errs, fmt.Errorf("remove helper %s: %w", s.name, err))
	} else {
		s.setState(domain.SessionRemoved)
	}

	if len(errs) > 0 {
		err := teardownErr(errs)
		log.Error().Err(err).Msg("helper teardown incomplete")
		return err
	}
	log.Debug().Msg("helper removed")
	return nil
}

func teardownErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &domain.StepError{Step: domain.StepTeardown, Err: errors.Join(errs...)}
}

// Session is a provisioned helper container.
type Session struct {
	runner *Runner
	id     string
	name   string
	user   string

	mu    sync.Mutex
	state domain.SessionState
}

// ID returns the helper container ID.
func (s *Session) ID() string { return s.id }

// Name returns the helper container name.
func (s *Session) Name() string { return s.name }

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Exec runs cmd inside the helper. A nonzero exit returns the result
// together with a *domain.CommandError.
func (s *Session) Exec(ctx context.Context, cmd domain.ExecCommand) (*domain.ExecResult, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("%s: empty command", cmd.Step)
	}
	if cmd.User == "" {
		cmd.User = s.user
	}

	log := logging.FromCtx(ctx)
	log.Debug().Str(logging.FieldStep, cmd.Step).Strs("args", cmd.Args).Msg("exec in helper")

	execCtx := ctx
	if timeout := s.runner.opts.ExecTimeout; timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.setState(domain.SessionExecuting)
	defer s.setState(domain.SessionReady)

	result, err := s.runner.runtime.ExecInContainer(execCtx, s.id, cmd)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", cmd.Step, s.runner.opts.ExecTimeout, err)
		}
		return nil, fmt.Errorf("%s: %w", cmd.Step, err)
	}

	if result.ExitCode != 0 {
		return result, &domain.CommandError{
			Step:     cmd.Step,
			Command:  cmd.Args,
			ExitCode: result.ExitCode,
			Stderr:   string(result.Stderr),
		}
	}
	return result, nil
}
