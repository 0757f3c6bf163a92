// Package backup orchestrates the backup and restore workflows: lock the
// instance, stop it, run the engine's dump or load tool in a helper session
// bound to its data volume, then tear the helper down and restart the
// instance if it was running.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/dbsnap/internal/boundaries/in"
	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
	"github.com/bnema/dbsnap/internal/logging"
	"github.com/bnema/dbsnap/internal/usecase/helper"
	"github.com/bnema/dbsnap/internal/usecase/instance"
)

// rootUser runs the purge, ownership fix and audit append.
const rootUser = "root"

var (
	_ in.BackupService  = (*Service)(nil)
	_ in.SessionService = (*Service)(nil)
)

// Config is the engine and helper configuration the workflows need.
type Config struct {
	DataPath     string
	BackupPath   string
	Database     string
	DatabaseDir  string
	DumpCmd      []string
	LoadCmd      []string
	Owner        string
	AuditLogPath string

	HelperPrefix     string
	HelperUser       string
	HelperEntrypoint []string
	// Keep retains stopped helpers for debugging.
	Keep bool

	ExecTimeout    time.Duration
	CleanupTimeout time.Duration
}

// Service orchestrates backup and restore operations.
type Service struct {
	runtime   out.ContainerRuntime
	store     out.ArtifactStore
	locker    out.WorkflowLocker
	resolver  *instance.VolumeResolver
	lifecycle *instance.Controller
	runner    *helper.Runner
	config    Config
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates a backup service.
func NewService(
	runtime out.ContainerRuntime,
	store out.ArtifactStore,
	locker out.WorkflowLocker,
	config Config,
	log zerolog.Logger,
) *Service {
	if config.CleanupTimeout <= 0 {
		config.CleanupTimeout = 2 * time.Minute
	}
	return &Service{
		runtime:   runtime,
		store:     store,
		locker:    locker,
		resolver:  instance.NewVolumeResolver(runtime, config.DataPath),
		lifecycle: instance.NewController(runtime),
		runner: helper.NewRunner(runtime, helper.Options{
			ExecTimeout:    config.ExecTimeout,
			CleanupTimeout: config.CleanupTimeout,
		}),
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Inspect resolves an instance and its data volume without side effects.
// The instance is returned even when its volume cannot be resolved.
func (s *Service) Inspect(ctx context.Context, name string) (*domain.Instance, *domain.DataVolume, error) {
	ctx = logging.Ensure(ctx, s.log)
	name = domain.NormalizeInstanceName(name)
	if err := domain.ValidateInstanceName(name); err != nil {
		return nil, nil, err
	}
	return s.resolver.Resolve(ctx, name)
}

// ListSessions returns every helper container this tool created that still exists.
func (s *Service) ListSessions(ctx context.Context) ([]*domain.Instance, error) {
	ctx = logging.Ensure(ctx, s.log)
	return s.runtime.ListContainers(ctx, map[string]string{domain.LabelManaged: "true"})
}

// PruneSessions removes retained helpers. Running helpers may belong to a
// workflow in progress and are left alone.
func (s *Service) PruneSessions(ctx context.Context) ([]string, error) {
	ctx = logging.CtxWithFields(logging.Ensure(ctx, s.log), map[string]any{
		logging.FieldLayer:   "usecase",
		logging.FieldUseCase: "backup",
		logging.FieldAction:  "PruneSessions",
	})
	log := logging.FromCtx(ctx)

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, sess := range sessions {
		if sess.Running {
			log.Debug().Str(logging.FieldSession, sess.Name).Msg("skipping running helper")
			continue
		}
		if err := s.runtime.RemoveContainer(ctx, sess.ID, false); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", sess.Name, err))
			continue
		}
		removed = append(removed, sess.Name)
	}

	log.Info().Int("removed", len(removed)).Msg("retained helpers pruned")
	return removed, errors.Join(errs...)
}

// workflow holds what backup and restore share once the lock is taken.
type workflow struct {
	name       string
	started    time.Time
	inst       *domain.Instance
	vol        *domain.DataVolume
	wasRunning bool
}

// acquire takes the instance lock. The returned release func must be
// deferred by the caller.
func (s *Service) acquire(ctx context.Context, name string) (func(), error) {
	guard, err := s.locker.TryAcquire(ctx, name)
	if err != nil {
		return nil, &domain.StepError{Step: domain.StepLock, Err: err}
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CleanupTimeout)
		defer cancel()
		if err := guard.Release(releaseCtx); err != nil {
			log := logging.FromCtx(ctx)
			log.Warn().Err(err).Str("lock", name).Msg("failed to release instance lock")
		}
	}, nil
}

// acquireID also locks the resolved container ID, so a name and an ID that
// refer to the same container exclude each other.
func (s *Service) acquireID(ctx context.Context, wf *workflow) (func(), error) {
	if wf.inst.ID == "" || wf.inst.ID == wf.name {
		return func() {}, nil
	}
	return s.acquire(ctx, wf.inst.ID)
}

// resolve inspects the instance and captures whether it is running.
func (s *Service) resolve(ctx context.Context, name string, started time.Time) (*workflow, error) {
	inst, vol, err := s.resolver.Resolve(ctx, name)
	if err != nil {
		return nil, &domain.StepError{Step: domain.StepResolveVolume, Err: err}
	}
	return &workflow{
		name:       name,
		started:    started,
		inst:       inst,
		vol:        vol,
		wasRunning: inst.Running,
	}, nil
}

// stop captures the instance's running state at the moment of the stop and
// stops it if it is running. wf.wasRunning drives the restart.
func (s *Service) stop(ctx context.Context, wf *workflow) error {
	wasRunning, err := s.lifecycle.Capture(ctx, wf.name)
	if err != nil {
		// state unknown, keep what resolve observed
		wf.wasRunning = wf.wasRunning || wasRunning
		return &domain.StepError{Step: domain.StepStop, Err: err}
	}
	wf.wasRunning = wasRunning
	return nil
}

// restart brings the instance back when it was running, on a context
// detached from the caller's cancellation.
func (s *Service) restart(ctx context.Context, wf *workflow) error {
	if !wf.wasRunning {
		return nil
	}
	restartCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CleanupTimeout)
	defer cancel()

	if err := s.lifecycle.RestoreIfWasRunning(restartCtx, wf.name, wf.wasRunning); err != nil {
		log := logging.FromCtx(ctx)
		log.Error().Err(err).Msg("failed to restart instance")
		return &domain.StepError{Step: domain.StepRestart, Err: err}
	}
	return nil
}

// helperSpec builds the session bound to the data volume and hostDir.
func (s *Service) helperSpec(op domain.Operation, wf *workflow, hostDir string, readOnly bool) domain.HelperSpec {
	return domain.HelperSpec{
		Image:      wf.inst.Image,
		Name:       domain.SessionName(s.config.HelperPrefix, op, wf.name, wf.started),
		User:       s.config.HelperUser,
		Entrypoint: s.config.HelperEntrypoint,
		Binds: []domain.Bind{
			{Source: wf.vol.Source, Target: s.config.DataPath},
			{Source: hostDir, Target: s.config.BackupPath, ReadOnly: readOnly},
		},
		Labels: map[string]string{
			domain.LabelManaged:   "true",
			domain.LabelOperation: string(op),
			domain.LabelInstance:  wf.name,
			domain.LabelCreated:   wf.started.UTC().Format(time.RFC3339),
		},
		Keep: s.config.Keep,
	}
}
