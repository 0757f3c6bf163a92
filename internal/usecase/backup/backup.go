package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bnema/dbsnap/internal/domain"
	"github.com/bnema/dbsnap/internal/logging"
	"github.com/bnema/dbsnap/internal/usecase/helper"
)

// Backup dumps the instance's database into req.BackupDir.
//
// A running instance is stopped for the dump and restarted afterwards on
// every path, including dump failure and cancellation of ctx. When the
// dump succeeds but the restart fails, the result is returned together with
// the error.
func (s *Service) Backup(ctx context.Context, req domain.BackupRequest) (result *domain.BackupResult, err error) {
	started := s.now()
	name := domain.NormalizeInstanceName(req.Instance)

	ctx = logging.CtxWithFields(logging.Ensure(ctx, s.log), map[string]any{
		logging.FieldLayer:    "usecase",
		logging.FieldUseCase:  "backup",
		logging.FieldAction:   "Backup",
		logging.FieldInstance: name,
	})
	log := logging.FromCtx(ctx)

	if err := domain.ValidateInstanceName(name); err != nil {
		return nil, err
	}

	dir, err := s.store.PrepareDir(ctx, req.BackupDir)
	if err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	wf, err := s.resolve(ctx, name, started)
	if err != nil {
		return nil, err
	}

	releaseID, err := s.acquireID(ctx, wf)
	if err != nil {
		return nil, err
	}
	defer releaseID()

	if wf.wasRunning && !req.Confirmed {
		return nil, fmt.Errorf("%w: %s is running and must be stopped for the backup", domain.ErrConfirmationRequired, name)
	}

	defer func() {
		if restartErr := s.restart(ctx, wf); restartErr != nil {
			err = errors.Join(err, restartErr)
		}
	}()

	if err := s.stop(ctx, wf); err != nil {
		return nil, err
	}

	artifact, err := s.store.Reserve(ctx, dir, domain.ArtifactName(name, started))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidBackupDir, err)
	}
	hostPath := filepath.Join(dir, artifact)
	log.Info().Str(logging.FieldPath, hostPath).Bool("was_running", wf.wasRunning).Msg("starting backup")

	spec := s.helperSpec(domain.OperationBackup, wf, dir, false)
	err = s.runner.WithSession(ctx, spec, func(ctx context.Context, sess *helper.Session) error {
		log.Debug().Str(logging.FieldSession, sess.Name()).Str(logging.FieldEntityID, sess.ID()).Msg("running dump")
		target := s.inBackupDir(artifact)
		if _, err := sess.Exec(ctx, s.dumpCommand(target)); err != nil {
			s.removePartial(ctx, sess, target)
			return &domain.StepError{Step: domain.StepDump, Err: fmt.Errorf("%w: %w", domain.ErrDumpFailed, err)}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("backup failed")
		return nil, err
	}

	size, sizeErr := s.store.Size(ctx, hostPath)
	if sizeErr != nil {
		log.Warn().Err(sizeErr).Str(logging.FieldPath, hostPath).Msg("artifact not visible on host")
	}

	result = &domain.BackupResult{
		Instance:   name,
		Artifact:   artifact,
		Path:       hostPath,
		SizeBytes:  size,
		WasRunning: wf.wasRunning,
		StartedAt:  started,
		Duration:   time.Since(started),
	}
	log.Info().
		Str(logging.FieldPath, hostPath).
		Int64("size_bytes", size).
		Dur(logging.FieldDuration, result.Duration).
		Msg("backup completed")
	return result, nil
}

// removePartial deletes a failed dump's output, best effort.
func (s *Service) removePartial(ctx context.Context, sess *helper.Session, target string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.CleanupTimeout)
	defer cancel()

	if _, err := sess.Exec(cleanupCtx, removePartialCommand(target)); err != nil {
		log := logging.FromCtx(ctx)
		log.Warn().Err(err).Str(logging.FieldPath, target).Str(logging.FieldSession, sess.Name()).Msg("failed to remove partial artifact")
	}
}
