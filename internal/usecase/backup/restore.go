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

// Restore replaces the instance's database with the artifact at
// req.ArtifactPath. The existing database directory is deleted before the
// load, so req.Confirmed must be set.
//
// Ownership fix and audit append failures do not fail the restore; they
// are returned in RestoreResult.Warnings.
func (s *Service) Restore(ctx context.Context, req domain.RestoreRequest) (result *domain.RestoreResult, err error) {
	started := s.now()
	name := domain.NormalizeInstanceName(req.Instance)

	ctx = logging.CtxWithFields(logging.Ensure(ctx, s.log), map[string]any{
		logging.FieldLayer:    "usecase",
		logging.FieldUseCase:  "backup",
		logging.FieldAction:   "Restore",
		logging.FieldInstance: name,
	})
	log := logging.FromCtx(ctx)

	if !req.Confirmed {
		return nil, fmt.Errorf("%w: restore deletes the current database of %s", domain.ErrConfirmationRequired, name)
	}
	if err := domain.ValidateInstanceName(name); err != nil {
		return nil, err
	}

	dir, artifact, err := s.store.Locate(ctx, req.ArtifactPath)
	if err != nil {
		return nil, err
	}
	hostPath := filepath.Join(dir, artifact)
	if owner, _, ok := domain.ParseArtifactName(artifact); ok && owner != name {
		log.Warn().Str("artifact_instance", owner).Str(logging.FieldPath, hostPath).Msg("artifact was dumped from a different instance")
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

	defer func() {
		if restartErr := s.restart(ctx, wf); restartErr != nil {
			err = errors.Join(err, restartErr)
		}
	}()

	if err := s.stop(ctx, wf); err != nil {
		return nil, err
	}
	log.Info().Str(logging.FieldPath, hostPath).Bool("was_running", wf.wasRunning).Msg("starting restore")

	var warnings []error
	spec := s.helperSpec(domain.OperationRestore, wf, dir, true)
	err = s.runner.WithSession(ctx, spec, func(ctx context.Context, sess *helper.Session) error {
		log.Debug().Str(logging.FieldSession, sess.Name()).Str(logging.FieldEntityID, sess.ID()).Msg("purging and loading")
		if _, err := sess.Exec(ctx, s.purgeCommand()); err != nil {
			return &domain.StepError{Step: domain.StepPurge, Err: err}
		}

		if _, err := sess.Exec(ctx, s.loadCommand(s.inBackupDir(artifact))); err != nil {
			return &domain.StepError{Step: domain.StepLoad, Err: fmt.Errorf("%w: %w", domain.ErrLoadFailed, err)}
		}

		warnings = append(warnings, s.fixOwnership(ctx, sess)...)

		record := domain.AuditRecord{At: started, Instance: name, ArtifactPath: hostPath}
		if _, err := sess.Exec(ctx, s.auditCommand(record.String())); err != nil {
			log.Warn().Err(err).Msg("failed to append audit record")
			warnings = append(warnings, fmt.Errorf("%w: %w", domain.ErrAuditAppendFailed, err))
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("restore failed")
		return nil, err
	}

	result = &domain.RestoreResult{
		Instance:     name,
		ArtifactPath: hostPath,
		WasRunning:   wf.wasRunning,
		StartedAt:    started,
		Duration:     time.Since(started),
		Warnings:     warnings,
	}
	log.Info().
		Int("warnings", len(warnings)).
		Dur(logging.FieldDuration, result.Duration).
		Msg("restore completed")
	return result, nil
}

// fixOwnership hands the loaded database back to the engine's user. Both
// commands are attempted; failures come back as warnings.
func (s *Service) fixOwnership(ctx context.Context, sess *helper.Session) []error {
	log := logging.FromCtx(ctx)

	var warnings []error
	for _, cmd := range []domain.ExecCommand{s.chownCommand(), s.chmodCommand()} {
		if _, err := sess.Exec(ctx, cmd); err != nil {
			log.Warn().Err(err).Str(logging.FieldStep, cmd.Args[0]).Msg("failed to fix permissions")
			warnings = append(warnings, fmt.Errorf("%w: %w", domain.ErrPermissionFixFailed, err))
		}
	}
	return warnings
}
