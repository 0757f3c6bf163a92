// Package in defines input ports (interfaces) driven by the CLI adapter.
package in

import (
	"context"

	"github.com/bnema/dbsnap/internal/domain"
)

// BackupService defines the backup and restore use cases.
type BackupService interface {
	Backup(ctx context.Context, req domain.BackupRequest) (*domain.BackupResult, error)
	Restore(ctx context.Context, req domain.RestoreRequest) (*domain.RestoreResult, error)
	Inspect(ctx context.Context, instance string) (*domain.Instance, *domain.DataVolume, error)
}

// SessionService manages helper containers left behind by debug runs.
type SessionService interface {
	ListSessions(ctx context.Context) ([]*domain.Instance, error)
	PruneSessions(ctx context.Context) ([]string, error)
}
