package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/dbsnap/internal/boundaries/out"
	"github.com/bnema/dbsnap/internal/domain"
)

// maxDisambiguators bounds the search for a free artifact name.
const maxDisambiguators = 1000

var _ out.ArtifactStore = (*BackupStorage)(nil)

// BackupStorage implements the host side of artifact directories on the local filesystem.
type BackupStorage struct{}

// NewBackupStorage creates a new filesystem backup storage.
func NewBackupStorage() *BackupStorage {
	return &BackupStorage{}
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path[2:])
	}
	return path
}

// realPath returns the absolute, symlink-resolved form of path.
func realPath(path string) (string, error) {
	abs, err := filepath.Abs(expandTilde(path))
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// PrepareDir creates dir if needed and returns its real path.
func (s *BackupStorage) PrepareDir(_ context.Context, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInvalidBackupDir)
	}

	if err := os.MkdirAll(expandTilde(dir), 0750); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidBackupDir, err)
	}

	resolved, err := realPath(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidBackupDir, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidBackupDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidBackupDir, resolved)
	}
	return resolved, nil
}

// Reserve returns name, or name with the smallest "-N" disambiguator that
// does not exist in dir. Artifacts are never overwritten.
func (s *BackupStorage) Reserve(_ context.Context, dir, name string) (string, error) {
	for n := 0; n < maxDisambiguators; n++ {
		candidate := domain.DisambiguateArtifact(name, n)
		_, err := os.Lstat(filepath.Join(dir, candidate))
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check artifact %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("no free artifact name for %s in %s", name, dir)
}

// Locate resolves an existing artifact into its real directory and base name.
func (s *BackupStorage) Locate(_ context.Context, path string) (string, string, error) {
	resolved, err := realPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, path)
		}
		return "", "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", domain.ErrArtifactNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return "", "", fmt.Errorf("%w: %s is not a regular file", domain.ErrArtifactNotFound, resolved)
	}

	dir, base := filepath.Split(resolved)
	return filepath.Clean(dir), base, nil
}

// Size returns the artifact size in bytes.
func (s *BackupStorage) Size(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
