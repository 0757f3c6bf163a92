package out

import "context"

// ArtifactStore manages the host side of backup artifact directories.
type ArtifactStore interface {
	// PrepareDir returns the absolute, symlink-free form of dir, creating it if needed.
	PrepareDir(ctx context.Context, dir string) (string, error)
	// Reserve returns a file name based on name that does not exist in dir.
	Reserve(ctx context.Context, dir, name string) (string, error)
	// Locate splits an existing artifact path into its absolute directory and base name.
	Locate(ctx context.Context, path string) (dir, base string, err error)
	// Size returns the artifact size in bytes.
	Size(ctx context.Context, path string) (int64, error)
}
