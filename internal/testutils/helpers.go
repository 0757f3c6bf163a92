package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestContext creates a test context with timeout
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WriteTempConfig writes content to dbsnap.toml in a fresh temp dir and
// returns its path.
func WriteTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbsnap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// LoadFixtureConfig returns a named configuration fixture.
func LoadFixtureConfig(t *testing.T, filename string) string {
	t.Helper()
	switch filename {
	case "minimal.toml":
		return `[engine]
data_path = "/data"`
	case "postgres.toml":
		return `[engine]
data_path = "/var/lib/postgresql/data"
backup_path = "/backup"
database = "app"
databases_dir = "base"
dump_cmd = ["pg-offline-dump"]
load_cmd = ["pg-offline-load"]
owner = "postgres:postgres"

[helper]
name_prefix = "snap"

[timeouts]
exec = "10m"

[log]
level = "warn"
format = "json"`
	case "invalid.toml":
		return `[engine
data_path = "/data"`
	}
	t.Fatalf("unknown config fixture %q", filename)
	return ""
}
