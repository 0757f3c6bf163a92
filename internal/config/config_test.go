package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/dbsnap/internal/testutils"
)

func newViper(t *testing.T, content string) *viper.Viper {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	if content == "" {
		return v
	}

	require.NoError(t, ReadFile(v, testutils.WriteTempConfig(t, content)))
	return v
}

func TestConfig_Load_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "/data", cfg.Engine.DataPath)
	assert.Equal(t, "/backup", cfg.Engine.BackupPath)
	assert.Equal(t, []string{"neo4j-admin", "dump"}, cfg.Engine.DumpCmd)
	assert.Equal(t, []string{"neo4j-admin", "load"}, cfg.Engine.LoadCmd)
	assert.Equal(t, "neo4j:neo4j", cfg.Engine.Owner)
	assert.Equal(t, "root", cfg.Helper.User)
	assert.Equal(t, []string{"sleep", "infinity"}, cfg.Helper.Entrypoint)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Stop)
	assert.Equal(t, 30*time.Minute, cfg.Timeouts.Exec)
	assert.Equal(t, "/data/databases/graph.db", cfg.Engine.DatabaseDir())
	assert.Equal(t, "/data/restore.log", cfg.Engine.AuditLogPath())
	assert.NotEmpty(t, cfg.Lock.Dir)
}

func TestConfig_Load_FileOverrides(t *testing.T) {
	cfg, err := Load(newViper(t, `
[engine]
data_path = "/var/lib/neo4j/data"
database = "neo4j"
dump_cmd = ["neo4j-admin", "database", "dump"]

[timeouts]
exec = "5m"

[log]
level = "debug"
format = "json"
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/neo4j/data/databases/neo4j", cfg.Engine.DatabaseDir())
	assert.Equal(t, []string{"neo4j-admin", "database", "dump"}, cfg.Engine.DumpCmd)
	assert.Equal(t, 5*time.Minute, cfg.Timeouts.Exec)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestConfig_Load_Fixture(t *testing.T) {
	cfg, err := Load(newViper(t, testutils.LoadFixtureConfig(t, "postgres.toml")))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/postgresql/data/base/app", cfg.Engine.DatabaseDir())
	assert.Equal(t, []string{"pg-offline-load"}, cfg.Engine.LoadCmd)
	assert.Equal(t, "postgres:postgres", cfg.Engine.Owner)
	assert.Equal(t, "snap", cfg.Helper.NamePrefix)
	assert.Equal(t, 10*time.Minute, cfg.Timeouts.Exec)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConfig_ReadFile_Malformed(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	err := ReadFile(v, testutils.WriteTempConfig(t, testutils.LoadFixtureConfig(t, "invalid.toml")))
	require.Error(t, err)
}

func TestConfig_Load_EnvOverride(t *testing.T) {
	t.Setenv("DBSNAP_HELPER_USER", "0:0")

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, ReadFile(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "0:0", cfg.Helper.User)
}

func TestConfig_ReadFile_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := ReadFile(v, filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative data path", mutate: func(c *Config) { c.Engine.DataPath = "data" }},
		{name: "same data and backup path", mutate: func(c *Config) { c.Engine.BackupPath = "/data/" }},
		{name: "database with slash", mutate: func(c *Config) { c.Engine.Database = "../etc" }},
		{name: "empty dump cmd", mutate: func(c *Config) { c.Engine.DumpCmd = nil }},
		{name: "empty load cmd", mutate: func(c *Config) { c.Engine.LoadCmd = nil }},
		{name: "empty owner", mutate: func(c *Config) { c.Engine.Owner = "" }},
		{name: "empty entrypoint", mutate: func(c *Config) { c.Helper.Entrypoint = nil }},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeouts.Exec = 0 }},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper(t, ""))
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
