package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override (DBSNAP_LOG_LEVEL, ...).
const EnvPrefix = "DBSNAP"

type Config struct {
	Docker   DockerConfig   `mapstructure:"docker"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Helper   HelperConfig   `mapstructure:"helper"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Lock     LockConfig     `mapstructure:"lock"`
	Logging  LoggingConfig  `mapstructure:"log"`
}

// DockerConfig selects the daemon. An empty Host falls back to DOCKER_HOST.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// EngineConfig describes the database engine inside the target instance.
type EngineConfig struct {
	DataPath     string   `mapstructure:"data_path"`
	BackupPath   string   `mapstructure:"backup_path"`
	Database     string   `mapstructure:"database"`
	DatabasesDir string   `mapstructure:"databases_dir"`
	DumpCmd      []string `mapstructure:"dump_cmd"`
	LoadCmd      []string `mapstructure:"load_cmd"`
	Owner        string   `mapstructure:"owner"`
	AuditLog     string   `mapstructure:"audit_log"`
}

type HelperConfig struct {
	NamePrefix string   `mapstructure:"name_prefix"`
	User       string   `mapstructure:"user"`
	Entrypoint []string `mapstructure:"entrypoint"`
	Keep       bool     `mapstructure:"keep"`
}

type TimeoutsConfig struct {
	Stop    time.Duration `mapstructure:"stop"`
	Exec    time.Duration `mapstructure:"exec"`
	Cleanup time.Duration `mapstructure:"cleanup"`
}

// LockConfig enables the cross-process file lock when Dir is non-empty.
type LockConfig struct {
	Dir string `mapstructure:"dir"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("docker.host", "")

	v.SetDefault("engine.data_path", "/data")
	v.SetDefault("engine.backup_path", "/backup")
	v.SetDefault("engine.database", "graph.db")
	v.SetDefault("engine.databases_dir", "databases")
	v.SetDefault("engine.dump_cmd", []string{"neo4j-admin", "dump"})
	v.SetDefault("engine.load_cmd", []string{"neo4j-admin", "load"})
	v.SetDefault("engine.owner", "neo4j:neo4j")
	v.SetDefault("engine.audit_log", "restore.log")

	v.SetDefault("helper.name_prefix", "dbsnap")
	v.SetDefault("helper.user", "root")
	v.SetDefault("helper.entrypoint", []string{"sleep", "infinity"})
	v.SetDefault("helper.keep", false)

	v.SetDefault("timeouts.stop", 30*time.Second)
	v.SetDefault("timeouts.exec", 30*time.Minute)
	v.SetDefault("timeouts.cleanup", 2*time.Minute)

	v.SetDefault("lock.dir", filepath.Join(os.TempDir(), "dbsnap-locks"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.max_size", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age", 28)
	v.SetDefault("log.file.compress", true)
}

// ReadFile points v at an explicit config file, or searches the standard
// locations for dbsnap.{toml,yaml}. A missing file is not an error unless
// it was requested explicitly.
func ReadFile(v *viper.Viper, configPath string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		return nil
	}

	v.SetConfigName("dbsnap")
	v.AddConfigPath(".")
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(userConfigDir, "dbsnap"))
	}
	v.AddConfigPath("/etc/dbsnap")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the workflows depend on.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.Engine.DataPath) {
		return fmt.Errorf("engine.data_path must be absolute, got %q", c.Engine.DataPath)
	}
	if !filepath.IsAbs(c.Engine.BackupPath) {
		return fmt.Errorf("engine.backup_path must be absolute, got %q", c.Engine.BackupPath)
	}
	if filepath.Clean(c.Engine.DataPath) == filepath.Clean(c.Engine.BackupPath) {
		return fmt.Errorf("engine.data_path and engine.backup_path must differ")
	}
	if c.Engine.Database == "" || strings.ContainsAny(c.Engine.Database, "/\\") || c.Engine.Database == ".." {
		return fmt.Errorf("engine.database must be a plain directory name, got %q", c.Engine.Database)
	}
	if len(c.Engine.DumpCmd) == 0 {
		return fmt.Errorf("engine.dump_cmd is required")
	}
	if len(c.Engine.LoadCmd) == 0 {
		return fmt.Errorf("engine.load_cmd is required")
	}
	if c.Engine.Owner == "" {
		return fmt.Errorf("engine.owner is required")
	}
	if c.Helper.NamePrefix == "" {
		return fmt.Errorf("helper.name_prefix is required")
	}
	if len(c.Helper.Entrypoint) == 0 {
		return fmt.Errorf("helper.entrypoint is required")
	}
	if c.Timeouts.Stop <= 0 || c.Timeouts.Exec <= 0 || c.Timeouts.Cleanup <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}

	validFormats := []string{"console", "json"}
	isValid := false
	for _, valid := range validFormats {
		if c.Logging.Format == valid {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("log.format must be one of: %s", strings.Join(validFormats, ", "))
	}

	return nil
}

// DatabaseDir is the in-volume directory purged and re-owned on restore,
// e.g. /data/databases/graph.db.
func (e EngineConfig) DatabaseDir() string {
	return filepath.Join(e.DataPath, e.DatabasesDir, e.Database)
}

// AuditLogPath is the in-volume path of the restore audit log.
func (e EngineConfig) AuditLogPath() string {
	if filepath.IsAbs(e.AuditLog) {
		return e.AuditLog
	}
	return filepath.Join(e.DataPath, e.AuditLog)
}
