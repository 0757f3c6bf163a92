// Package app provides the application initialization and wiring.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	// Adapters - Output
	"github.com/bnema/dbsnap/internal/adapters/out/docker"
	"github.com/bnema/dbsnap/internal/adapters/out/filesystem"
	"github.com/bnema/dbsnap/internal/adapters/out/lock"

	// Boundaries
	"github.com/bnema/dbsnap/internal/boundaries/out"

	"github.com/bnema/dbsnap/internal/config"
	"github.com/bnema/dbsnap/internal/logging"

	// Use cases
	"github.com/bnema/dbsnap/internal/usecase/backup"
)

// App is a wired backup service plus the resources it owns.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Service *backup.Service

	closers []func()
}

// New loads the configuration held by v, connects to Docker and wires the
// backup service. Close must be called when done.
func New(ctx context.Context, v *viper.Viper, stderr io.Writer) (*App, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, closeLog, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	ctx = log.WithContext(ctx)

	runtime, err := createRuntime(ctx, cfg)
	if err != nil {
		closeLog()
		return nil, err
	}

	a := &App{Config: cfg, Log: log}
	a.closers = append(a.closers, closeLog, func() { _ = runtime.Close() })
	a.Service = newService(cfg, runtime, log)
	return a, nil
}

// Close releases the Docker client and the log file.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// createRuntime creates the Docker runtime and checks the daemon answers.
func createRuntime(ctx context.Context, cfg *config.Config) (*docker.Runtime, error) {
	log := logging.FromCtx(ctx)

	runtime, err := docker.NewRuntime(cfg.Docker.Host, docker.WithStopTimeout(cfg.Timeouts.Stop))
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker runtime: %w", err)
	}

	if err := runtime.Ping(ctx); err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("docker is not available: %w", err)
	}

	dockerVersion, _ := runtime.Version(ctx)
	log.Debug().Str("docker_version", dockerVersion).Msg("Docker runtime initialized")
	return runtime, nil
}

// newService wires the backup service around runtime.
func newService(cfg *config.Config, runtime out.ContainerRuntime, log zerolog.Logger) *backup.Service {
	return backup.NewService(
		runtime,
		filesystem.NewBackupStorage(),
		lock.New(cfg.Lock.Dir),
		ServiceConfig(cfg),
		log,
	)
}

// ServiceConfig maps the file configuration onto the workflow configuration.
func ServiceConfig(cfg *config.Config) backup.Config {
	return backup.Config{
		DataPath:         cfg.Engine.DataPath,
		BackupPath:       cfg.Engine.BackupPath,
		Database:         cfg.Engine.Database,
		DatabaseDir:      cfg.Engine.DatabaseDir(),
		DumpCmd:          cfg.Engine.DumpCmd,
		LoadCmd:          cfg.Engine.LoadCmd,
		Owner:            cfg.Engine.Owner,
		AuditLogPath:     cfg.Engine.AuditLogPath(),
		HelperPrefix:     cfg.Helper.NamePrefix,
		HelperUser:       cfg.Helper.User,
		HelperEntrypoint: cfg.Helper.Entrypoint,
		Keep:             cfg.Helper.Keep,
		ExecTimeout:      cfg.Timeouts.Exec,
		CleanupTimeout:   cfg.Timeouts.Cleanup,
	}
}
