// Package cli implements the CLI adapter for dbsnap.
// This package provides Cobra commands that delegate to the backup use cases.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bnema/dbsnap/internal/boundaries/in"
	"github.com/bnema/dbsnap/internal/config"
)

// Backend is the set of use cases the commands drive.
type Backend interface {
	in.BackupService
	in.SessionService
}

// Factory builds a Backend from the configuration held by v. The returned
// cleanup releases its resources.
type Factory func(ctx context.Context, v *viper.Viper, stderr io.Writer) (Backend, func(), error)

// BuildInfo is the version information set at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Option customizes the root command.
type Option func(*root)

// WithPrompter replaces the terminal prompter.
func WithPrompter(p Prompter) Option {
	return func(r *root) { r.prompter = p }
}

// WithOutput redirects command output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *root) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

type root struct {
	info     BuildInfo
	factory  Factory
	v        *viper.Viper
	prompter Prompter
	stdout   io.Writer
	stderr   io.Writer

	configPath string
	debug      bool
}

// NewRootCmd creates the root command for the dbsnap CLI.
func NewRootCmd(info BuildInfo, factory Factory, opts ...Option) *cobra.Command {
	r := &root{
		info:     info,
		factory:  factory,
		v:        viper.New(),
		prompter: newSurveyPrompter(),
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	config.SetDefaults(r.v)

	rootCmd := &cobra.Command{
		Use:   "dbsnap",
		Short: "Back up and restore databases running in Docker containers",
		Long: `dbsnap takes offline dumps of a containerized database and loads them back.

The target container is stopped, the engine's dump or load tool runs in a
disposable helper container bound to the same data volume, and the target is
restarted if it was running.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: r.loadConfig,
	}
	rootCmd.SetOut(r.stdout)
	rootCmd.SetErr(r.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&r.configPath, "config", "", "config file (default is ./dbsnap.toml)")
	flags.BoolVar(&r.debug, "debug", false, "debug logging; keep helper containers after they stop")
	flags.String("docker-host", "", "Docker daemon address (default from DOCKER_HOST)")
	_ = r.v.BindPFlag("docker.host", flags.Lookup("docker-host"))

	rootCmd.AddCommand(newBackupCmd(r))
	rootCmd.AddCommand(newRestoreCmd(r))
	rootCmd.AddCommand(newInspectCmd(r))
	rootCmd.AddCommand(newSessionsCmd(r))
	rootCmd.AddCommand(newVersionCmd(r))

	return rootCmd
}

func (r *root) loadConfig(cmd *cobra.Command, _ []string) error {
	if err := config.ReadFile(r.v, r.configPath); err != nil {
		return err
	}
	if r.debug {
		r.v.Set("log.level", "debug")
		r.v.Set("helper.keep", true)
	}
	return nil
}

// backend builds the services for one command run.
func (r *root) backend(cmd *cobra.Command) (Backend, func(), error) {
	return r.factory(cmd.Context(), r.v, r.stderr)
}

// Execute runs the CLI and returns the process exit code.
func Execute(info BuildInfo, factory Factory) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd(info, factory)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(rootCmd.ErrOrStderr(), err)
		return 1
	}
	return 0
}
