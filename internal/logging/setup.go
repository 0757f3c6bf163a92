package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bnema/dbsnap/internal/config"
)

// New builds the process logger from the logging configuration.
// The returned cleanup closes the log file, if any.
func New(cfg config.LoggingConfig, stderr io.Writer) (zerolog.Logger, func(), error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var console io.Writer = stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}
	}

	if !cfg.File.Enabled {
		logger := zerolog.New(console).Level(level).With().Timestamp().Logger()
		return logger, func() {}, nil
	}

	if cfg.File.Path == "" {
		return zerolog.Nop(), nil, fmt.Errorf("log.file.path is required when file logging is enabled")
	}

	// Create logs directory with secure permissions (0700 - owner only)
	if err := os.MkdirAll(filepath.Dir(cfg.File.Path), 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File.Path,
		MaxSize:    cfg.File.MaxSize,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAge,
		Compress:   cfg.File.Compress,
	}

	logger := zerolog.New(io.MultiWriter(console, fileWriter)).Level(level).With().Timestamp().Logger()

	// Set file permissions to be secure (readable only by owner)
	if err := os.Chmod(cfg.File.Path, 0600); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str("file", cfg.File.Path).Msg("failed to set secure permissions on log file")
	}

	cleanup := func() {
		_ = fileWriter.Close()
	}
	return logger, cleanup, nil
}
