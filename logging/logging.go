package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"validation-recorder/config"

	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger according to configuration.
// It supports writing to stdout/stderr plus optional file output.
// Multiple outputs are combined via io.MultiWriter.
func Init(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()
	if err := Configure(logger, cfg); err != nil {
		return nil, err
	}
	return logger, nil
}

// Configure applies cfg to an existing logger
func Configure(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	var writers []io.Writer

	switch cfg.Output {
	case "", "stdout":
		writers = append(writers, os.Stdout)
	case "stderr":
		writers = append(writers, os.Stderr)
	case "file":
		// no console writer when file only
		if cfg.File == "" {
			return fmt.Errorf("logging.output is file but logging.file is empty")
		}
	default:
		return fmt.Errorf("unsupported log output %q", cfg.Output)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	}

	logger.SetOutput(io.MultiWriter(writers...))
	return nil
}
