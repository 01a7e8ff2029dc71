package cmd

import (
	"context"
	"fmt"

	"validation-recorder/config"
	"validation-recorder/db"
	"validation-recorder/logging"

	"github.com/sirupsen/logrus"
)

// loadRuntime loads configuration and sets up logging for a command
func loadRuntime() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	return cfg, logger, nil
}

// openDatabase connects to the configured store and brings its schema up to date
func openDatabase(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*db.Database, error) {
	database, err := db.NewDatabase(cfg.Database.Driver, cfg.Database.GetDSN(), db.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return database, nil
}
