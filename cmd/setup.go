package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/playvert/internal/repositories"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadOrCreateConfig reads configPath, creating it from the template when missing.
// Any failure falls back to the defaults with a warning.
func (r *Runner) loadOrCreateConfig(configPath string) *shared.Config {
	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if err := config.ApplyEnv(""); err != nil {
		r.logger.Warn("ignoring invalid environment overrides", "error", err)
	}
	return config
}

// SetupDatabase initializes the configured share-link store and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadOrCreateConfig(cmd.String("config"))

	path := config.Database.Path
	if config.Database.Driver == repositories.DriverBolt {
		path = config.Database.BoltPath
	}
	r.logger.Info("initializing database", "driver", config.Database.Driver, "path", path)

	stores, err := repositories.Open(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer stores.Close()

	n, err := stores.Links.PurgeExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to purge expired links: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("✓ Database ready at %s (%d expired links removed)\n", path, n)
}
