package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/getsentry/sentry-go"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func main() {
	sink := newLogSink(os.Stderr)
	logger := shared.NewLogger(sink)
	// adapter loggers copy the level when they are derived, so it must be set first
	if debugRequested(os.Args) {
		shared.SetLogLevel(logger, log.DebugLevel)
	}

	configPath := os.Getenv("PLAYVERT_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.ApplyEnv(".env"); err != nil {
		logger.Fatalf("invalid environment: %v", err)
	}

	if dsn := config.Server.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Release:          "playvert@" + version,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Services:   buildServices(config, logger),
		Resolver:   services.NewResolver(config.Conversion.ResolverIdle.Duration, nil, logger),
		Logger:     logger,
		LogSink:    sink,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:    "playvert",
		Usage:   "Convert playlists between Spotify, Apple Music & Deezer",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}

// debugRequested reports whether args carry the global --debug flag.
func debugRequested(args []string) bool {
	if len(args) < 2 {
		return false
	}
	for _, arg := range args[1:] {
		if arg == "--" {
			return false
		}
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") || name != "debug" {
			continue
		}
		if !hasValue {
			return true
		}
		on, err := strconv.ParseBool(value)
		return err == nil && on
	}
	return false
}

// buildServices creates one adapter per platform with its own request gate.
// Platforms without credentials are skipped with a warning.
func buildServices(config *shared.Config, logger *log.Logger) []services.Service {
	var svcs []services.Service
	for _, p := range models.Platforms() {
		gate := services.NewGate(p.String(), config.Conversion.RateLimit, http.DefaultTransport, logger)
		svc, err := services.New(p, config, gate, logger)
		if err != nil {
			if errors.Is(err, shared.ErrMissingCredentials) {
				logger.Warn("platform disabled", "platform", p, "reason", err)
			} else {
				logger.Error("failed to configure platform", "platform", p, "error", err)
			}
			continue
		}
		svcs = append(svcs, svc)
	}
	return svcs
}
