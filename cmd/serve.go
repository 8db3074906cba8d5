package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/server"
	"github.com/desertthunder/playvert/internal/web"
	"github.com/urfave/cli/v3"
)

const purgeInterval = time.Hour

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = int(port)
	}

	handler, err := r.apiHandler()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go r.purgeLoop(ctx, purgeInterval)

	for _, p := range models.Platforms() {
		if _, err := r.engine.Service(p); err != nil {
			r.logger.Warn("platform unavailable", "platform", p, "error", err)
		}
	}

	return server.ListenAndServe(ctx, cfg.Addr(), handler, r.logger)
}

// apiHandler assembles the router: request logging, per-client throttling, /healthz and the API.
func (r *Runner) apiHandler() (http.Handler, error) {
	engine, err := r.Engine()
	if err != nil {
		return nil, err
	}

	router := server.NewBasicRouter()
	router.Use(
		server.RequestLogger(r.logger),
		server.NewThrottle(r.config.Server.RequestsPerSecond, r.config.Server.Burst).Middleware(),
	)
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","platforms":%d}`, len(engine.Platforms()))
	}))
	router.Mount("/api", web.New(engine, r.config.Server.ShareBaseURL, r.logger).Handler())

	return router, nil
}

// purgeLoop deletes expired share links every interval until ctx is done.
func (r *Runner) purgeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := r.links.PurgeExpired(ctx, now)
			if err != nil {
				r.logger.Error("failed to purge share links", "error", err)
				continue
			}
			if n > 0 {
				r.logger.Info("purged expired share links", "count", n)
			}
		}
	}
}
