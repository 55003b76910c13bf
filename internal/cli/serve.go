package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lazypower/cadence/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if cfg.Metrics.Enabled && cfg.Metrics.DueGaugeEvery > 0 {
		a.engine.StartDueGauge(a.db, cfg.Metrics.DueGaugeEvery)
	}

	var limit server.RateLimitConfig
	if cfg.RateLimit.Enabled {
		limit = server.RateLimitConfig{
			RPS:      cfg.RateLimit.RPS,
			Burst:    cfg.RateLimit.Burst,
			EntryTTL: cfg.RateLimit.TTL,
		}
	}
	defaults := cfg.Scheduler.DeckDefaults()
	srv := server.New(a.db, a.engine, VersionString(), server.Options{
		Logger:       a.log,
		Metrics:      a.metrics,
		MetricsPath:  cfg.Metrics.Path,
		RateLimit:    limit,
		SessionTTL:   cfg.Server.SessionTTL,
		DeckDefaults: &defaults,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("cadence serving", "addr", addr, "db", a.db.Path, "version", VersionString())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	a.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
