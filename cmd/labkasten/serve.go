package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-arndt/labkasten/internal/api"
	"github.com/p-arndt/labkasten/internal/catalog"
	"github.com/p-arndt/labkasten/internal/clock"
	"github.com/p-arndt/labkasten/internal/pool"
	"github.com/p-arndt/labkasten/internal/reaper"
	"github.com/p-arndt/labkasten/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lab daemon",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(os.Stdout, cfg.LogLevel)

	if cfg.APIKey == "" {
		logger.Warn("no API key configured, running in open access mode")
	}

	cat, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	seeded, err := cat.Seed(ctx, cfg.Labs)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info("catalog ready", "path", cfg.DBPath, "seeded", seeded)

	drv, closeDriver, err := newDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDriver()

	mgr := session.NewManager(cfg, drv, cat, clock.Real(), logger)

	// A missing runtime is reported through /healthz and per-request
	// errors rather than refusing to start.
	if err := mgr.Ping(ctx); err != nil {
		logger.Error("container runtime unreachable, is docker running?", "driver", cfg.Runtime.Driver, "error", err)
	} else {
		logger.Info("container runtime OK", "driver", cfg.Runtime.Driver)
	}

	if cfg.Prewarm.Enabled {
		entries, err := cat.List(ctx)
		if err != nil {
			logger.Warn("prewarm: list catalog", "error", err)
		}
		warmer := pool.New(drv, cfg.Prewarm.Workers, cfg.Timeouts.PullTimeout(), logger)
		go warmer.Warm(ctx, prewarmImages(entries, cfg.Workstation.Image))
	}

	rpr := reaper.New(mgr, clock.Real(), cfg.Reaper.Interval(), cfg.Reaper.IdleThreshold(), logger)
	go rpr.Run(ctx)

	srv := api.NewServer(cfg, mgr, cat, logger)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}

	for _, s := range mgr.Snapshot() {
		logger.Info("session left running", "key", s.Key.String(), "container", s.ContainerName)
	}
	return nil
}

// prewarmImages lists the workstation image followed by every containerized
// lab image in catalog order.
func prewarmImages(entries []*catalog.Entry, workstationImage string) []string {
	images := []string{workstationImage}
	for _, e := range entries {
		if e.Containerized() {
			images = append(images, e.Image)
		}
	}
	return pool.Dedupe(images)
}
