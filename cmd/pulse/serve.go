package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamglass/pulse/internal/aggregate"
	"github.com/streamglass/pulse/internal/alert"
	"github.com/streamglass/pulse/internal/archive"
	"github.com/streamglass/pulse/internal/cache"
	"github.com/streamglass/pulse/internal/hub"
	"github.com/streamglass/pulse/internal/model"
	"github.com/streamglass/pulse/internal/server"
	"github.com/streamglass/pulse/internal/store/postgres"
	"github.com/streamglass/pulse/internal/stream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server, alert monitor and live feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Connect to Postgres, running migrations on open.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Connect to the stream for health reporting.
		ctx := context.Background()
		broker, err := stream.Connect(ctx, cfg.NATSURL, cfg.StreamName)
		if err != nil {
			store.Close()
			return err
		}

		memCache := cache.NewMemory()
		engine := aggregate.New(store, memCache)

		// Live hub with its feeders.
		liveHub := hub.New()
		feedCtx, feedCancel := context.WithCancel(context.Background())
		go hub.NewMetricsFeeder(liveHub, store).Run(feedCtx)
		go hub.NewPostWatcher(liveHub, store).Run(feedCtx)

		// Alert monitor broadcasting into the hub.
		monitor := alert.NewMonitor(store, alert.Config{
			Threshold: cfg.AlertThreshold,
			Window:    time.Duration(cfg.AlertWindowMinutes) * time.Minute,
			MinPosts:  cfg.AlertMinPosts,
			Interval:  cfg.AlertInterval,
		})
		monitor.OnAlert = func(a *model.Alert) {
			msg, err := hub.AlertMessage(a)
			if err != nil {
				slog.Error("encoding alert broadcast", "error", err)
				return
			}
			liveHub.Broadcast(feedCtx, msg)
		}
		go monitor.Run(feedCtx)

		// Archive scheduler if configured.
		var scheduler *archive.Scheduler
		if cfg.ArchiveInterval > 0 && cfg.ArchiveS3Bucket != "" {
			dest, err := archive.NewS3Destination(ctx,
				cfg.ArchiveS3Bucket, cfg.ArchiveS3Key, cfg.ArchiveS3Region, cfg.ArchiveS3Endpoint)
			if err != nil {
				slog.Error("failed to create S3 archive destination", "error", err)
			} else {
				scheduler = archive.NewScheduler(store, []archive.Destination{dest}, cfg.ArchiveInterval)
				scheduler.Start()
				slog.Info("archive scheduler started",
					"bucket", cfg.ArchiveS3Bucket, "interval", cfg.ArchiveInterval)
			}
		}

		// HTTP server.
		srv := server.New(store, engine, liveHub, broker)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.Handler(),
		}
		go func() {
			slog.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server error", "error", err)
			}
		}()

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)

		feedCancel()
		if scheduler != nil {
			scheduler.Stop()
			slog.Info("archive scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		slog.Info("HTTP server stopped")

		broker.Close()
		memCache.Close()
		if err := store.Close(); err != nil {
			slog.Error("error closing store", "error", err)
		}
		slog.Info("shutdown complete")
		return nil
	},
}
