package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/streamglass/pulse/internal/ingest"
	"github.com/streamglass/pulse/internal/stream"
)

var ingestDuration time.Duration

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Start the synthetic post producer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		broker, err := stream.Connect(ctx, cfg.NATSURL, cfg.StreamName)
		if err != nil {
			return err
		}
		defer broker.Close()

		var templates ingest.Templates
		if cfg.TemplateFile != "" {
			templates, err = ingest.LoadTemplates(cfg.TemplateFile)
			if err != nil {
				return err
			}
			slog.Info("loaded templates", "file", cfg.TemplateFile)
		}

		producer := ingest.New(broker, cfg.PostsPerMinute, templates)
		published := producer.Run(ctx, ingestDuration)
		slog.Info("ingest finished", "published", published)
		return nil
	},
}

func init() {
	ingestCmd.Flags().DurationVar(&ingestDuration, "duration", 0,
		"stop after this long (0 = run until interrupted)")
}
