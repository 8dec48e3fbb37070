package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/streamglass/pulse/internal/oracle"
	"github.com/streamglass/pulse/internal/store/postgres"
	"github.com/streamglass/pulse/internal/stream"
	"github.com/streamglass/pulse/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start an enrichment worker joining the consumer group",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		broker, err := stream.Connect(ctx, cfg.NATSURL, cfg.StreamName)
		if err != nil {
			return err
		}
		defer broker.Close()

		consumer, err := broker.EnsureConsumer(ctx, cfg.ConsumerGroup)
		if err != nil {
			return err
		}

		var analyzer oracle.Analyzer
		if cfg.OracleURL != "" {
			analyzer = oracle.NewRemote(cfg.OracleURL, cfg.OracleAPIKey, cfg.OracleModel)
			slog.Info("using remote analyzer", "model", cfg.OracleModel)
		} else {
			analyzer = oracle.NewLexicon()
			slog.Info("using lexicon analyzer (PULSE_ORACLE_URL not set)")
		}

		w := worker.New(consumer, analyzer, store, cfg.WorkerBatch)
		slog.Info("joining consumer group", "group", cfg.ConsumerGroup, "worker", w.Name())
		return w.Run(ctx)
	},
}
