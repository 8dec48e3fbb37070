// Command pulse runs the sentiment pipeline: the API server, the
// enrichment worker, and the synthetic post producer.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamglass/pulse/internal/config"
	"github.com/streamglass/pulse/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pulse <command>",
	Short: "Social sentiment ingestion and insight pipeline",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.ParseLevel(os.Getenv("PULSE_LOG_LEVEL")))
		return nil
	},
}

// loadConfig wraps config.Load with a uniform error prefix.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(ingestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
