// Package cli implements the proximity command-line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "proximity",
	Short: "Term proximity networks over a local document corpus",
	Long: `proximity finds which terms co-occur near a reference term across the
documents retrieved for a query, and how far apart they typically are.

Example usage:
  proximity run --corpus 'data/**/*.json' -q "sensor network"
  proximity run --corpus data/corpus.json -q "iot" --reference network --summarize mean
  proximity import --source bolt 'data/**/*.json'`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		// stdout carries command output.
		slog.SetDefault(logger.New(os.Stderr, logLevel, "text"))
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}
