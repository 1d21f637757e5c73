// Package cmd defines the CLI commands for the rift-harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// version is stamped at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rift-harvester",
		Short: "Collects ranked match records from the game-statistics API.",
		Long: `rift-harvester walks the ranked player graph region by region,
fetching match records through a rate-limited, fault-tolerant gateway and
persisting them idempotently. It survives flaky platforms via per-platform
circuit breaking and adaptive retries.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newHealthCmd())

	return cmd
}

// Execute is the main entry point. It installs signal-based cancellation so
// an interrupted run shuts down cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
