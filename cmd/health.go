package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/app"
)

// newHealthCmd creates the 'health' subcommand, a one-shot reachability
// report for the configured platforms.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probes DNS and HTTP reachability for each configured platform",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := app.New(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	for _, report := range a.Checker.CheckAll(ctx, a.Platforms) {
		a.Log.Info("platform health",
			zap.String("platform", report.Platform),
			zap.Bool("reachable", report.Reachable),
			zap.Duration("latency", report.Latency),
			zap.String("last_error", report.LastError))
	}
	return nil
}
