package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/riftwatch/rift-harvester/internal/app"
)

const shutdownGrace = 10 * time.Second

// newHarvestCmd creates the 'harvest' subcommand, which runs one full
// collection pass over the configured platforms.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs a collection pass over the configured regions",
		Long: `Bootstraps seed players from the ranked ladders (or the configured
seed list), walks their match histories, and persists every on-patch ranked
match until the per-region target is reached. Regions run sequentially;
fetches within a region run concurrently under one process-wide limit.`,
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := app.New(ctx, cfgFile)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		a.Close(closeCtx)
	}()

	shutdownSrv, err := a.ServeDiagnostics()
	if err != nil {
		return err
	}
	defer func() {
		srvCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if serr := shutdownSrv(srvCtx); serr != nil {
			a.Log.Warn("diagnostics server shutdown failed", zap.Error(serr))
		}
	}()

	orch, err := a.Orchestrator()
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx, a.Platforms)
	for _, region := range report.Regions {
		a.Log.Info("region summary",
			zap.String("platform", region.Platform),
			zap.Int64("collected", region.Collected),
			zap.Int64("target", region.Target),
			zap.Int64("skipped", region.Skipped),
			zap.Bool("exhausted", region.Exhausted),
			zap.Duration("elapsed", region.Elapsed),
			zap.String("error", region.Err))
	}
	a.Log.Info("run finished",
		zap.String("run_id", report.RunID.String()),
		zap.Int64("total", report.Total))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("harvest: %w", runErr)
	}
	return nil
}
