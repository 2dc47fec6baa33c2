package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pipelinectl/internal/config"
	"github.com/dbsmedya/pipelinectl/internal/logger"
	"github.com/dbsmedya/pipelinectl/internal/monitor"
	"github.com/dbsmedya/pipelinectl/internal/registry"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print a terse status snapshot of the pipeline ledger",
	Long: `Status opens the ledger read-only and prints the terse snapshot
shape: last proc/source batch ids and their status/error counts.

Example:
  pipelinectl status --config pipelinectl.yaml`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.NewDefault()
	ctx := context.Background()

	statusLedger, err := registry.LedgerFactories.Build(cfg.StatusHandler.Type, registry.LedgerInput{
		Config: cfg.StatusHandler.Config,
		Logger: log,
		Ctx:    ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to open status ledger: %w", err)
	}
	defer statusLedger.Close()

	mon := monitor.New(statusLedger)
	snapshot, err := mon.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to build status snapshot: %w", err)
	}

	sink := monitor.NewTerminalSink(cmd.OutOrStdout())
	return sink.RenderSnapshot(ctx, snapshot)
}
