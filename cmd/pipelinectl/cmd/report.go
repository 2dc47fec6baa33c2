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

var reportSink string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a detailed status report of the pipeline ledger",
	Long: `Report opens the ledger read-only and renders the detailed report
shape: completed/uncompleted source batch names, the current source batch,
and status/error counts (overall and per source_extra_info), through the
chosen sink.

Example:
  pipelinectl report --config pipelinectl.yaml --sink terminal
  pipelinectl report --config pipelinectl.yaml --sink slack`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportSink, "sink", "terminal", "Sink to render through: terminal or slack")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
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

	sinkConfig := cfg.StatusMonitor.Config
	sink, err := registry.SinkFactories.Build(reportSink, registry.SinkInput{
		Config: sinkConfig,
		Out:    cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to build %q sink: %w", reportSink, err)
	}

	mon := monitor.New(statusLedger)
	detailed, err := mon.DetailedReport(ctx)
	if err != nil {
		return fmt.Errorf("failed to build detailed report: %w", err)
	}
	return sink.RenderDetailedReport(ctx, detailed)
}
