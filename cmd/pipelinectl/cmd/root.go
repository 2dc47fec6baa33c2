package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time).
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values.
var (
	cfgFile   string
	logLevel  string
	batchSize int
	force     bool
)

var rootCmd = &cobra.Command{
	Use:   "pipelinectl",
	Short: "Batched, recoverable pipeline orchestrator",
	Long: `pipelinectl drives units of work through an external processing
environment and reconciles their results back to a source catalog.

It repeatedly:
  1. obtains the next batch of items from a source
  2. submits the batch to a remote processing environment
  3. polls until processing completes
  4. retrieves outputs
  5. exports outputs back to the source

A persistent status ledger records every item's position in the pipeline so
the process can resume precisely after interruption.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "pipelinectl.yaml",
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override task_scheduler.batch_size")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false,
		"Skip the advisory single-instance lock (use with caution)")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}
