package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/dbsmedya/pipelinectl/internal/config"
	"github.com/dbsmedya/pipelinectl/internal/ledger"
	"github.com/dbsmedya/pipelinectl/internal/logger"
	"github.com/dbsmedya/pipelinectl/internal/registry"
	"github.com/dbsmedya/pipelinectl/internal/scheduler"
)

const lockAcquireTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive the pipeline to completion (recovery protocol then main loop)",
	Long: `Run executes the recovery protocol once, then repeatedly pulls the
next batch from the configured Source, drives it through the configured
ProcessingDriver's register/process/monitor/fetch steps, and hands the
results to the configured Exporter, until the Source is exhausted or a
critical failure terminates the loop.

Example:
  pipelinectl run --config pipelinectl.yaml`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(logLevel, batchSize)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	statusLedger, err := registry.LedgerFactories.Build(cfg.StatusHandler.Type, registry.LedgerInput{
		Config: cfg.StatusHandler.Config,
		Logger: log,
		Ctx:    ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to build status ledger: %w", err)
	}

	var releaseLock func(context.Context) error
	if !force {
		sqliteLedger, ok := statusLedger.(*ledger.SQLiteLedger)
		if ok {
			releaseLock, err = acquireLock(ctx, sqliteLedger, log)
			if err != nil {
				statusLedger.Close()
				return err
			}
		}
	} else {
		log.Warn("skipping advisory lock acquisition (--force flag used)")
	}

	// Both the lock release and the ledger close can fail independently; combine
	// them into one error so neither failure is silently dropped in favor of the
	// other.
	defer func() {
		var teardownErr error
		if releaseLock != nil {
			teardownErr = multierr.Append(teardownErr, releaseLock(context.Background()))
		}
		teardownErr = multierr.Append(teardownErr, statusLedger.Close())
		if teardownErr != nil {
			log.Warnf("error during shutdown teardown: %v", teardownErr)
		}
	}()

	driver, err := registry.ProcEnvFactories.Build(cfg.ProcEnv.Type, registry.ProcEnvInput{
		Config: cfg.ProcEnv.Config,
		Ledger: statusLedger,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to build processing driver: %w", err)
	}

	source, err := registry.SourceFactories.Build(cfg.DataProvider.Type, registry.SourceInput{
		Config: cfg.DataProvider.Config,
		Ledger: statusLedger,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to build source adapter (register a factory for type %q): %w", cfg.DataProvider.Type, err)
	}

	exporter, err := registry.ExporterFactories.Build(cfg.Exporter.Type, registry.ExporterInput{
		Config: cfg.Exporter.Config,
		Ledger: statusLedger,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to build exporter (register a factory for type %q): %w", cfg.Exporter.Type, err)
	}

	sched := scheduler.New(statusLedger, source, driver, exporter, log, scheduler.Config{
		BatchSize:   cfg.TaskScheduler.BatchSize,
		BatchPrefix: cfg.TaskScheduler.BatchPrefix,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received shutdown signal, will stop at the next suspension point")
		cancel()
	}()

	if err := sched.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("run cancelled by user")
			return nil
		}
		return fmt.Errorf("pipeline run failed: %w", err)
	}
	return nil
}

// acquireLock takes the ledger's advisory single-instance lock so two
// scheduler processes never drive the same ledger concurrently. It returns
// a release function the caller must defer.
func acquireLock(ctx context.Context, l *ledger.SQLiteLedger, log *logger.Logger) (func(context.Context) error, error) {
	lockHolder, _ := os.Hostname()
	lock, err := l.Lock(ctx, "pipelinectl-run", lockHolder)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare run lock: %w", err)
	}
	if err := lock.AcquireOrFail(ctx, lockAcquireTimeout); err != nil {
		if errors.Is(err, ledger.ErrLockTimeout) {
			return nil, fmt.Errorf("another pipelinectl instance is already running against this ledger (use --force to override): %w", err)
		}
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	log.Info("acquired advisory lock for this run")
	return lock.Release, nil
}
