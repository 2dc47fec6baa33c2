package scheduler

import (
	"context"
	"fmt"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
	"github.com/dbsmedya/pipelinectl/internal/logger"
)

// Config configures the scheduler's main loop.
type Config struct {
	BatchSize   int
	BatchPrefix string
}

// Scheduler is the top-level orchestrator: it owns the recovery protocol,
// the main loop over source batches, and the per-proc-batch pipeline.
type Scheduler struct {
	ledger   ledger.Ledger
	source   Source
	driver   ProcessingDriver
	exporter Exporter
	logger   *logger.Logger
	cfg      Config
}

// New wires a Scheduler from its collaborators.
func New(l ledger.Ledger, source Source, driver ProcessingDriver, exporter Exporter, log *logger.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Scheduler{ledger: l, source: source, driver: driver, exporter: exporter, logger: log, cfg: cfg}
}

// Run executes the recovery protocol once, then the main loop until the
// source is exhausted or a critical failure terminates it.
func (s *Scheduler) Run(ctx context.Context) error {
	procBatchID, items, skip, hasWork, err := s.recover(ctx)
	if err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}
	if !hasWork {
		s.logger.Info("no work recovered and source yielded nothing, quitting")
		return nil
	}

	if items != nil {
		s.logger.Infof("resuming proc_batch %d at step %d", procBatchID, skip+1)
		ok, err := s.runProcBatch(ctx, procBatchID, items, skip)
		if err != nil {
			return fmt.Errorf("critical error resuming proc_batch %d: %w", procBatchID, err)
		}
		if !ok {
			return fmt.Errorf("critical error whilst processing proc_batch %d, quitting", procBatchID)
		}
		procBatchID++
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Warn("context cancelled, stopping before next batch")
			return ctx.Err()
		default:
		}

		s.logger.Debugf("asking source for next batch: %d (%d)", procBatchID, s.cfg.BatchSize)
		nextItems, err := s.source.GetNextBatch(ctx, procBatchID, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch next batch: %w", err)
		}
		if nextItems == nil {
			s.logger.Debug("no source_batch remaining, all done, quitting")
			return nil
		}

		ok, err := s.runProcBatch(ctx, procBatchID, nextItems, 0)
		if err != nil {
			return fmt.Errorf("critical error processing proc_batch %d: %w", procBatchID, err)
		}
		if !ok {
			s.logger.Errorf("critical error whilst processing proc_batch %d, quitting", procBatchID)
			return fmt.Errorf("proc_batch %d failed", procBatchID)
		}

		procBatchID++
	}
}

// recover loads the current source batch (materializing source batch 0 if
// the ledger is empty) and the last proc batch, and computes how many
// per-batch pipeline steps may be skipped on resumption.
//
// Returns hasWork=false only when the ledger is empty and the source has no
// source batch 0 either — there is no work and nothing to resume.
func (s *Scheduler) recover(ctx context.Context) (procBatchID int64, items []*ledger.Item, skip int, hasWork bool, err error) {
	_, ok, err := s.ledger.RecoverCurrentSourceBatch(ctx)
	if err != nil {
		return 0, nil, 0, false, err
	}
	if !ok {
		seed, err := s.source.FetchSourceBatchData(ctx, 0)
		if err != nil {
			return 0, nil, 0, false, err
		}
		if len(seed) == 0 {
			s.logger.Info("could not recover source_batch and none could be materialized, quitting")
			return 0, nil, 0, false, nil
		}
		if err := s.ledger.SetCurrentSourceBatch(ctx, seed); err != nil {
			return 0, nil, 0, false, err
		}
	}

	lastProcBatch, err := s.ledger.RecoverLastProcBatch(ctx)
	if err != nil {
		return 0, nil, 0, false, err
	}
	if lastProcBatch == nil {
		return 0, nil, 0, true, nil
	}

	var lastProcBatchID int64
	if lastProcBatch[0].ProcBatchID != nil {
		lastProcBatchID = *lastProcBatch[0].ProcBatchID
	}

	highest := 0
	for _, row := range lastProcBatch {
		if row.Status == ledger.StatusError {
			continue
		}
		if int(row.Status) > highest {
			highest = int(row.Status)
		}
	}
	skip = highest - 2
	if skip < 0 {
		skip = 0
	}

	if skip >= 5 {
		return lastProcBatchID + 1, nil, 0, true, nil
	}
	return lastProcBatchID, lastProcBatch, skip, true, nil
}

// runProcBatch drives the five-step pipeline, reentrant at step skip+1.
// Register only runs when skip == 0, process only when skip < 2, and monitor
// only when skip < 3. Fetch and export always run together as the final
// step: fetch is not independently skippable even when only export remains,
// because the remote service treats fetch as idempotent.
func (s *Scheduler) runProcBatch(ctx context.Context, procBatchID int64, items []*ledger.Item, skip int) (bool, error) {
	if skip >= 5 {
		s.logger.Warnf("skipping %d steps for proc_batch %d, nothing left to do", skip, procBatchID)
		return true, nil
	}

	if skip == 0 {
		s.logger.Infof("registering batch: %d", procBatchID)
		if err := s.driver.RegisterBatch(ctx, procBatchID, items); err != nil {
			s.logger.Errorf("could not register batch %d: %v", procBatchID, err)
			return false, nil
		}
	}

	if skip < 2 {
		s.logger.Infof("triggering proc_batch to start processing: %d", procBatchID)
		if err := s.driver.ProcessBatch(ctx, procBatchID); err != nil {
			s.logger.Errorf("could not trigger proc_batch %d to start processing: %v", procBatchID, err)
			return false, nil
		}
	}

	if skip < 3 {
		s.logger.Infof("monitoring proc_batch until it finishes: %d", procBatchID)
		if err := s.driver.MonitorBatch(ctx, procBatchID); err != nil {
			s.logger.Errorf("error while monitoring proc_batch %d: %v", procBatchID, err)
			return false, nil
		}
	}

	s.logger.Infof("fetching output data for proc_batch: %d", procBatchID)
	results, err := s.driver.FetchResultsOfBatch(ctx, procBatchID)
	if err != nil {
		s.logger.Errorf("did not receive processing results for %d: %v", procBatchID, err)
		return false, nil
	}

	s.logger.Infof("exporting proc_batch output: %d", procBatchID)
	if !s.exporter.ExportResults(ctx, results) {
		s.logger.Warnf("could not export proc_batch %d output", procBatchID)
		return false, nil
	}

	s.logger.Infof("successfully exported proc_batch %d output", procBatchID)
	return true, nil
}
