// Package scheduler drives items through the processing pipeline: it owns
// the recovery protocol, the main loop over source batches, and the
// five-step per-proc-batch pipeline.
package scheduler

import (
	"context"

	"github.com/dbsmedya/pipelinectl/internal/ledger"
)

// Source produces batches of items from an external catalog. Concrete
// adapters (e.g. a database-backed catalog reader) are external
// collaborators; the scheduler only depends on this contract.
type Source interface {
	// FetchSourceBatchData materializes a source batch by id, or returns nil
	// if the source has no such batch (the catalog is exhausted).
	FetchSourceBatchData(ctx context.Context, sourceBatchID int64) ([]*ledger.Item, error)

	// GetNextBatch returns up to size NEW items from the current source
	// batch, assigning procBatchID and transitioning them to
	// BATCH_ASSIGNED. When the current source batch is exhausted it
	// advances to the next source batch internally and tries again; it
	// returns nil only when no further source batches exist.
	GetNextBatch(ctx context.Context, procBatchID int64, size int) ([]*ledger.Item, error)
}

// ProcessingDriver wraps a remote processing service with four operations,
// each persisting its outcome via the Ledger.
type ProcessingDriver interface {
	RegisterBatch(ctx context.Context, procBatchID int64, items []*ledger.Item) error
	ProcessBatch(ctx context.Context, procBatchID int64) error
	MonitorBatch(ctx context.Context, procBatchID int64) error
	FetchResultsOfBatch(ctx context.Context, procBatchID int64) ([]*ledger.ProcessingResult, error)
}

// Exporter reconciles processing results with the source catalog.
type Exporter interface {
	// ExportResults returns true once every result's item has been set to
	// FINISHED; on false, items carry an EXPORT_FAILED_* error code and
	// status ERROR.
	ExportResults(ctx context.Context, results []*ledger.ProcessingResult) bool
}
